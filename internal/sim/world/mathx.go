package world

// Integer helpers shared by terrain generation and chunk addressing.
// Negative world coordinates must land in [0,ChunkSize) local indices,
// so plain / and % are not enough.

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// mix64 is the splitmix64 finalizer. It turns structured coordinate
// input into white noise without any sequential state.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// hash1 keys a draw by a single world coordinate.
func hash1(seed int64, x int) uint64 {
	ux := uint64(uint32(int32(x)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15))
}

// hash2 keys a draw by a world cell. Distinct odd multipliers keep
// (a,b) and (b,a) from colliding.
func hash2(seed int64, x, y int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f))
}

// chance reports a deterministic draw with probability permille/1000.
func chance(h uint64, permille uint64) bool {
	return h%1000 < permille
}
