package world

// spawnScanTop and spawnScanBottom bound the vertical probe for a safe
// spawn row, in world tile coordinates (up is negative).
const (
	spawnScanTop    = -24
	spawnScanBottom = 24
)

// SpawnPoint scans the spawn column top-down for the first AIR cell
// sitting directly on a solid tile. When no such pair exists in the
// scanned range the probe falls back to y=0; the unstick step of the
// physics loop corrects a buried avatar within its first ticks.
func (w *World) SpawnPoint() (x, y int) {
	x = w.cfg.SpawnX
	for wy := spawnScanTop; wy < spawnScanBottom; wy++ {
		if w.store.GetTile(x, wy) == Air && w.store.GetTile(x, wy+1).Solid() {
			return x, wy
		}
	}
	return x, 0
}
