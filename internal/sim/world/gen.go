package world

import "math"

// Generator synthesizes terrain chunks as a pure function of
// (seed, chunkX, chunkY). No global clock, no neighbor chunks, no
// randomness beyond coordinate-keyed hashing, so regenerating a chunk
// always yields the identical grid.
type Generator struct {
	Seed int64
}

// Terrain shaping constants. Up is negative: smaller worldY is higher.
const (
	seaLevel = -2

	dirtDepth  = 4  // rows of dirt beneath the grass line
	caveDepth  = 8  // stone deeper than this may hollow out
	shoreBand  = 2  // |surface - seaLevel| within which grass turns to sand
	treeHeight = 4  // trunk rows above the surface
	maxSurface = 8  // surface height is clamped to [-maxSurface, maxSurface]

	treePermille = 150 // per-column tree probability
	cavePermille = 80  // per-cell cave probability
)

// Salts separating the independent draw families.
const (
	treeSalt = 0x51ed
	caveSalt = 0xace5
)

// SurfaceHeight returns the terrain surface row for a world column:
// a stack of fixed-phase sinusoidal octaves mapped to an integer in
// [-maxSurface, maxSurface].
func (g *Generator) SurfaceHeight(worldX int) int {
	x := float64(worldX)
	h := 4.0*math.Sin(x*0.050-1.2) +
		2.5*math.Sin(x*0.013-0.4) +
		1.5*math.Sin(x*0.031+0.6)
	s := int(math.Round(h))
	if s < -maxSurface {
		s = -maxSurface
	}
	if s > maxSurface {
		s = maxSurface
	}
	return s
}

// Generate builds the chunk at (cx, cy). Shaping rules apply in a fixed
// order; later rules overwrite earlier ones only where stated.
func (g *Generator) Generate(cx, cy int) *Chunk {
	ch := &Chunk{CX: cx, CY: cy}

	for lx := 0; lx < ChunkSize; lx++ {
		wx := cx*ChunkSize + lx
		surface := g.SurfaceHeight(wx)
		column := chance(hash1(g.Seed^treeSalt, wx), treePermille)

		for ly := 0; ly < ChunkSize; ly++ {
			wy := cy*ChunkSize + ly
			depth := wy - surface

			var t Tile
			switch {
			case depth < 0:
				t = Air
			case depth == 0:
				t = Grass
			case depth <= dirtDepth:
				t = Dirt
			default:
				t = Stone
			}

			// Flood the open space below sea level.
			if t == Air && wy > seaLevel {
				t = Water
			}

			// Beaches where the surface meets the waterline.
			if depth == 0 && abs(surface-seaLevel) <= shoreBand {
				t = Sand
			}

			// Tree columns: trunk in the rows above the surface,
			// crown on top. Only open air is replaced, so flooded
			// columns stay bare.
			if column && t == Air {
				above := surface - wy // 1..n rows above the grass line
				if above >= 1 && above <= treeHeight {
					t = Wood
				} else if above == treeHeight+1 {
					t = Leaves
				}
			}

			// Caves hollow out the deep stone.
			if t == Stone && depth > caveDepth &&
				chance(hash2(g.Seed^caveSalt, wx, wy), cavePermille) {
				t = Air
			}

			ch.Tiles[ly][lx] = t
		}
	}
	return ch
}

// TileAt generates the single tile at a world coordinate. Equivalent to
// reading the corresponding cell of Generate, without building the
// whole grid.
func (g *Generator) TileAt(wx, wy int) Tile {
	surface := g.SurfaceHeight(wx)
	depth := wy - surface

	var t Tile
	switch {
	case depth < 0:
		t = Air
	case depth == 0:
		t = Grass
	case depth <= dirtDepth:
		t = Dirt
	default:
		t = Stone
	}

	if t == Air && wy > seaLevel {
		t = Water
	}
	if depth == 0 && abs(surface-seaLevel) <= shoreBand {
		t = Sand
	}
	if t == Air && chance(hash1(g.Seed^treeSalt, wx), treePermille) {
		above := surface - wy
		if above >= 1 && above <= treeHeight {
			t = Wood
		} else if above == treeHeight+1 {
			t = Leaves
		}
	}
	if t == Stone && depth > caveDepth &&
		chance(hash2(g.Seed^caveSalt, wx, wy), cavePermille) {
		t = Air
	}
	return t
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
