package world

import "sync"

// TilePos is a world tile coordinate.
type TilePos struct {
	X, Y int
}

// Mutation is one accepted world write, as seen by persistence observers.
type Mutation struct {
	X, Y     int
	Tile     Tile
	PlacedBy string
}

// MutationObserver receives every accepted override write, after it is
// visible to readers. Observers must not call back into the store.
type MutationObserver func(Mutation)

// Store layers a sparse override map over generated terrain. Absent
// keys mean "use the generated tile". Removing a block stores an AIR
// override rather than deleting the key, so reads stay O(1) and stable
// even where the generated tile is also AIR.
type Store struct {
	gen *Generator

	mu        sync.RWMutex
	overrides map[TilePos]Tile
	chunks    map[ChunkKey]*Chunk // generated-only cache, never mutated after insert

	observers []MutationObserver
}

func NewStore(gen *Generator) *Store {
	return &Store{
		gen:       gen,
		overrides: map[TilePos]Tile{},
		chunks:    map[ChunkKey]*Chunk{},
	}
}

// Observe registers a write-through observer. Must be called before the
// store is shared across goroutines.
func (s *Store) Observe(fn MutationObserver) {
	s.observers = append(s.observers, fn)
}

// GetTile returns the override at (x,y) when present, else the
// generated tile.
func (s *Store) GetTile(x, y int) Tile {
	s.mu.RLock()
	if t, ok := s.overrides[TilePos{x, y}]; ok {
		s.mu.RUnlock()
		return t
	}
	ch, ok := s.chunks[ChunkKey{ChunkOf(x), ChunkOf(y)}]
	s.mu.RUnlock()
	if ok {
		return ch.Get(LocalOf(x), LocalOf(y))
	}
	return s.generated(ChunkOf(x), ChunkOf(y)).Get(LocalOf(x), LocalOf(y))
}

// PlaceTile writes an override. Tiles outside [0,7] are rejected with
// no state change.
func (s *Store) PlaceTile(x, y, tile int) bool {
	if !ValidTile(tile) {
		return false
	}
	s.mu.Lock()
	s.overrides[TilePos{x, y}] = Tile(tile)
	s.mu.Unlock()
	s.notify(Mutation{X: x, Y: y, Tile: Tile(tile)})
	return true
}

// RemoveTile stores an AIR override at (x,y).
func (s *Store) RemoveTile(x, y int) bool {
	return s.PlaceTile(x, y, int(Air))
}

// Apply writes an override carrying the author id through to observers.
func (s *Store) Apply(m Mutation) bool {
	if !ValidTile(int(m.Tile)) {
		return false
	}
	s.mu.Lock()
	s.overrides[TilePos{m.X, m.Y}] = m.Tile
	s.mu.Unlock()
	s.notify(m)
	return true
}

// Restore seeds the override map from a snapshot without notifying
// observers. Called once, before the store is shared.
func (s *Store) Restore(overrides map[TilePos]Tile) {
	for p, t := range overrides {
		if ValidTile(int(t)) {
			s.overrides[p] = t
		}
	}
}

// Overrides returns a copy of the override map.
func (s *Store) Overrides() map[TilePos]Tile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[TilePos]Tile, len(s.overrides))
	for p, t := range s.overrides {
		out[p] = t
	}
	return out
}

// ChunkMerged returns a fresh grid for (cx,cy) with all applicable
// overrides layered on top of the generated terrain.
func (s *Store) ChunkMerged(cx, cy int) *Chunk {
	base := s.generated(cx, cy)

	merged := &Chunk{CX: cx, CY: cy, Tiles: base.Tiles}
	s.mu.RLock()
	for p, t := range s.overrides {
		if ChunkOf(p.X) == cx && ChunkOf(p.Y) == cy {
			merged.Set(LocalOf(p.X), LocalOf(p.Y), t)
		}
	}
	s.mu.RUnlock()
	return merged
}

// generated returns the cached generated chunk, realizing it on first
// access. Cached chunks are generated-only: overrides are layered at
// read time, so the cache can never diverge from regeneration.
func (s *Store) generated(cx, cy int) *Chunk {
	k := ChunkKey{cx, cy}
	s.mu.RLock()
	ch, ok := s.chunks[k]
	s.mu.RUnlock()
	if ok {
		return ch
	}

	fresh := s.gen.Generate(cx, cy)
	s.mu.Lock()
	if ch, ok = s.chunks[k]; !ok {
		s.chunks[k] = fresh
		ch = fresh
	}
	s.mu.Unlock()
	return ch
}

func (s *Store) notify(m Mutation) {
	for _, fn := range s.observers {
		fn(m)
	}
}
