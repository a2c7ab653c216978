package world

import (
	"sort"
	"time"

	"aetharia.world/internal/persistence/snapshot"
)

// Export captures the recoverable state: override map plus player
// snapshots. Terrain is not captured; it regenerates from the seed.
func (w *World) Export() snapshot.SnapshotV1 {
	overrides := w.store.Overrides()
	outOv := make([]snapshot.OverrideV1, 0, len(overrides))
	for p, t := range overrides {
		outOv = append(outOv, snapshot.OverrideV1{X: p.X, Y: p.Y, Tile: int(t)})
	}
	// Deterministic file contents for identical state.
	sort.Slice(outOv, func(i, j int) bool {
		if outOv[i].Y != outOv[j].Y {
			return outOv[i].Y < outOv[j].Y
		}
		return outOv[i].X < outOv[j].X
	})

	snaps := w.players.Snapshots()
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	outPl := make([]snapshot.PlayerV1, 0, len(snaps))
	for _, s := range snaps {
		pl := snapshot.PlayerV1{
			ID:      s.ID,
			Name:    s.Name,
			Color:   s.Color,
			X:       s.X,
			Y:       s.Y,
			IsAgent: s.IsAgent,
		}
		w.players.Update(s.ID, func(p *Player) {
			for _, it := range p.Inventory {
				pl.Inventory = append(pl.Inventory, snapshot.ItemV1{
					Name: it.Name, Type: it.Type, Quantity: it.Quantity,
				})
			}
		})
		outPl = append(outPl, pl)
	}

	return snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:   snapshot.Version,
			Seed:      w.cfg.Seed,
			TakenUnix: time.Now().UnixMilli(),
		},
		Overrides: outOv,
		Players:   outPl,
	}
}

// RestoreOverrides repopulates the store from a snapshot. Player rows
// are not restored as live sessions; their connections are gone.
// Called before the server accepts sessions.
func (w *World) RestoreOverrides(snap snapshot.SnapshotV1) {
	m := make(map[TilePos]Tile, len(snap.Overrides))
	for _, o := range snap.Overrides {
		m[TilePos{o.X, o.Y}] = Tile(o.Tile)
	}
	w.store.Restore(m)
}
