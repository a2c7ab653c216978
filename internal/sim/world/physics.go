package world

import (
	"context"
	"math"
	"time"

	"aetharia.world/internal/metrics"
	"aetharia.world/internal/protocol"
)

const (
	footLeft  = 0.1 // horizontal footprint sample offsets
	footRight = 0.9

	unstickScanRows = 10

	// Position changes below this are not worth a correction frame.
	correctionEpsilon = 0.01
)

// RunPhysics drives the fixed-rate simulation until ctx is canceled.
// The loop advances player Y, VY and OnGround every tick; apart from it,
// only the move handler writes them (jump and the pre-tick y hint).
func (w *World) RunPhysics(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Tick advances every player by one physics step. Exposed so tests can
// step the simulation without real time passing.
func (w *World) Tick() {
	start := time.Now()
	dt := w.cfg.TickInterval.Seconds()

	type emission struct {
		id       string
		zone     string
		x, y     float64
		onGround bool
	}
	var emits []emission

	for _, id := range w.players.IDs() {
		w.players.Update(id, func(p *Player) {
			prevY := p.Y
			w.stepPlayer(p, dt)
			p.simTicked = true
			if math.Abs(p.Y-prevY) > correctionEpsilon {
				emits = append(emits, emission{
					id:       p.ID,
					zone:     p.Zone,
					x:        p.X,
					y:        p.Y,
					onGround: p.OnGround,
				})
			}
		})
	}

	// Broadcast outside the registry lock.
	for _, e := range emits {
		w.bcast.To(e.id, protocol.PositionCorrectionMsg{
			Type:     protocol.TypePositionCorrection,
			X:        e.x,
			Y:        e.y,
			OnGround: e.onGround,
		})
		w.bcast.ToZone(e.zone, protocol.PlayerMovedMsg{
			Type: protocol.TypePlayerMoved,
			ID:   e.id,
			X:    e.x,
			Y:    e.y,
		}, e.id)
	}

	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

// stepPlayer integrates gravity and resolves vertical collision for one
// player. Up is negative: descending means VY > 0.
func (w *World) stepPlayer(p *Player, dt float64) {
	v := p.VY + w.cfg.Gravity*dt
	if v > w.cfg.MaxFall {
		v = w.cfg.MaxFall
	}
	yCand := p.Y + v*dt

	switch {
	case v > 0:
		// Descending: probe the row under the candidate feet.
		row := tileFloor(yCand + 1.0)
		if w.footprintSolid(p.X, row) {
			p.Y = float64(row) - 1
			p.VY = 0
			p.OnGround = true
		} else {
			p.Y = yCand
			p.VY = v
			p.OnGround = false
		}
	case v < 0:
		// Ascending: probe the row at the candidate head.
		row := tileFloor(yCand)
		if w.footprintSolid(p.X, row) {
			p.Y = float64(row) + 1
			p.VY = 0
		} else {
			p.Y = yCand
			p.VY = v
		}
		p.OnGround = false
	default:
		p.Y = yCand
		p.VY = 0
		p.OnGround = w.footprintSolid(p.X, tileFloor(p.Y+1.0))
	}

	w.unstick(p)
}

// footprintSolid samples the avatar's two footprint offsets on one row.
func (w *World) footprintSolid(x float64, row int) bool {
	return w.store.GetTile(tileFloor(x+footLeft), row).Solid() ||
		w.store.GetTile(tileFloor(x+footRight), row).Solid()
}

// unstick frees an avatar whose center landed inside a solid tile by
// scanning upward for the first open row.
func (w *World) unstick(p *Player) {
	cx := tileFloor(p.X + 0.5)
	cy := tileFloor(p.Y + 0.5)
	if !w.store.GetTile(cx, cy).Solid() {
		return
	}
	for i := 1; i <= unstickScanRows; i++ {
		if !w.store.GetTile(cx, cy-i).Solid() {
			p.Y = float64(cy - i)
			p.VY = 0
			p.OnGround = false
			return
		}
	}
}
