package world

import (
	"encoding/json"
	"log"
	"os"
	"testing"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	cfg := Defaults()
	cfg.Zones = []ZoneDef{
		{ID: "zone_central", MinX: -8, MaxX: 0, MinY: -8, MaxY: 8},
		{ID: "zone_north", MinX: 1, MaxX: 8, MinY: -8, MaxY: 8},
	}
	cfg.DefaultZone = "zone_wilds"
	return New(cfg, log.New(os.Stderr, "[test] ", 0))
}

func join(t *testing.T, w *World, id string) Outbox {
	t.Helper()
	out := make(Outbox, 256)
	welcome := w.Join(id, out)
	if welcome.ID != id || len(welcome.Chunks) != 9 {
		t.Fatalf("welcome: id=%s chunks=%d", welcome.ID, len(welcome.Chunks))
	}
	return out
}

// hoist parks a player in open air well above any terrain so router
// tests are independent of the generated surface.
func hoist(t *testing.T, w *World, id string, x, y float64) {
	t.Helper()
	if !w.players.Update(id, func(p *Player) {
		p.X = x
		p.Y = y
		p.VY = 0
		p.OnGround = true
	}) {
		t.Fatalf("no player %s", id)
	}
	w.players.Update(id, func(p *Player) {
		p.Zone = w.zones.Assign(id, tileFloor(x), tileFloor(y))
	})
}

// drain empties an outbox and decodes every frame.
func drain(t *testing.T, out Outbox) []map[string]any {
	t.Helper()
	var frames []map[string]any
	for {
		select {
		case raw := <-out:
			var m map[string]any
			if err := json.Unmarshal(raw, &m); err != nil {
				t.Fatalf("bad frame %s: %v", raw, err)
			}
			frames = append(frames, m)
		default:
			return frames
		}
	}
}

func framesOfType(frames []map[string]any, typ string) []map[string]any {
	var out []map[string]any
	for _, f := range frames {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

func oneFrame(t *testing.T, frames []map[string]any, typ string) map[string]any {
	t.Helper()
	got := framesOfType(frames, typ)
	if len(got) != 1 {
		t.Fatalf("want exactly one %q frame, got %d in %v", typ, len(got), frames)
	}
	return got[0]
}

func noFrame(t *testing.T, frames []map[string]any, typ string) {
	t.Helper()
	if got := framesOfType(frames, typ); len(got) != 0 {
		t.Fatalf("unexpected %q frames: %v", typ, got)
	}
}

func msg(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
