package world

import (
	"strings"
	"testing"
)

func TestRouter_MoveDeltaBoundary(t *testing.T) {
	w := newTestWorld(t)
	outA := join(t, w, "a")
	outB := join(t, w, "b")
	hoist(t, w, "a", 0, -20)
	hoist(t, w, "b", 0, -20)
	drain(t, outA)
	drain(t, outB)

	// Exactly the cap is accepted.
	w.Handle("a", msg(t, map[string]any{"type": "move", "x": 20.0}))
	snap, _ := w.players.Get("a")
	if snap.X != 20 {
		t.Fatalf("x=%v after delta-20 move", snap.X)
	}
	noFrame(t, drain(t, outA), "error")
	oneFrame(t, drain(t, outB), "playerMoved")

	// A far oversized move is rejected with no broadcast and no movement.
	w.Handle("a", msg(t, map[string]any{"type": "move", "x": 99999.0}))
	errFrame := oneFrame(t, drain(t, outA), "error")
	if errFrame["message"] != "Movement too large" {
		t.Fatalf("error message %q", errFrame["message"])
	}
	snap, _ = w.players.Get("a")
	if snap.X != 20 {
		t.Fatalf("rejected move changed x to %v", snap.X)
	}
	noFrame(t, drain(t, outB), "playerMoved")

	w.Handle("a", msg(t, map[string]any{"type": "move", "x": 20.0 + w.cfg.MaxMoveDelta + 0.001}))
	oneFrame(t, drain(t, outA), "error")
}

func TestRouter_MoveBlockedByWall(t *testing.T) {
	w := newTestWorld(t)
	out := join(t, w, "a")
	hoist(t, w, "a", 0, -20)
	drain(t, out)

	// Wall at the candidate footprint.
	w.store.PlaceTile(5, -20, int(Stone))
	w.Handle("a", msg(t, map[string]any{"type": "move", "x": 5.0}))
	snap, _ := w.players.Get("a")
	if snap.X != 0 {
		t.Fatalf("moved into a wall: x=%v", snap.X)
	}
	// Blocked horizontal motion is not an error.
	noFrame(t, drain(t, out), "error")
}

func TestRouter_MoveZoneTransfer(t *testing.T) {
	w := newTestWorld(t)
	outA := join(t, w, "a")
	outB := join(t, w, "b")
	outC := join(t, w, "c")
	hoist(t, w, "a", 0, -20)
	hoist(t, w, "b", 0, -20)          // stays in zone_central
	hoist(t, w, "c", 3*ChunkSize, -20) // lives in zone_north
	drain(t, outA)
	drain(t, outB)
	drain(t, outC)

	w.Handle("a", msg(t, map[string]any{"type": "move", "x": 20.0}))
	w.Handle("a", msg(t, map[string]any{"type": "move", "x": 33.0})) // crosses into chunk 1

	aFrames := drain(t, outA)
	zc := oneFrame(t, aFrames, "zoneChanged")
	if zc["zone"] != "zone_north" {
		t.Fatalf("zoneChanged to %q", zc["zone"])
	}
	left := oneFrame(t, drain(t, outB), "playerLeft")
	if left["id"] != "a" {
		t.Fatalf("playerLeft id %q", left["id"])
	}
	joined := oneFrame(t, drain(t, outC), "playerJoined")
	if joined["id"] != "a" {
		t.Fatalf("playerJoined id %q", joined["id"])
	}
	if got := w.zones.Current("a"); got != "zone_north" {
		t.Fatalf("zone index says %q", got)
	}
	snap, _ := w.players.Get("a")
	if snap.Zone != "zone_north" {
		t.Fatalf("player zone %q", snap.Zone)
	}
}

func TestRouter_ChatZoneScoped(t *testing.T) {
	w := newTestWorld(t)
	outA := join(t, w, "a")
	outB := join(t, w, "b")
	outC := join(t, w, "c")
	hoist(t, w, "a", 0, -20)
	hoist(t, w, "b", 0, -20)
	hoist(t, w, "c", 3*ChunkSize, -20)
	drain(t, outA)
	drain(t, outB)
	drain(t, outC)

	w.Handle("b", msg(t, map[string]any{"type": "chat", "message": "  hello  "}))

	got := oneFrame(t, drain(t, outA), "chatMessage")
	if got["id"] != "b" || got["message"] != "hello" {
		t.Fatalf("chat frame: %v", got)
	}
	if _, ok := got["timestamp"].(float64); !ok {
		t.Fatalf("timestamp missing: %v", got)
	}
	// Sender hears its own message; the other zone hears nothing.
	oneFrame(t, drain(t, outB), "chatMessage")
	noFrame(t, drain(t, outC), "chatMessage")
}

func TestRouter_ChatSanitized(t *testing.T) {
	w := newTestWorld(t)
	outA := join(t, w, "a")
	outB := join(t, w, "b")
	hoist(t, w, "a", 0, -20)
	hoist(t, w, "b", 0, -20)
	drain(t, outA)
	drain(t, outB)

	w.Handle("a", msg(t, map[string]any{"type": "chat", "message": "hi\x01there"}))
	got := oneFrame(t, drain(t, outB), "chatMessage")
	if got["message"] != "hithere" {
		t.Fatalf("control characters survived: %q", got["message"])
	}

	// Empty after trimming: dropped without an error.
	w.Handle("a", msg(t, map[string]any{"type": "chat", "message": "   "}))
	frames := drain(t, outB)
	noFrame(t, frames, "chatMessage")
	noFrame(t, drain(t, outA), "error")

	long := strings.Repeat("x", 600)
	w.Handle("a", msg(t, map[string]any{"type": "chat", "message": long}))
	got = oneFrame(t, drain(t, outB), "chatMessage")
	if len(got["message"].(string)) != 500 {
		t.Fatalf("length %d after truncation", len(got["message"].(string)))
	}
}

func TestRouter_RequestChunkRadius(t *testing.T) {
	w := newTestWorld(t)
	out := join(t, w, "a")
	hoist(t, w, "a", 0, -20)
	drain(t, out)

	pcy := ChunkOf(-20)
	// Chebyshev distance 5 is accepted.
	w.Handle("a", msg(t, map[string]any{"type": "requestChunk", "chunkX": 5, "chunkY": pcy}))
	got := oneFrame(t, drain(t, out), "chunkData")
	chunk := got["chunk"].(map[string]any)
	if chunk["x"].(float64) != 5 {
		t.Fatalf("chunkData for %v", chunk["x"])
	}

	// Distance 6 is rejected.
	w.Handle("a", msg(t, map[string]any{"type": "requestChunk", "chunkX": 6, "chunkY": pcy}))
	frames := drain(t, out)
	noFrame(t, frames, "chunkData")
	oneFrame(t, frames, "error")

	// Non-integer coordinates are rejected.
	w.Handle("a", msg(t, map[string]any{"type": "requestChunk", "chunkX": 1.5, "chunkY": 0}))
	oneFrame(t, drain(t, out), "error")
}

func TestRouter_PlaceBlockValidation(t *testing.T) {
	w := newTestWorld(t)
	out := join(t, w, "a")
	hoist(t, w, "a", 0, -20)
	drain(t, out)

	for _, tile := range []int{0, 7} {
		w.Handle("a", msg(t, map[string]any{"type": "placeBlock", "x": 2, "y": -20, "tile": tile}))
		frames := drain(t, out)
		noFrame(t, frames, "error")
		oneFrame(t, frames, "blockUpdate")
	}
	for _, tile := range []int{-1, 8} {
		w.Handle("a", msg(t, map[string]any{"type": "placeBlock", "x": 2, "y": -20, "tile": tile}))
		frames := drain(t, out)
		oneFrame(t, frames, "error")
		noFrame(t, frames, "blockUpdate")
	}

	// Out of range for a human (11 > 10).
	w.Handle("a", msg(t, map[string]any{"type": "placeBlock", "x": 11, "y": -20, "tile": 2}))
	errFrame := oneFrame(t, drain(t, out), "error")
	if errFrame["message"] != "Block out of range" {
		t.Fatalf("error %q", errFrame["message"])
	}
}

func TestRouter_AgentRangeExtended(t *testing.T) {
	w := newTestWorld(t)
	out := join(t, w, "a")
	hoist(t, w, "a", 0, -20)
	drain(t, out)

	w.Handle("a", msg(t, map[string]any{"type": "placeBlock", "x": 40, "y": -20, "tile": 2}))
	oneFrame(t, drain(t, out), "error")

	w.Handle("a", msg(t, map[string]any{"type": "identify", "isAI": true}))
	snap, _ := w.players.Get("a")
	if !snap.IsAgent {
		t.Fatalf("identify did not mark the session as an agent")
	}

	// 40 <= 50: now in range.
	w.Handle("a", msg(t, map[string]any{"type": "placeBlock", "x": 40, "y": -20, "tile": 2}))
	frames := drain(t, out)
	noFrame(t, frames, "error")
	oneFrame(t, frames, "blockUpdate")

	// 51 is still out.
	w.Handle("a", msg(t, map[string]any{"type": "placeBlock", "x": 51, "y": -20, "tile": 2}))
	oneFrame(t, drain(t, out), "error")
}

func TestRouter_PlaceMineRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	outA := join(t, w, "a")
	outB := join(t, w, "b")
	hoist(t, w, "a", 0, -20)
	hoist(t, w, "b", 0, -20)
	drain(t, outA)
	drain(t, outB)

	w.Handle("a", msg(t, map[string]any{"type": "placeBlock", "x": 2, "y": -20, "tile": 2}))
	bu := oneFrame(t, drain(t, outB), "blockUpdate")
	if bu["x"].(float64) != 2 || bu["tile"].(float64) != 2 || bu["placedBy"] != "a" {
		t.Fatalf("blockUpdate: %v", bu)
	}

	// A later joiner requesting the chunk observes the override.
	outC := join(t, w, "c")
	hoist(t, w, "c", 0, -20)
	drain(t, outC)
	w.Handle("c", msg(t, map[string]any{"type": "requestChunk", "chunkX": 0, "chunkY": ChunkOf(-20)}))
	cd := oneFrame(t, drain(t, outC), "chunkData")
	tiles := cd["chunk"].(map[string]any)["tiles"].([]any)
	row := tiles[LocalOf(-20)].([]any)
	if row[2].(float64) != 2 {
		t.Fatalf("merged chunk cell = %v, want stone", row[2])
	}

	// Mining credits the item and leaves AIR.
	w.Handle("a", msg(t, map[string]any{"type": "removeBlock", "x": 2, "y": -20}))
	bu = oneFrame(t, drain(t, outB), "blockUpdate")
	if bu["tile"].(float64) != 0 {
		t.Fatalf("blockUpdate after remove: %v", bu)
	}
	if got := w.store.GetTile(2, -20); got != Air {
		t.Fatalf("tile after remove: %v", got)
	}
	var stone int
	w.players.Update("a", func(p *Player) {
		for _, it := range p.Inventory {
			if it.Name == "stone" {
				stone = it.Quantity
			}
		}
	})
	if stone != 1 {
		t.Fatalf("mined stone not credited: %d", stone)
	}

	// A second remove at the same spot fails.
	w.Handle("a", msg(t, map[string]any{"type": "removeBlock", "x": 2, "y": -20}))
	errFrame := oneFrame(t, drain(t, outA), "error")
	if errFrame["message"] != "No block to remove at that position" {
		t.Fatalf("error %q", errFrame["message"])
	}
	noFrame(t, drain(t, outB), "blockUpdate")
}

func TestRouter_SetProfile(t *testing.T) {
	w := newTestWorld(t)
	outA := join(t, w, "a")
	outB := join(t, w, "b")
	hoist(t, w, "a", 0, -20)
	hoist(t, w, "b", 0, -20)
	drain(t, outA)
	drain(t, outB)

	w.Handle("a", msg(t, map[string]any{"type": "setProfile", "name": "Explorer", "color": "#AB12cd"}))
	pu := oneFrame(t, drain(t, outB), "profileUpdate")
	if pu["name"] != "Explorer" || pu["color"] != "#AB12cd" {
		t.Fatalf("profileUpdate: %v", pu)
	}
	oneFrame(t, drain(t, outA), "profileUpdate")

	// Overlong names clip silently; bad colors are ignored.
	w.Handle("a", msg(t, map[string]any{
		"type": "setProfile", "name": "averyveryverylongname", "color": "red",
	}))
	pu = oneFrame(t, drain(t, outB), "profileUpdate")
	if pu["name"] != "averyveryverylong"[:16] {
		t.Fatalf("clipped name %q", pu["name"])
	}
	if pu["color"] != "#AB12cd" {
		t.Fatalf("invalid color overwrote the profile: %q", pu["color"])
	}
	noFrame(t, drain(t, outA), "error")

	// Identical fields: idempotent, still at most one broadcast per call.
	w.Handle("a", msg(t, map[string]any{"type": "setProfile", "name": pu["name"], "color": "#AB12cd"}))
	if n := len(framesOfType(drain(t, outB), "profileUpdate")); n != 1 {
		t.Fatalf("%d profileUpdate frames for one call", n)
	}
}

func TestRouter_InteractReserved(t *testing.T) {
	w := newTestWorld(t)
	out := join(t, w, "a")
	drain(t, out)

	w.Handle("a", msg(t, map[string]any{"type": "interact", "target": "door", "action": "open"}))
	got := oneFrame(t, drain(t, out), "interactResult")
	if got["result"] != "not_implemented" {
		t.Fatalf("interactResult: %v", got)
	}
}

func TestRouter_UnknownTypeAndBadFrames(t *testing.T) {
	w := newTestWorld(t)
	outA := join(t, w, "a")
	outB := join(t, w, "b")
	drain(t, outA)
	drain(t, outB)

	w.Handle("a", msg(t, map[string]any{"type": "teleport", "x": 1}))
	oneFrame(t, drain(t, outA), "error")
	// Failures never broadcast.
	noFrame(t, drain(t, outB), "error")

	// Non-JSON and missing type: logged and dropped, no reply.
	w.Handle("a", []byte("not json"))
	w.Handle("a", msg(t, map[string]any{"x": 3}))
	if frames := drain(t, outA); len(frames) != 0 {
		t.Fatalf("bad frames produced replies: %v", frames)
	}

	// Missing required field on a known type is an error reply.
	w.Handle("a", msg(t, map[string]any{"type": "move"}))
	oneFrame(t, drain(t, outA), "error")
}

func TestRouter_ClientYIgnoredAfterFirstTick(t *testing.T) {
	w := newTestWorld(t)
	out := join(t, w, "a")
	drain(t, out)

	// Before the first tick the y hint is honored.
	w.Handle("a", msg(t, map[string]any{"type": "move", "x": 0.0, "y": -40.0}))
	snap, _ := w.players.Get("a")
	if snap.Y != -40 {
		t.Fatalf("spawn-time y hint ignored: %v", snap.Y)
	}

	w.Tick()
	snap, _ = w.players.Get("a")
	ticked := snap.Y

	w.Handle("a", msg(t, map[string]any{"type": "move", "x": 0.0, "y": 5.0}))
	snap, _ = w.players.Get("a")
	if snap.Y != ticked {
		t.Fatalf("client y accepted after first tick: %v -> %v", ticked, snap.Y)
	}
}

func TestRouter_DeterministicChunkResponses(t *testing.T) {
	build := func() []byte {
		w := newTestWorld(t)
		out := join(t, w, "s")
		hoist(t, w, "s", 3*ChunkSize, -20)
		drain(t, out)
		w.Handle("s", msg(t, map[string]any{"type": "requestChunk", "chunkX": 3, "chunkY": -1}))
		select {
		case raw := <-out:
			return raw
		default:
			t.Fatalf("no chunk response")
			return nil
		}
	}
	a := build()
	b := build()
	if string(a) != string(b) {
		t.Fatalf("two instances disagree on chunk (3,-1):\n%s\n%s", a, b)
	}
}

func TestRouter_ErrorsAreSingleLine(t *testing.T) {
	for _, m := range []string{
		errBadFrame, errUnknownType, errBadMove, errMoveTooLarge,
		errBadChunkReq, errChunkRange, errBadBlockMsg, errBadTile,
		errBlockRange, errRemoveAir,
	} {
		if strings.ContainsAny(m, "\n\r") {
			t.Fatalf("multi-line error %q", m)
		}
		if m == "" {
			t.Fatalf("empty error string")
		}
	}
}
