package world

import (
	"encoding/json"
	"math"
	"time"

	"aetharia.world/internal/metrics"
	"aetharia.world/internal/protocol"
)

// Router error strings. Single-line, safe to show in a chat log.
const (
	errBadFrame     = "Malformed message"
	errUnknownType  = "Unknown message type"
	errBadMove      = "Invalid move message"
	errMoveTooLarge = "Movement too large"
	errBadChunkReq  = "Invalid chunk request"
	errChunkRange   = "Chunk out of range"
	errBadBlockMsg  = "Invalid block message"
	errBadTile      = "Invalid tile"
	errBlockRange   = "Block out of range"
	errRemoveAir    = "No block to remove at that position"
)

// Handle validates and dispatches one inbound frame from a session.
// Every failure replies only to the sender; nothing is broadcast for a
// rejected message. A panicking handler propagates to the session's
// reader, which recovers it and closes that session only.
func (w *World) Handle(sessionID string, raw []byte) {
	base, err := protocol.DecodeBase(raw)
	if err != nil || base.Type == "" {
		// Bad frame: log and drop, connection preserved.
		w.debugf("bad frame from %s", sessionID)
		return
	}

	metrics.MessagesInbound.WithLabelValues(base.Type).Inc()
	w.players.Update(sessionID, func(p *Player) { p.LastMessage = time.Now() })

	switch base.Type {
	case protocol.TypeMove:
		w.handleMove(sessionID, raw)
	case protocol.TypeChat:
		w.handleChat(sessionID, raw)
	case protocol.TypeRequestChunk:
		w.handleRequestChunk(sessionID, raw)
	case protocol.TypePlaceBlock:
		w.handlePlaceBlock(sessionID, raw)
	case protocol.TypeRemoveBlock:
		w.handleRemoveBlock(sessionID, raw)
	case protocol.TypeSetProfile:
		w.handleSetProfile(sessionID, raw)
	case protocol.TypeIdentify:
		w.handleIdentify(sessionID, raw)
	case protocol.TypeInteract:
		w.handleInteract(sessionID, raw)
	default:
		w.bcast.To(sessionID, protocol.NewError(errUnknownType))
	}
}

func (w *World) handleMove(sessionID string, raw []byte) {
	var msg protocol.MoveMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.X == nil || !protocol.Finite(*msg.X) {
		w.bcast.To(sessionID, protocol.NewError(errBadMove))
		return
	}

	var (
		rejected  bool
		committed bool
		x, y      float64
		oldZone   string
		snap      PlayerSnapshot
	)
	ok := w.players.Update(sessionID, func(p *Player) {
		if math.Abs(*msg.X-p.X) > w.cfg.MaxMoveDelta {
			rejected = true
			return
		}
		// Spawn-time hint only; once the simulator has ticked this
		// player the server owns y absolutely.
		if msg.Y != nil && protocol.Finite(*msg.Y) && !p.simTicked {
			p.Y = *msg.Y
		}
		if !w.blockedHorizontally(*msg.X, p.Y) {
			if p.X != *msg.X {
				committed = true
			}
			p.X = *msg.X
		}
		if msg.Jump && p.OnGround {
			p.VY = w.cfg.JumpImpulse
			p.OnGround = false
		}
		oldZone = p.Zone
		x, y = p.X, p.Y
		snap = p.snapshot()
	})
	if !ok {
		return
	}
	if rejected {
		w.bcast.To(sessionID, protocol.NewError(errMoveTooLarge))
		return
	}

	newZone := w.zones.Assign(sessionID, tileFloor(x), tileFloor(y))
	if newZone != oldZone {
		w.players.Update(sessionID, func(p *Player) { p.Zone = newZone })
		w.bcast.ToZone(oldZone, protocol.PlayerLeftMsg{
			Type:  protocol.TypePlayerLeft,
			ID:    snap.ID,
			Name:  snap.Name,
			Color: snap.Color,
		}, sessionID)
		w.bcast.ToZone(newZone, protocol.PlayerJoinedMsg{
			Type:  protocol.TypePlayerJoined,
			ID:    snap.ID,
			Name:  snap.Name,
			Color: snap.Color,
			X:     x,
			Y:     y,
		}, sessionID)
		w.bcast.To(sessionID, protocol.ZoneChangedMsg{
			Type: protocol.TypeZoneChanged,
			Zone: newZone,
		})
	}

	if committed {
		// Immediate echo for responsiveness; the physics loop emits its
		// own samples and last-write-wins on the receiver.
		w.bcast.ToZone(newZone, protocol.PlayerMovedMsg{
			Type: protocol.TypePlayerMoved,
			ID:   sessionID,
			X:    x,
			Y:    y,
		}, sessionID)
	}
}

// blockedHorizontally checks the avatar's head and feet rows at the
// candidate x against both footprint offsets.
func (w *World) blockedHorizontally(newX, y float64) bool {
	head := tileFloor(y + footLeft)
	feet := tileFloor(y + footRight)
	for _, row := range [2]int{head, feet} {
		if w.store.GetTile(tileFloor(newX+footLeft), row).Solid() ||
			w.store.GetTile(tileFloor(newX+footRight), row).Solid() {
			return true
		}
	}
	return false
}

func (w *World) handleChat(sessionID string, raw []byte) {
	var msg protocol.ChatMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Message == nil {
		w.bcast.To(sessionID, protocol.NewError(errBadFrame))
		return
	}
	text := protocol.CleanChat(*msg.Message)
	if text == "" {
		return
	}
	snap, ok := w.players.Get(sessionID)
	if !ok {
		return
	}
	w.bcast.ToZone(snap.Zone, protocol.ChatMessageMsg{
		Type:      protocol.TypeChatMessage,
		ID:        sessionID,
		Message:   text,
		Timestamp: time.Now().UnixMilli(),
	}, "")
}

func (w *World) handleRequestChunk(sessionID string, raw []byte) {
	var msg protocol.RequestChunkMsg
	if err := json.Unmarshal(raw, &msg); err != nil ||
		msg.ChunkX == nil || msg.ChunkY == nil ||
		!protocol.WholeNumber(*msg.ChunkX) || !protocol.WholeNumber(*msg.ChunkY) {
		w.bcast.To(sessionID, protocol.NewError(errBadChunkReq))
		return
	}
	cx := int(*msg.ChunkX)
	cy := int(*msg.ChunkY)

	snap, ok := w.players.Get(sessionID)
	if !ok {
		return
	}
	pcx := ChunkOf(tileFloor(snap.X))
	pcy := ChunkOf(tileFloor(snap.Y))
	if chebyshev(cx-pcx, cy-pcy) > w.cfg.ChunkRadius {
		w.bcast.To(sessionID, protocol.NewError(errChunkRange))
		return
	}

	w.bcast.To(sessionID, protocol.ChunkDataMsg{
		Type:  protocol.TypeChunkData,
		Chunk: chunkPayload(w.store.ChunkMerged(cx, cy)),
	})
}

func (w *World) handlePlaceBlock(sessionID string, raw []byte) {
	var msg protocol.PlaceBlockMsg
	if err := json.Unmarshal(raw, &msg); err != nil ||
		msg.X == nil || msg.Y == nil || msg.Tile == nil ||
		!protocol.WholeNumber(*msg.X) || !protocol.WholeNumber(*msg.Y) || !protocol.WholeNumber(*msg.Tile) {
		w.bcast.To(sessionID, protocol.NewError(errBadBlockMsg))
		return
	}
	x, y, tile := int(*msg.X), int(*msg.Y), int(*msg.Tile)
	if !ValidTile(tile) {
		w.bcast.To(sessionID, protocol.NewError(errBadTile))
		return
	}

	snap, ok := w.players.Get(sessionID)
	if !ok {
		return
	}
	if !w.inBlockRange(snap, x, y) {
		w.bcast.To(sessionID, protocol.NewError(errBlockRange))
		return
	}

	if !w.store.Apply(Mutation{X: x, Y: y, Tile: Tile(tile), PlacedBy: sessionID}) {
		w.bcast.To(sessionID, protocol.NewError(errBadTile))
		return
	}
	metrics.BlockMutations.Inc()

	// Placing spends a matching item when the player carries one; it
	// never gates the placement itself.
	if name := Tile(tile).ItemName(); name != "" {
		w.players.Update(sessionID, func(p *Player) { p.Consume(name, 1) })
	}

	w.bcast.ToZone(snap.Zone, protocol.BlockUpdateMsg{
		Type:     protocol.TypeBlockUpdate,
		X:        x,
		Y:        y,
		Tile:     tile,
		PlacedBy: sessionID,
	}, "")
}

func (w *World) handleRemoveBlock(sessionID string, raw []byte) {
	var msg protocol.RemoveBlockMsg
	if err := json.Unmarshal(raw, &msg); err != nil ||
		msg.X == nil || msg.Y == nil ||
		!protocol.WholeNumber(*msg.X) || !protocol.WholeNumber(*msg.Y) {
		w.bcast.To(sessionID, protocol.NewError(errBadBlockMsg))
		return
	}
	x, y := int(*msg.X), int(*msg.Y)

	snap, ok := w.players.Get(sessionID)
	if !ok {
		return
	}
	if !w.inBlockRange(snap, x, y) {
		w.bcast.To(sessionID, protocol.NewError(errBlockRange))
		return
	}

	mined := w.store.GetTile(x, y)
	if mined == Air {
		w.bcast.To(sessionID, protocol.NewError(errRemoveAir))
		return
	}

	w.store.Apply(Mutation{X: x, Y: y, Tile: Air, PlacedBy: sessionID})
	metrics.BlockMutations.Inc()

	if name := mined.ItemName(); name != "" {
		w.players.Update(sessionID, func(p *Player) { p.Grant(name, "block", 1) })
	}

	w.bcast.ToZone(snap.Zone, protocol.BlockUpdateMsg{
		Type:     protocol.TypeBlockUpdate,
		X:        x,
		Y:        y,
		Tile:     int(Air),
		PlacedBy: sessionID,
	}, "")
}

// inBlockRange gates block mutations by Chebyshev distance from the
// avatar: 10 tiles for humans, 50 for declared agents.
func (w *World) inBlockRange(snap PlayerSnapshot, x, y int) bool {
	r := w.cfg.HumanRange
	if snap.IsAgent {
		r = w.cfg.AgentRange
	}
	return chebyshev(x-int(math.Round(snap.X)), y-int(math.Round(snap.Y))) <= r
}

func (w *World) handleSetProfile(sessionID string, raw []byte) {
	var msg protocol.SetProfileMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		w.bcast.To(sessionID, protocol.NewError(errBadFrame))
		return
	}

	var snap PlayerSnapshot
	ok := w.players.Update(sessionID, func(p *Player) {
		if msg.Name != nil {
			if name := protocol.CleanName(*msg.Name); name != "" {
				p.Name = name
			}
		}
		if msg.Color != nil && protocol.ValidColor(*msg.Color) {
			p.Color = *msg.Color
		}
		snap = p.snapshot()
	})
	if !ok {
		return
	}

	w.bcast.ToZone(snap.Zone, protocol.ProfileUpdateMsg{
		Type:  protocol.TypeProfileUpdate,
		ID:    snap.ID,
		Name:  snap.Name,
		Color: snap.Color,
	}, "")
}

func (w *World) handleIdentify(sessionID string, raw []byte) {
	var msg protocol.IdentifyMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		w.bcast.To(sessionID, protocol.NewError(errBadFrame))
		return
	}
	w.players.Update(sessionID, func(p *Player) { p.IsAgent = msg.IsAI })
}

func (w *World) handleInteract(sessionID string, raw []byte) {
	var msg protocol.InteractMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		w.bcast.To(sessionID, protocol.NewError(errBadFrame))
		return
	}
	w.bcast.To(sessionID, protocol.InteractResultMsg{
		Type:   protocol.TypeInteractResult,
		Target: msg.Target,
		Action: msg.Action,
		Result: "not_implemented",
	})
}

func chebyshev(dx, dy int) int {
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
