package world

import (
	"encoding/json"
	"sync"

	"aetharia.world/internal/metrics"
)

// Outbox is a session's outbound frame queue. The transport drains it
// from a dedicated writer goroutine.
type Outbox chan []byte

// Broadcaster fans serialized frames out to zone member sessions. A
// message is marshaled once per broadcast and the same buffer is
// written to every recipient.
type Broadcaster struct {
	zones *ZoneIndex

	mu       sync.RWMutex
	outboxes map[string]Outbox
}

func NewBroadcaster(zones *ZoneIndex) *Broadcaster {
	return &Broadcaster{
		zones:    zones,
		outboxes: map[string]Outbox{},
	}
}

func (b *Broadcaster) Register(sessionID string, out Outbox) {
	b.mu.Lock()
	b.outboxes[sessionID] = out
	b.mu.Unlock()
}

func (b *Broadcaster) Unregister(sessionID string) {
	b.mu.Lock()
	delete(b.outboxes, sessionID)
	b.mu.Unlock()
}

// ToZone sends msg to every member of a zone except excludeID. Writes
// to closed or saturated sessions are dropped; the heartbeat cycle
// cleans those sessions up.
func (b *Broadcaster) ToZone(zoneID string, msg any, excludeID string) {
	members := b.zones.Members(zoneID)
	if len(members) == 0 {
		return
	}
	buf, err := json.Marshal(msg)
	if err != nil {
		return
	}
	sent := 0
	for _, id := range members {
		if id == excludeID {
			continue
		}
		if b.send(id, buf) {
			sent++
		}
	}
	metrics.BroadcastFanout.Observe(float64(sent))
}

// To sends msg to a single session.
func (b *Broadcaster) To(sessionID string, msg any) {
	buf, err := json.Marshal(msg)
	if err != nil {
		return
	}
	b.send(sessionID, buf)
}

func (b *Broadcaster) send(sessionID string, buf []byte) bool {
	b.mu.RLock()
	out, ok := b.outboxes[sessionID]
	b.mu.RUnlock()
	if !ok {
		metrics.FramesDropped.Inc()
		return false
	}
	select {
	case out <- buf:
		return true
	default:
		// Best effort: a session that cannot drain loses frames.
		metrics.FramesDropped.Inc()
		return false
	}
}
