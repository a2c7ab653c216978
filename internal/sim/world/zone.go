package world

import "sync"

// ZoneDef is a named rectangle in chunk-coordinate space, bounds
// inclusive. Named zones must not overlap; the default zone absorbs
// every position no named zone matches, so each position maps to
// exactly one zone.
type ZoneDef struct {
	ID   string
	MinX int
	MaxX int
	MinY int
	MaxY int
}

func (z ZoneDef) contains(cx, cy int) bool {
	return cx >= z.MinX && cx <= z.MaxX && cy >= z.MinY && cy <= z.MaxY
}

// ZoneIndex tracks which sessions are in which zone. It is the
// broadcast scope: a session appears in at most one zone's member set
// at any observable instant.
type ZoneIndex struct {
	defs      []ZoneDef
	defaultID string

	mu      sync.Mutex
	members map[string]map[string]struct{} // zone id -> session ids
	current map[string]string              // session id -> zone id
}

func NewZoneIndex(defs []ZoneDef, defaultID string) *ZoneIndex {
	return &ZoneIndex{
		defs:      defs,
		defaultID: defaultID,
		members:   map[string]map[string]struct{}{},
		current:   map[string]string{},
	}
}

// ZoneOf maps a world tile position to its zone id.
func (z *ZoneIndex) ZoneOf(tileX, tileY int) string {
	cx := ChunkOf(tileX)
	cy := ChunkOf(tileY)
	for _, d := range z.defs {
		if d.contains(cx, cy) {
			return d.ID
		}
	}
	return z.defaultID
}

// Assign moves a session into the zone containing (tileX, tileY),
// removing it from its previous zone first. Idempotent when the zone
// is unchanged. Returns the new zone id.
func (z *ZoneIndex) Assign(sessionID string, tileX, tileY int) string {
	zone := z.ZoneOf(tileX, tileY)

	z.mu.Lock()
	defer z.mu.Unlock()

	if prev, ok := z.current[sessionID]; ok {
		if prev == zone {
			return zone
		}
		delete(z.members[prev], sessionID)
		if len(z.members[prev]) == 0 {
			delete(z.members, prev)
		}
	}
	set, ok := z.members[zone]
	if !ok {
		set = map[string]struct{}{}
		z.members[zone] = set
	}
	set[sessionID] = struct{}{}
	z.current[sessionID] = zone
	return zone
}

// Remove drops a session from the index. Returns the zone it was in,
// or "" if it was not tracked.
func (z *ZoneIndex) Remove(sessionID string) string {
	z.mu.Lock()
	defer z.mu.Unlock()

	zone, ok := z.current[sessionID]
	if !ok {
		return ""
	}
	delete(z.current, sessionID)
	delete(z.members[zone], sessionID)
	if len(z.members[zone]) == 0 {
		delete(z.members, zone)
	}
	return zone
}

// Members returns a point-in-time snapshot of the session ids in a zone.
func (z *ZoneIndex) Members(zoneID string) []string {
	z.mu.Lock()
	defer z.mu.Unlock()

	set := z.members[zoneID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Current returns the zone a session is assigned to, or "".
func (z *ZoneIndex) Current(sessionID string) string {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.current[sessionID]
}
