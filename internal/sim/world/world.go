package world

import (
	"fmt"
	"log"
	"math"
	"time"

	"aetharia.world/internal/protocol"
)

// Config carries the world parameters. Zero values are filled in by
// Defaults; tests construct small variants directly.
type Config struct {
	Seed   int64
	SpawnX int

	Zones       []ZoneDef
	DefaultZone string

	TickInterval time.Duration
	Gravity      float64 // tiles/s^2, positive is down
	MaxFall      float64 // tiles/s
	JumpImpulse  float64 // tiles/s, negative is up

	MaxMoveDelta float64
	HumanRange   int
	AgentRange   int
	ChunkRadius  int

	DefaultName  string
	DefaultColor string
	Debug        bool
}

// Defaults returns the stock configuration: 20 ticks/s physics,
// delta cap 20, block range 10/50, chunk radius 5.
func Defaults() Config {
	return Config{
		Seed:         12345,
		SpawnX:       0,
		DefaultZone:  "zone_central",
		TickInterval: 50 * time.Millisecond,
		Gravity:      30,
		MaxFall:      25,
		JumpImpulse:  -14,
		MaxMoveDelta: 20,
		HumanRange:   10,
		AgentRange:   50,
		ChunkRadius:  5,
		DefaultName:  "wanderer",
		DefaultColor: "#55AA77",
	}
}

func (c Config) withDefaults() Config {
	d := Defaults()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.Gravity == 0 {
		c.Gravity = d.Gravity
	}
	if c.MaxFall == 0 {
		c.MaxFall = d.MaxFall
	}
	if c.JumpImpulse == 0 {
		c.JumpImpulse = d.JumpImpulse
	}
	if c.MaxMoveDelta == 0 {
		c.MaxMoveDelta = d.MaxMoveDelta
	}
	if c.HumanRange == 0 {
		c.HumanRange = d.HumanRange
	}
	if c.AgentRange == 0 {
		c.AgentRange = d.AgentRange
	}
	if c.ChunkRadius == 0 {
		c.ChunkRadius = d.ChunkRadius
	}
	if c.DefaultZone == "" {
		c.DefaultZone = d.DefaultZone
	}
	if c.DefaultName == "" {
		c.DefaultName = d.DefaultName
	}
	if c.DefaultColor == "" {
		c.DefaultColor = d.DefaultColor
	}
	return c
}

// World is the authoritative simulation node: it owns the terrain
// store, the zone index and the player registry, and routes every
// accepted message. Handlers receive it explicitly; there is no global
// state, so tests can run several worlds side by side.
type World struct {
	cfg Config
	log *log.Logger

	gen     *Generator
	store   *Store
	zones   *ZoneIndex
	players *Registry
	bcast   *Broadcaster
}

func New(cfg Config, logger *log.Logger) *World {
	cfg = cfg.withDefaults()
	gen := &Generator{Seed: cfg.Seed}
	zones := NewZoneIndex(cfg.Zones, cfg.DefaultZone)
	return &World{
		cfg:     cfg,
		log:     logger,
		gen:     gen,
		store:   NewStore(gen),
		zones:   zones,
		players: NewRegistry(),
		bcast:   NewBroadcaster(zones),
	}
}

func (w *World) Config() Config            { return w.cfg }
func (w *World) Store() *Store             { return w.store }
func (w *World) Zones() *ZoneIndex         { return w.zones }
func (w *World) Players() *Registry        { return w.players }
func (w *World) Broadcaster() *Broadcaster { return w.bcast }

func (w *World) debugf(format string, args ...any) {
	if w.cfg.Debug && w.log != nil {
		w.log.Printf(format, args...)
	}
}

// Join creates the player for a fresh session, registers its outbox,
// assigns its spawn zone and announces it. The returned welcome frame
// carries the 3x3 merged chunk grid around the spawn point.
func (w *World) Join(sessionID string, out Outbox) protocol.WelcomeMsg {
	spawnX, spawnY := w.SpawnPoint()

	p := &Player{
		ID:       sessionID,
		Name:     w.cfg.DefaultName,
		Color:    w.cfg.DefaultColor,
		X:        float64(spawnX),
		Y:        float64(spawnY),
		OnGround: true,
		Inventory: []ItemStack{
			{Name: "dirt", Type: "block", Quantity: 32},
			{Name: "wood", Type: "block", Quantity: 16},
		},
		LastMessage: time.Now(),
	}
	zone := w.zones.Assign(sessionID, spawnX, spawnY)
	p.Zone = zone
	w.players.Add(p)
	w.bcast.Register(sessionID, out)

	welcome := protocol.WelcomeMsg{
		Type:   protocol.TypeWelcome,
		ID:     sessionID,
		Name:   p.Name,
		Color:  p.Color,
		X:      p.X,
		Y:      p.Y,
		Zone:   zone,
		Chunks: w.chunkGrid(ChunkOf(spawnX), ChunkOf(spawnY)),
		WorldConfig: protocol.WorldConfig{
			ChunkSize: ChunkSize,
			TileSize:  32,
		},
	}

	w.bcast.ToZone(zone, protocol.PlayerJoinedMsg{
		Type:  protocol.TypePlayerJoined,
		ID:    p.ID,
		Name:  p.Name,
		Color: p.Color,
		X:     p.X,
		Y:     p.Y,
	}, sessionID)

	w.bcast.To(sessionID, w.existingPlayers(sessionID))

	w.debugf("join %s zone=%s spawn=(%d,%d)", sessionID, zone, spawnX, spawnY)
	return welcome
}

// Leave destroys the session's player and announces the departure to
// its last zone.
func (w *World) Leave(sessionID string) {
	w.bcast.Unregister(sessionID)
	zone := w.zones.Remove(sessionID)
	snap, ok := w.players.Remove(sessionID)
	if !ok {
		return
	}
	if zone == "" {
		zone = snap.Zone
	}
	w.bcast.ToZone(zone, protocol.PlayerLeftMsg{
		Type:  protocol.TypePlayerLeft,
		ID:    snap.ID,
		Name:  snap.Name,
		Color: snap.Color,
	}, sessionID)
	w.debugf("leave %s zone=%s", sessionID, zone)
}

func (w *World) existingPlayers(exceptID string) protocol.ExistingPlayersMsg {
	snaps := w.players.Snapshots()
	msg := protocol.ExistingPlayersMsg{
		Type:    protocol.TypeExistingPlayers,
		Players: make([]protocol.PlayerInfo, 0, len(snaps)),
	}
	for _, s := range snaps {
		if s.ID == exceptID {
			continue
		}
		msg.Players = append(msg.Players, protocol.PlayerInfo{
			ID:    s.ID,
			Name:  s.Name,
			Color: s.Color,
			X:     s.X,
			Y:     s.Y,
		})
	}
	return msg
}

func (w *World) chunkGrid(cx, cy int) map[string]protocol.ChunkPayload {
	grid := make(map[string]protocol.ChunkPayload, 9)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			ch := w.store.ChunkMerged(cx+dx, cy+dy)
			grid[protocol.ChunkGridKey(ch.CX, ch.CY)] = chunkPayload(ch)
		}
	}
	return grid
}

func chunkPayload(ch *Chunk) protocol.ChunkPayload {
	tiles := make([][]int, ChunkSize)
	for y := 0; y < ChunkSize; y++ {
		row := make([]int, ChunkSize)
		for x := 0; x < ChunkSize; x++ {
			row[x] = int(ch.Tiles[y][x])
		}
		tiles[y] = row
	}
	return protocol.ChunkPayload{X: ch.CX, Y: ch.CY, Tiles: tiles}
}

// tileFloor maps a float position to the tile containing it.
func tileFloor(v float64) int {
	return int(math.Floor(v))
}

func (w *World) String() string {
	return fmt.Sprintf("world(seed=%d players=%d)", w.cfg.Seed, w.players.Len())
}
