// Package tuning loads the world tuning file: physics constants,
// anti-abuse limits and the zone map. A missing file means compiled-in
// defaults; a malformed file is a startup error.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Physics struct {
	TickMs      int     `yaml:"tick_ms"`
	Gravity     float64 `yaml:"gravity"`
	MaxFall     float64 `yaml:"max_fall"`
	JumpImpulse float64 `yaml:"jump_impulse"`
}

type Limits struct {
	MaxMoveDelta         float64 `yaml:"max_move_delta"`
	HumanRange           int     `yaml:"human_range"`
	AgentRange           int     `yaml:"agent_range"`
	ChunkRadius          int     `yaml:"chunk_radius"`
	MinMessageIntervalMs int     `yaml:"min_message_interval_ms"`
}

// Zone is a named inclusive rectangle in chunk coordinates.
type Zone struct {
	ID   string `yaml:"id"`
	MinX int    `yaml:"min_x"`
	MaxX int    `yaml:"max_x"`
	MinY int    `yaml:"min_y"`
	MaxY int    `yaml:"max_y"`
}

type Tuning struct {
	SpawnX  int     `yaml:"spawn_x"`
	Physics Physics `yaml:"physics"`
	Limits  Limits  `yaml:"limits"`

	Zones       []Zone `yaml:"zones"`
	DefaultZone string `yaml:"default_zone"`
}

// Defaults returns the stock tuning: 20 Hz physics, delta cap 20,
// block range 10/50, chunk radius 5, and a small zone map around the
// spawn chunks with zone_wilds absorbing the remainder.
func Defaults() Tuning {
	return Tuning{
		SpawnX: 0,
		Physics: Physics{
			TickMs:      50,
			Gravity:     30,
			MaxFall:     25,
			JumpImpulse: -14,
		},
		Limits: Limits{
			MaxMoveDelta:         20,
			HumanRange:           10,
			AgentRange:           50,
			ChunkRadius:          5,
			MinMessageIntervalMs: 50,
		},
		Zones: []Zone{
			{ID: "zone_central", MinX: -2, MaxX: 2, MinY: -2, MaxY: 2},
			{ID: "zone_north", MinX: -2, MaxX: 2, MinY: -8, MaxY: -3},
			{ID: "zone_south", MinX: -2, MaxX: 2, MinY: 3, MaxY: 8},
			{ID: "zone_east", MinX: 3, MaxX: 8, MinY: -8, MaxY: 8},
			{ID: "zone_west", MinX: -8, MaxX: -3, MinY: -8, MaxY: 8},
		},
		DefaultZone: "zone_wilds",
	}
}

// Load reads path, layering the file over Defaults. Named zones must
// not overlap; overlap makes zone membership ambiguous and is rejected
// at startup rather than discovered mid-broadcast.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Physics.TickMs <= 0 {
		return fmt.Errorf("tuning: tick_ms must be positive")
	}
	if t.DefaultZone == "" {
		return fmt.Errorf("tuning: default_zone is required")
	}
	seen := map[string]struct{}{}
	for _, z := range t.Zones {
		if z.ID == "" {
			return fmt.Errorf("tuning: zone with empty id")
		}
		if _, dup := seen[z.ID]; dup {
			return fmt.Errorf("tuning: duplicate zone id %q", z.ID)
		}
		seen[z.ID] = struct{}{}
		if z.MinX > z.MaxX || z.MinY > z.MaxY {
			return fmt.Errorf("tuning: zone %q has inverted bounds", z.ID)
		}
	}
	for i, a := range t.Zones {
		for _, b := range t.Zones[i+1:] {
			if a.MinX <= b.MaxX && b.MinX <= a.MaxX && a.MinY <= b.MaxY && b.MinY <= a.MaxY {
				return fmt.Errorf("tuning: zones %q and %q overlap", a.ID, b.ID)
			}
		}
	}
	return nil
}
