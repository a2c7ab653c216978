// Package snapshot captures recoverable world state: the override map
// and the player table. Snapshots are zstd-compressed JSON so current
// world state survives a restart; historical replay is out of scope.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int   `json:"version"`
	Seed      int64 `json:"seed"`
	TakenUnix int64 `json:"taken_unix_ms"`
}

type OverrideV1 struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Tile int `json:"tile"`
}

type ItemV1 struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

type PlayerV1 struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Color     string   `json:"color"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	IsAgent   bool     `json:"is_agent,omitempty"`
	Inventory []ItemV1 `json:"inventory,omitempty"`
}

type SnapshotV1 struct {
	Header    Header       `json:"header"`
	Overrides []OverrideV1 `json:"overrides"`
	Players   []PlayerV1   `json:"players"`
}

// Write stores snap atomically: temp file, fsync, rename.
func Write(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a snapshot written by Write.
func Load(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()
	if err := json.NewDecoder(dec).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot %s: unsupported version %d", path, snap.Header.Version)
	}
	return snap, nil
}

// FileName returns the canonical name for a snapshot taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("snap-%s.json.zst", t.UTC().Format("20060102-150405"))
}

// Latest returns the newest snapshot path in dir, or "" when none
// exists.
func Latest(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "snap-") && strings.HasSuffix(e.Name(), ".json.zst") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}
