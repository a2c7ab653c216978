// Package indexdb keeps a SQLite read-model of mutation history and
// snapshot metadata. It is an observer only: the sim never reads from
// it, so a slow or broken index cannot affect authority.
package indexdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type MutationRow struct {
	ID      int64
	AtUnix  int64
	Session string
	X, Y    int
	Tile    int
}

type SnapshotRow struct {
	ID        int64
	AtUnix    int64
	Path      string
	Overrides int
	Players   int
}

// Index writes rows from a single background goroutine so the hot path
// never blocks on disk.
type Index struct {
	db *sql.DB

	ch   chan any
	wg   sync.WaitGroup
	once sync.Once
}

const schema = `
CREATE TABLE IF NOT EXISTS mutations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at_ms INTEGER NOT NULL,
	session TEXT NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	tile INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS mutations_at ON mutations(at_ms);
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	at_ms INTEGER NOT NULL,
	path TEXT NOT NULL,
	overrides INTEGER NOT NULL,
	players INTEGER NOT NULL
);
`

func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("indexdb schema: %w", err)
	}

	idx := &Index{db: db, ch: make(chan any, 256)}
	idx.wg.Add(1)
	go idx.writer()
	return idx, nil
}

func (i *Index) writer() {
	defer i.wg.Done()
	for row := range i.ch {
		switch r := row.(type) {
		case MutationRow:
			_, _ = i.db.Exec(
				`INSERT INTO mutations(at_ms, session, x, y, tile) VALUES(?,?,?,?,?)`,
				r.AtUnix, r.Session, r.X, r.Y, r.Tile)
		case SnapshotRow:
			_, _ = i.db.Exec(
				`INSERT INTO snapshots(at_ms, path, overrides, players) VALUES(?,?,?,?)`,
				r.AtUnix, r.Path, r.Overrides, r.Players)
		}
	}
}

// AddMutation enqueues a mutation row; full queues drop rather than
// block the sim.
func (i *Index) AddMutation(session string, x, y, tile int) {
	select {
	case i.ch <- MutationRow{AtUnix: time.Now().UnixMilli(), Session: session, X: x, Y: y, Tile: tile}:
	default:
	}
}

// AddSnapshot records snapshot metadata.
func (i *Index) AddSnapshot(path string, overrides, players int) {
	select {
	case i.ch <- SnapshotRow{AtUnix: time.Now().UnixMilli(), Path: path, Overrides: overrides, Players: players}:
	default:
	}
}

// RecentMutations returns up to limit rows, newest first.
func (i *Index) RecentMutations(limit int) ([]MutationRow, error) {
	rows, err := i.db.Query(
		`SELECT id, at_ms, session, x, y, tile FROM mutations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MutationRow
	for rows.Next() {
		var r MutationRow
		if err := rows.Scan(&r.ID, &r.AtUnix, &r.Session, &r.X, &r.Y, &r.Tile); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Snapshots returns all snapshot metadata rows, newest first.
func (i *Index) Snapshots() ([]SnapshotRow, error) {
	rows, err := i.db.Query(
		`SELECT id, at_ms, path, overrides, players FROM snapshots ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.ID, &r.AtUnix, &r.Path, &r.Overrides, &r.Players); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close drains the queue and closes the database.
func (i *Index) Close() error {
	i.once.Do(func() { close(i.ch) })
	i.wg.Wait()
	return i.db.Close()
}
