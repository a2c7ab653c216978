package indexdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := Open(path)
	require.NoError(t, err)

	idx.AddMutation("a", 2, 0, 2)
	idx.AddMutation("a", 2, 0, 0)
	idx.AddMutation("b", -7, 12, 6)
	require.NoError(t, idx.Close()) // drains the writer queue

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()

	rows, err := idx.RecentMutations(10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Newest first.
	assert.Equal(t, "b", rows[0].Session)
	assert.Equal(t, -7, rows[0].X)
	assert.Equal(t, 2, rows[2].Tile)

	limited, err := idx.RecentMutations(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b", limited[0].Session)
}

func TestSnapshotsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	idx.AddSnapshot("/data/snap-1.json.zst", 12, 3)

	// The writer is asynchronous; poll briefly for the row.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rows, err := idx.Snapshots()
		require.NoError(t, err)
		if len(rows) == 1 {
			assert.Equal(t, "/data/snap-1.json.zst", rows[0].Path)
			assert.Equal(t, 12, rows[0].Overrides)
			assert.Equal(t, 3, rows[0].Players)
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot row never appeared")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
