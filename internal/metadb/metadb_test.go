package metadb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndHistoryOf(t *testing.T) {
	db := openTestDB(t)

	_, err := db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "a.go", ContentHash: "hash1", Timestamp: time.Now()})
	require.NoError(t, err)
	_, err = db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "a.go", ContentHash: "hash2", Timestamp: time.Now().Add(time.Second)})
	require.NoError(t, err)

	history, err := db.HistoryOf("a.go", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "hash2", history[0].ContentHash)
}

func TestInsertSnapshotDedupesOnIdenticalRow(t *testing.T) {
	db := openTestDB(t)
	ts := time.Now()

	id1, err := db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "a.go", ContentHash: "h", Timestamp: ts})
	require.NoError(t, err)
	id2, err := db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "a.go", ContentHash: "h", Timestamp: ts})
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestSnapshotsByHash(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "a.go", ContentHash: "shared", Timestamp: time.Now()})
	require.NoError(t, err)
	_, err = db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "b.go", ContentHash: "shared", Timestamp: time.Now()})
	require.NoError(t, err)

	rows, err := db.SnapshotsByHash("shared")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestListFilesAndBranches(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "a.go", ContentHash: "h1", Timestamp: time.Now(), Branch: "main"})
	require.NoError(t, err)
	_, err = db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "b.go", ContentHash: "h2", Timestamp: time.Now(), Branch: "dev"})
	require.NoError(t, err)

	files, err := db.ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 2)

	branches, err := db.ListBranches()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"dev", "main"}, branches)
}

func TestSymbolHistory(t *testing.T) {
	db := openTestDB(t)
	id, err := db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "a.go", ContentHash: "h1", Timestamp: time.Now()})
	require.NoError(t, err)

	require.NoError(t, db.InsertSymbols([]Symbol{
		{SnapshotID: id, SymbolName: "Foo", Kind: SymbolModified, StructuralHash: "sh1"},
	}))

	hist, err := db.SymbolHistory("Foo", 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, SymbolModified, hist[0].Symbol.Kind)
}

func TestCheckpointRoundTrip(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertCheckpoint(Checkpoint{
		CheckpointHash: "cp1",
		Timestamp:      time.Now(),
		Message:        "before refactor",
		FileStatesJSON: `[{"file_path":"a.go","content_hash":"h1"}]`,
	})
	require.NoError(t, err)

	got, err := db.CheckpointByHash("cp1")
	require.NoError(t, err)
	require.Equal(t, "before refactor", got.Message)

	list, err := db.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCheckpointByHashNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.CheckpointByHash("missing")
	require.Error(t, err)
}

func TestGitCommitRoundTrip(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.InsertGitCommit(GitCommit{
		Hash:      "abc123",
		Message:   "fix bug",
		Author:    "Jane Dev",
		Timestamp: time.Now(),
		Files:     []GitCommitFile{{FilePath: "a.go", SnapshotHash: "h1"}},
	}))

	commits, err := db.ListCommits()
	require.NoError(t, err)
	require.Len(t, commits, 1)
	require.Len(t, commits[0].Files, 1)
}

func TestAllReachableHashes(t *testing.T) {
	db := openTestDB(t)
	_, err := db.InsertSnapshot(Snapshot{ProjectID: "p1", FilePath: "a.go", ContentHash: "h1", Timestamp: time.Now()})
	require.NoError(t, err)

	reachable, err := db.AllReachableHashes()
	require.NoError(t, err)
	require.True(t, reachable["h1"])
}
