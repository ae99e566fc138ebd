// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metadb is the embedded, append-only metadata database backing
// one Repository: snapshots, symbols, checkpoints, and git commit links.
package metadb

import (
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	branch TEXT,
	parent_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_snapshots_path_ts ON snapshots(file_path, timestamp);
CREATE INDEX IF NOT EXISTS idx_snapshots_hash ON snapshots(content_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_dedup ON snapshots(file_path, content_hash, timestamp);

CREATE TABLE IF NOT EXISTS symbols (
	snapshot_id INTEGER NOT NULL,
	symbol_name TEXT NOT NULL,
	kind TEXT NOT NULL,
	new_name TEXT,
	structural_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(symbol_name);
CREATE INDEX IF NOT EXISTS idx_symbols_snapshot ON symbols(snapshot_id);

CREATE TABLE IF NOT EXISTS checkpoints (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	checkpoint_hash TEXT NOT NULL UNIQUE,
	timestamp INTEGER NOT NULL,
	message TEXT,
	file_states_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS git_commits (
	commit_hash TEXT PRIMARY KEY,
	message TEXT NOT NULL,
	author TEXT NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS git_commit_files (
	commit_hash TEXT NOT NULL,
	file_path TEXT NOT NULL,
	snapshot_hash TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commit_files_hash ON git_commit_files(commit_hash);
`

// DB wraps a sqlite connection for one project. Writes are serialised
// through writeMu; reads use the pool's own connection concurrency.
type DB struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// Open creates (or reuses) the sqlite file at path and applies the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot open metadata database", err.Error(), "", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, mnemerr.NewDatabaseError("Cannot initialise schema", err.Error(), "", err)
	}
	return &DB{conn: conn}, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// Snapshot is one row of the snapshots table.
type Snapshot struct {
	ID          int64
	ProjectID   string
	FilePath    string
	ContentHash string
	Timestamp   time.Time
	Branch      string
	ParentID    *int64
}

// InsertSnapshot appends a snapshot row, serialised against other writes.
// Idempotent on (file_path, content_hash, timestamp): a duplicate insert
// is treated as a no-op rather than an error.
func (db *DB) InsertSnapshot(s Snapshot) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.conn.Exec(
		`INSERT OR IGNORE INTO snapshots (project_id, file_path, content_hash, timestamp, branch, parent_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ProjectID, s.FilePath, s.ContentHash, s.Timestamp.UnixNano(), nullableString(s.Branch), s.ParentID,
	)
	if err != nil {
		return 0, mnemerr.NewDatabaseError("Cannot insert snapshot", err.Error(), "", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mnemerr.NewDatabaseError("Cannot read inserted snapshot id", err.Error(), "", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, mnemerr.NewDatabaseError("Cannot read inserted snapshot count", err.Error(), "", err)
	}
	if affected == 0 {
		// INSERT OR IGNORE hit the dedup index; look the existing row up.
		row := db.conn.QueryRow(
			`SELECT id FROM snapshots WHERE file_path = ? AND content_hash = ? AND timestamp = ?`,
			s.FilePath, s.ContentHash, s.Timestamp.UnixNano(),
		)
		if err := row.Scan(&id); err != nil {
			return 0, mnemerr.NewDatabaseError("Cannot resolve deduplicated snapshot", err.Error(), "", err)
		}
	}
	return id, nil
}

// HistoryOf returns the snapshots of filePath, newest first, limited to
// limit rows (0 means unlimited).
func (db *DB) HistoryOf(filePath string, limit int) ([]Snapshot, error) {
	query := `SELECT id, project_id, file_path, content_hash, timestamp, branch, parent_id
	          FROM snapshots WHERE file_path = ? ORDER BY timestamp DESC`
	args := []any{filePath}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return db.querySnapshots(query, args...)
}

// SnapshotsByHash returns every snapshot row referencing hash.
func (db *DB) SnapshotsByHash(hash string) ([]Snapshot, error) {
	return db.querySnapshots(
		`SELECT id, project_id, file_path, content_hash, timestamp, branch, parent_id
		 FROM snapshots WHERE content_hash = ? ORDER BY timestamp DESC`, hash)
}

// RecentActivity returns the most recent snapshots across every file in
// the project, newest first.
func (db *DB) RecentActivity(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	return db.querySnapshots(
		`SELECT id, project_id, file_path, content_hash, timestamp, branch, parent_id
		 FROM snapshots ORDER BY timestamp DESC LIMIT ?`, limit)
}

// FileCount is one row of list_files: a tracked path and how many
// snapshots it has accumulated.
type FileCount struct {
	FilePath      string
	SnapshotCount int
}

// ListFiles returns every distinct file path with its snapshot count.
func (db *DB) ListFiles() ([]FileCount, error) {
	rows, err := db.conn.Query(
		`SELECT file_path, COUNT(*) FROM snapshots GROUP BY file_path ORDER BY file_path`)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot list files", err.Error(), "", err)
	}
	defer rows.Close()

	var out []FileCount
	for rows.Next() {
		var fc FileCount
		if err := rows.Scan(&fc.FilePath, &fc.SnapshotCount); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan file row", err.Error(), "", err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// CountSnapshots returns the total number of snapshot rows recorded.
func (db *DB) CountSnapshots() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, mnemerr.NewDatabaseError("Cannot count snapshots", err.Error(), "", err)
	}
	return n, nil
}

// CountSymbols returns the total number of symbol delta rows recorded.
func (db *DB) CountSymbols() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&n); err != nil {
		return 0, mnemerr.NewDatabaseError("Cannot count symbols", err.Error(), "", err)
	}
	return n, nil
}

// ListBranches returns every distinct non-null branch name recorded.
func (db *DB) ListBranches() ([]string, error) {
	rows, err := db.conn.Query(
		`SELECT DISTINCT branch FROM snapshots WHERE branch IS NOT NULL ORDER BY branch`)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot list branches", err.Error(), "", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan branch row", err.Error(), "", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AllReachableHashes returns the distinct content hashes referenced by
// any snapshot row. Used by GC together with checkpoint file_states.
func (db *DB) AllReachableHashes() (map[string]bool, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT content_hash FROM snapshots`)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot enumerate reachable hashes", err.Error(), "", err)
	}
	defer rows.Close()

	reachable := make(map[string]bool)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan hash row", err.Error(), "", err)
		}
		reachable[h] = true
	}
	return reachable, rows.Err()
}

// DeleteSnapshotsExceptHash removes every snapshot row for filePath whose
// content_hash differs from keepHash. Exposed for tests that simulate a
// pruned history ahead of a garbage-collection sweep; production code
// never deletes snapshot rows.
func (db *DB) DeleteSnapshotsExceptHash(filePath, keepHash string) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.conn.Exec(
		`DELETE FROM snapshots WHERE file_path = ? AND content_hash != ?`, filePath, keepHash)
	if err != nil {
		return 0, mnemerr.NewDatabaseError("Cannot delete snapshot rows", err.Error(), "", err)
	}
	return res.RowsAffected()
}

func (db *DB) querySnapshots(query string, args ...any) ([]Snapshot, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot query snapshots", err.Error(), "", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			s        Snapshot
			branch   sql.NullString
			parentID sql.NullInt64
			tsNanos  int64
		)
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.FilePath, &s.ContentHash, &tsNanos, &branch, &parentID); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan snapshot row", err.Error(), "", err)
		}
		s.Timestamp = time.Unix(0, tsNanos)
		s.Branch = branch.String
		if parentID.Valid {
			id := parentID.Int64
			s.ParentID = &id
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timeFromNanos(n int64) time.Time { return time.Unix(0, n) }
