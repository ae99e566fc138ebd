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

package metadb

import (
	"database/sql"
	"time"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// Checkpoint is a row of the checkpoints table; FileStatesJSON is the
// canonical serialisation of {(file_path, content_hash)} the
// checkpoint_hash was computed over.
type Checkpoint struct {
	ID             int64
	CheckpointHash string
	Timestamp      time.Time
	Message        string
	FileStatesJSON string
}

// InsertCheckpoint persists a checkpoint row.
func (db *DB) InsertCheckpoint(c Checkpoint) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	res, err := db.conn.Exec(
		`INSERT INTO checkpoints (checkpoint_hash, timestamp, message, file_states_json) VALUES (?, ?, ?, ?)`,
		c.CheckpointHash, c.Timestamp.UnixNano(), nullableString(c.Message), c.FileStatesJSON,
	)
	if err != nil {
		return 0, mnemerr.NewDatabaseError("Cannot insert checkpoint", err.Error(), "", err)
	}
	return res.LastInsertId()
}

// CheckpointSummary is one row of list_checkpoints.
type CheckpointSummary struct {
	CheckpointHash string
	Timestamp      time.Time
	Message        string
}

// ListCheckpoints returns every checkpoint, newest first.
func (db *DB) ListCheckpoints() ([]CheckpointSummary, error) {
	rows, err := db.conn.Query(
		`SELECT checkpoint_hash, timestamp, message FROM checkpoints ORDER BY timestamp DESC`)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot list checkpoints", err.Error(), "", err)
	}
	defer rows.Close()

	var out []CheckpointSummary
	for rows.Next() {
		var (
			c       CheckpointSummary
			message sql.NullString
			tsNanos int64
		)
		if err := rows.Scan(&c.CheckpointHash, &tsNanos, &message); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan checkpoint row", err.Error(), "", err)
		}
		c.Timestamp = timeFromNanos(tsNanos)
		c.Message = message.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// CheckpointByHash returns the full checkpoint row, or NotFound.
func (db *DB) CheckpointByHash(hash string) (Checkpoint, error) {
	row := db.conn.QueryRow(
		`SELECT id, checkpoint_hash, timestamp, message, file_states_json FROM checkpoints WHERE checkpoint_hash = ?`, hash)

	var (
		c       Checkpoint
		message sql.NullString
		tsNanos int64
	)
	if err := row.Scan(&c.ID, &c.CheckpointHash, &tsNanos, &message, &c.FileStatesJSON); err != nil {
		if err == sql.ErrNoRows {
			return Checkpoint{}, mnemerr.NewNotFoundError("Checkpoint not found", "no checkpoint with hash "+hash)
		}
		return Checkpoint{}, mnemerr.NewDatabaseError("Cannot load checkpoint", err.Error(), "", err)
	}
	c.Timestamp = timeFromNanos(tsNanos)
	c.Message = message.String
	return c, nil
}

// CheckpointFileStatesJSON returns the raw file_states_json document of
// every persisted checkpoint. GC decodes these to union the content
// hashes they reference with the snapshot-reachable set.
func (db *DB) CheckpointFileStatesJSON() ([]string, error) {
	rows, err := db.conn.Query(`SELECT file_states_json FROM checkpoints`)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot enumerate checkpoint file states", err.Error(), "", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var j string
		if err := rows.Scan(&j); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan checkpoint file states", err.Error(), "", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// GitCommit is a row of git_commits, with its affected files joined in.
type GitCommit struct {
	Hash      string
	Message   string
	Author    string
	Timestamp time.Time
	Files     []GitCommitFile
}

// GitCommitFile is a row of git_commit_files.
type GitCommitFile struct {
	FilePath     string
	SnapshotHash string
}

// InsertGitCommit records a commit and its touched files in one
// transaction. Called from the git.recordCommit IPC handler.
func (db *DB) InsertGitCommit(c GitCommit) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return mnemerr.NewDatabaseError("Cannot start commit transaction", err.Error(), "", err)
	}

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO git_commits (commit_hash, message, author, timestamp) VALUES (?, ?, ?, ?)`,
		c.Hash, c.Message, c.Author, c.Timestamp.UnixNano(),
	); err != nil {
		tx.Rollback()
		return mnemerr.NewDatabaseError("Cannot insert git commit", err.Error(), "", err)
	}

	for _, f := range c.Files {
		if _, err := tx.Exec(
			`INSERT INTO git_commit_files (commit_hash, file_path, snapshot_hash) VALUES (?, ?, ?)`,
			c.Hash, f.FilePath, f.SnapshotHash,
		); err != nil {
			tx.Rollback()
			return mnemerr.NewDatabaseError("Cannot insert git commit file", err.Error(), "", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mnemerr.NewDatabaseError("Cannot commit git commit transaction", err.Error(), "", err)
	}
	return nil
}

// ListCommits returns every recorded commit, newest first, with its
// affected files joined in.
func (db *DB) ListCommits() ([]GitCommit, error) {
	rows, err := db.conn.Query(
		`SELECT commit_hash, message, author, timestamp FROM git_commits ORDER BY timestamp DESC`)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot list commits", err.Error(), "", err)
	}
	defer rows.Close()

	var commits []GitCommit
	for rows.Next() {
		var (
			c       GitCommit
			tsNanos int64
		)
		if err := rows.Scan(&c.Hash, &c.Message, &c.Author, &tsNanos); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan commit row", err.Error(), "", err)
		}
		c.Timestamp = timeFromNanos(tsNanos)
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range commits {
		files, err := db.commitFiles(commits[i].Hash)
		if err != nil {
			return nil, err
		}
		commits[i].Files = files
	}
	return commits, nil
}

func (db *DB) commitFiles(hash string) ([]GitCommitFile, error) {
	rows, err := db.conn.Query(
		`SELECT file_path, snapshot_hash FROM git_commit_files WHERE commit_hash = ?`, hash)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot list commit files", err.Error(), "", err)
	}
	defer rows.Close()

	var out []GitCommitFile
	for rows.Next() {
		var f GitCommitFile
		if err := rows.Scan(&f.FilePath, &f.SnapshotHash); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan commit file row", err.Error(), "", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
