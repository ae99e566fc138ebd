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

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// SymbolKind is the closed set of semantic deltas a symbol diff produces.
type SymbolKind string

const (
	SymbolAdded    SymbolKind = "Added"
	SymbolModified SymbolKind = "Modified"
	SymbolDeleted  SymbolKind = "Deleted"
	SymbolRenamed  SymbolKind = "Renamed"
)

// Symbol is one row of the symbols table: a semantic delta attached to a
// snapshot.
type Symbol struct {
	SnapshotID     int64
	SymbolName     string
	Kind           SymbolKind
	NewName        string
	StructuralHash string
}

// InsertSymbols records every symbol delta for a snapshot in one
// transaction.
func (db *DB) InsertSymbols(symbols []Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return mnemerr.NewDatabaseError("Cannot start symbol transaction", err.Error(), "", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO symbols (snapshot_id, symbol_name, kind, new_name, structural_hash) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return mnemerr.NewDatabaseError("Cannot prepare symbol insert", err.Error(), "", err)
	}
	defer stmt.Close()

	for _, s := range symbols {
		if _, err := stmt.Exec(s.SnapshotID, s.SymbolName, string(s.Kind), nullableString(s.NewName), s.StructuralHash); err != nil {
			tx.Rollback()
			return mnemerr.NewDatabaseError("Cannot insert symbol", err.Error(), "", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return mnemerr.NewDatabaseError("Cannot commit symbol transaction", err.Error(), "", err)
	}
	return nil
}

// SymbolsForSnapshot returns every symbol delta recorded against
// snapshotID.
func (db *DB) SymbolsForSnapshot(snapshotID int64) ([]Symbol, error) {
	rows, err := db.conn.Query(
		`SELECT snapshot_id, symbol_name, kind, new_name, structural_hash FROM symbols WHERE snapshot_id = ?`,
		snapshotID,
	)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot query symbols for snapshot", err.Error(), "", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		var (
			s       Symbol
			kind    string
			newName sql.NullString
		)
		if err := rows.Scan(&s.SnapshotID, &s.SymbolName, &kind, &newName, &s.StructuralHash); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan symbol row", err.Error(), "", err)
		}
		s.Kind = SymbolKind(kind)
		s.NewName = newName.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// SymbolHistoryEntry pairs a snapshot with the symbol delta recorded on
// it, for symbol_history's contract of [(Snapshot, SymbolRecord)].
type SymbolHistoryEntry struct {
	Snapshot Snapshot
	Symbol   Symbol
}

// SymbolHistory returns every recorded change to symbolName, newest
// first.
func (db *DB) SymbolHistory(symbolName string, limit int) ([]SymbolHistoryEntry, error) {
	query := `
		SELECT s.id, s.project_id, s.file_path, s.content_hash, s.timestamp, s.branch, s.parent_id,
		       sym.symbol_name, sym.kind, sym.new_name, sym.structural_hash
		FROM symbols sym
		JOIN snapshots s ON s.id = sym.snapshot_id
		WHERE sym.symbol_name = ?
		ORDER BY s.timestamp DESC`
	args := []any{symbolName}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, mnemerr.NewDatabaseError("Cannot query symbol history", err.Error(), "", err)
	}
	defer rows.Close()

	var out []SymbolHistoryEntry
	for rows.Next() {
		var (
			e        SymbolHistoryEntry
			branch   sql.NullString
			parentID sql.NullInt64
			newName  sql.NullString
			tsNanos  int64
			kind     string
		)
		if err := rows.Scan(
			&e.Snapshot.ID, &e.Snapshot.ProjectID, &e.Snapshot.FilePath, &e.Snapshot.ContentHash, &tsNanos, &branch, &parentID,
			&e.Symbol.SymbolName, &kind, &newName, &e.Symbol.StructuralHash,
		); err != nil {
			return nil, mnemerr.NewDatabaseError("Cannot scan symbol history row", err.Error(), "", err)
		}
		e.Snapshot.Timestamp = timeFromNanos(tsNanos)
		e.Snapshot.Branch = branch.String
		if parentID.Valid {
			id := parentID.Int64
			e.Snapshot.ParentID = &id
		}
		e.Symbol.SnapshotID = e.Snapshot.ID
		e.Symbol.Kind = SymbolKind(kind)
		e.Symbol.NewName = newName.String
		out = append(out, e)
	}
	return out, rows.Err()
}
