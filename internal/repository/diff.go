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

package repository

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// diskSentinel is the target_hash value meaning "compare against the
// file's current contents on disk" rather than a stored snapshot.
const diskSentinel = "__DISK__"

// GetFileDiff produces a unified diff of filePath between baseHash (or
// the file's empty state if baseHash is "") and targetHash. targetHash
// may be diskSentinel to diff against the live file on disk instead of
// a stored snapshot.
func (r *Repository) GetFileDiff(filePath, baseHash, targetHash string) (string, error) {
	rel, err := r.resolveRel(filePath)
	if err != nil {
		return "", err
	}

	var before []byte
	if baseHash != "" {
		before, err = r.GetContent(baseHash)
		if err != nil {
			return "", err
		}
	}

	var after []byte
	if targetHash == diskSentinel {
		after, err = os.ReadFile(filepath.Join(r.Root, rel))
		if err != nil {
			return "", mnemerr.NewIOError(rel, err)
		}
	} else {
		after, err = r.GetContent(targetHash)
		if err != nil {
			return "", err
		}
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: rel + "@" + firstNonEmpty(baseHash, "empty"),
		ToFile:   rel + "@" + targetHash,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", mnemerr.NewInternalError("Cannot compute diff", err.Error(), "", err)
	}
	return text, nil
}

func firstNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	return a
}

// Match is one hit of GrepContents.
type Match struct {
	FilePath     string
	LineNumber   int
	LineExcerpt  string
	SnapshotHash string
}

// GrepContents scans the latest snapshot of every tracked file (or only
// files matching fileFilter, a substring match on the path) for query,
// a plain substring search, returning every matching line.
func (r *Repository) GrepContents(query, fileFilter string) ([]Match, error) {
	files, err := r.db.ListFiles()
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, f := range files {
		if fileFilter != "" && !strings.Contains(f.FilePath, fileFilter) {
			continue
		}
		history, err := r.db.HistoryOf(f.FilePath, 1)
		if err != nil || len(history) == 0 {
			continue
		}
		latest := history[0]
		content, err := r.store.Read(latest.ContentHash)
		if err != nil {
			continue
		}
		for i, line := range strings.Split(string(content), "\n") {
			if strings.Contains(line, query) {
				matches = append(matches, Match{
					FilePath:     f.FilePath,
					LineNumber:   i + 1,
					LineExcerpt:  line,
					SnapshotHash: latest.ContentHash,
				})
			}
		}
	}
	return matches, nil
}

// SymbolMatch is one hit of FindSymbols: a symbol name matched against a
// substring query, together with the most recent delta recorded for it.
type SymbolMatch struct {
	SymbolName     string
	Kind           string
	FilePath       string
	StructuralHash string
}

// FindSymbols searches recorded symbol deltas for names containing
// query.
func (r *Repository) FindSymbols(query string) ([]SymbolMatch, error) {
	files, err := r.db.ListFiles()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []SymbolMatch
	for _, f := range files {
		history, err := r.db.HistoryOf(f.FilePath, 0)
		if err != nil {
			continue
		}
		for _, snap := range history {
			entries, err := r.db.SymbolsForSnapshot(snap.ID)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if !strings.Contains(e.SymbolName, query) {
					continue
				}
				key := f.FilePath + "|" + e.SymbolName
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, SymbolMatch{
					SymbolName:     e.SymbolName,
					Kind:           string(e.Kind),
					FilePath:       f.FilePath,
					StructuralHash: e.StructuralHash,
				})
			}
		}
	}
	return out, nil
}

// SymbolDeltaRecord is one entry of symbol.getSemanticHistory's response.
type SymbolDeltaRecord struct {
	Timestamp      time.Time
	FilePath       string
	Kind           string
	NewName        string
	StructuralHash string
}

// SemanticHistory returns every recorded change to symbolName, newest
// first, satisfying symbol.getSemanticHistory.
func (r *Repository) SemanticHistory(symbolName string) ([]SymbolDeltaRecord, error) {
	entries, err := r.db.SymbolHistory(symbolName, 0)
	if err != nil {
		return nil, err
	}
	out := make([]SymbolDeltaRecord, len(entries))
	for i, e := range entries {
		out[i] = SymbolDeltaRecord{
			Timestamp:      e.Snapshot.Timestamp,
			FilePath:       e.Snapshot.FilePath,
			Kind:           string(e.Symbol.Kind),
			NewName:        e.Symbol.NewName,
			StructuralHash: e.Symbol.StructuralHash,
		}
	}
	return out, nil
}
