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

// Package repository couples a Content Store and a Metadata Database for
// one project, exposing the save/restore/history/GC/checkpoint contract.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mnemosyne-project/mnemosyne/internal/config"
	"github.com/mnemosyne-project/mnemosyne/internal/gitlink"
	"github.com/mnemosyne-project/mnemosyne/internal/hashid"
	"github.com/mnemosyne-project/mnemosyne/internal/ignore"
	"github.com/mnemosyne-project/mnemosyne/internal/metadb"
	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
	"github.com/mnemosyne-project/mnemosyne/internal/store"
	"github.com/mnemosyne-project/mnemosyne/internal/symbols"
)

// Repository is one project's Content Store plus Metadata Database.
// Thread-safe: writeMu serialises checkpoint creation and GC against
// each other; every other method, including RestoreFile, RestoreSymbol
// and RevertToCheckpoint, runs without it and may run concurrently.
type Repository struct {
	ProjectID string
	Root      string

	store  *store.TieredStore
	db     *metadb.DB
	cfg    *config.Repository
	ignore *ignore.Policy
	syms   *symbols.Extractor
	logger *slog.Logger

	writeMu sync.Mutex
}

// Open opens (creating if absent) the store and metadata DB rooted at
// vaultDir for the project at root.
func Open(projectID, root, vaultDir string, cfg *config.Repository, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tierCfg := store.TierConfig{
		HotWindowHours:       cfg.HotWindowHours,
		WarmWindowDays:       cfg.WarmWindowDays,
		ColdCompressionLevel: cfg.ColdCompressionLevel,
	}
	s, err := store.Open(vaultDir, tierCfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := metadb.Open(filepath.Join(vaultDir, "db.sqlite"))
	if err != nil {
		return nil, err
	}

	pol, err := ignore.Load(root, cfg.RespectGitignore, cfg.RespectMnemignore)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{
		ProjectID: projectID,
		Root:      root,
		store:     s,
		db:        db,
		cfg:       cfg,
		ignore:    pol,
		syms:      symbols.NewExtractor(),
		logger:    logger,
	}, nil
}

// Close releases the underlying database connection.
func (r *Repository) Close() error { return r.db.Close() }

// Excluded reports whether relPath should never be snapshotted. Also
// satisfies monitor.Recorder.
func (r *Repository) Excluded(relPath string) bool { return r.ignore.Excluded(relPath) }

// resolveRel maps an absolute or relative path to one relative to Root,
// rejecting any path that escapes the project root.
func (r *Repository) resolveRel(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.Root, path)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(r.Root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", mnemerr.NewPathTraversalError(path)
	}
	return rel, nil
}

// SaveSnapshot computes the content hash of bytes, writes it to the
// store if not already present, and appends a snapshot row. Idempotent
// on (file_path, bytes): the same bytes always produce the same hash.
// When the hash matches the file's current head snapshot, no new row
// is appended — this module takes the dedup option the contract
// allows, since an unattended daemon re-observes unchanged files far
// more often than a human-driven save ever would (debounce retriggers,
// restart-time rescans).
func (r *Repository) SaveSnapshot(filePath string, content []byte) (string, error) {
	rel, err := r.resolveRel(filePath)
	if err != nil {
		return "", err
	}

	hash := hashid.ContentHash(content)

	if head, err := r.db.HistoryOf(rel, 1); err == nil && len(head) == 1 && head[0].ContentHash == hash {
		return hash, nil
	}

	if !r.store.Exists(hash) {
		if err := r.store.Write(hash, content); err != nil {
			return "", err
		}
	}

	if _, err := r.db.InsertSnapshot(metadb.Snapshot{
		ProjectID:   r.ProjectID,
		FilePath:    rel,
		ContentHash: hash,
		Timestamp:   time.Now(),
	}); err != nil {
		return "", err
	}
	return hash, nil
}

// headMatches reports whether content's hash equals rel's current head
// snapshot, i.e. nothing has actually changed since it was last
// recorded.
func (r *Repository) headMatches(rel string, content []byte) (bool, error) {
	head, err := r.db.HistoryOf(rel, 1)
	if err != nil {
		return false, mnemerr.NewDatabaseError("Cannot read snapshot history", err.Error(), "", err)
	}
	if len(head) != 1 {
		return false, nil
	}
	return head[0].ContentHash == hashid.ContentHash(content), nil
}

// SaveSnapshotFromFile reads path from disk and delegates to
// SaveSnapshot, enforcing the max file size and ignore policy first.
// Skips entirely (no snapshot row, no symbol delta) when the file's
// content is unchanged from its current head snapshot: an unattended
// daemon re-observes unchanged files far more often than a
// human-driven save ever would (debounce retriggers, restart-time
// rescans), and the contract allows deduplicating consecutive
// identical observations.
func (r *Repository) SaveSnapshotFromFile(path string) error {
	rel, err := r.resolveRel(path)
	if err != nil {
		return err
	}
	if r.ignore.Excluded(filepath.ToSlash(rel)) {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return mnemerr.NewIOError(path, err)
	}
	if r.cfg.MaxFileSizeBytes > 0 && info.Size() > r.cfg.MaxFileSizeBytes {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return mnemerr.NewIOError(path, err)
	}

	unchanged, err := r.headMatches(rel, content)
	if err != nil {
		return err
	}
	if unchanged {
		return nil
	}

	hash, err := r.SaveSnapshot(rel, content)
	if err != nil {
		return err
	}

	if symbols.Supported(rel) {
		r.recordSymbolDelta(rel, hash, content)
	}
	return nil
}

// recordSymbolDelta diffs the new content against the previous snapshot
// of the same file and persists the resulting deltas. Failures are
// logged and swallowed: symbol records are advisory (spec's data model
// says their absence never invalidates a snapshot).
func (r *Repository) recordSymbolDelta(rel, newHash string, newContent []byte) {
	history, err := r.db.HistoryOf(rel, 2)
	if err != nil || len(history) < 2 {
		return
	}
	prevHash := history[1].ContentHash
	prevContent, err := r.store.Read(prevHash)
	if err != nil {
		return
	}

	before, err := r.syms.Extract(rel, prevContent)
	if err != nil {
		return
	}
	after, err := r.syms.Extract(rel, newContent)
	if err != nil {
		return
	}

	deltas := symbols.Diff(before, after)
	if len(deltas) == 0 {
		return
	}

	snapshotID := history[0].ID
	records := make([]metadb.Symbol, len(deltas))
	for i, d := range deltas {
		records[i] = metadb.Symbol{
			SnapshotID:     snapshotID,
			SymbolName:     d.SymbolName,
			Kind:           metadb.SymbolKind(d.Kind),
			NewName:        d.NewName,
			StructuralHash: d.StructuralHash,
		}
	}
	if err := r.db.InsertSymbols(records); err != nil {
		r.logger.Warn("repository.symbol_insert_failed", "path", rel, "error", err)
	}
}

// GetContent performs the store's waterfall read.
func (r *Repository) GetContent(hash string) ([]byte, error) {
	if !hashid.ValidContentHash(hash) {
		return nil, mnemerr.NewSecurityError("Malformed content hash", hash)
	}
	return r.store.Read(hash)
}

// RestoreFile reads hash's blob and writes it to targetPath atomically.
func (r *Repository) RestoreFile(hash, targetPath string) error {
	if !hashid.ValidContentHash(hash) {
		return mnemerr.NewSecurityError("Malformed content hash", hash)
	}
	rel, err := r.resolveRel(targetPath)
	if err != nil {
		return err
	}
	content, err := r.store.Read(hash)
	if err != nil {
		return err
	}
	return r.writeFileAtomic(filepath.Join(r.Root, rel), content)
}

// RestoreSymbol extracts the named construct from hash's snapshot
// content using the Tree-sitter adapter for targetPath's extension, and
// splices it in place of that construct's current body in the live
// file. Fails with Semantic if no adapter covers the extension, if the
// symbol cannot be located in the snapshot, or if it is no longer
// present in the live file to splice into.
func (r *Repository) RestoreSymbol(hash, targetPath, symbolName string) error {
	if !hashid.ValidContentHash(hash) {
		return mnemerr.NewSecurityError("Malformed content hash", hash)
	}
	rel, err := r.resolveRel(targetPath)
	if err != nil {
		return err
	}

	snapshotContent, err := r.store.Read(hash)
	if err != nil {
		return err
	}
	snapshotSymbols, err := r.syms.Extract(rel, snapshotContent)
	if err != nil {
		return err
	}
	snapshotSym, ok := findSymbol(snapshotSymbols, symbolName)
	if !ok {
		return mnemerr.NewSemanticError("Symbol not found in snapshot",
			symbolName+" is not present in the snapshot content")
	}
	body := snapshotContent[snapshotSym.StartByte:snapshotSym.EndByte]

	absPath := filepath.Join(r.Root, rel)
	liveContent, err := os.ReadFile(absPath)
	if err != nil {
		return mnemerr.NewIOError(absPath, err)
	}
	liveSymbols, err := r.syms.Extract(rel, liveContent)
	if err != nil {
		return err
	}
	liveSym, ok := findSymbol(liveSymbols, symbolName)
	if !ok {
		return mnemerr.NewSemanticError("Symbol not found in current file",
			symbolName+" is not present in the current content of "+rel)
	}

	spliced := make([]byte, 0, len(liveContent)-(liveSym.EndByte-liveSym.StartByte)+len(body))
	spliced = append(spliced, liveContent[:liveSym.StartByte]...)
	spliced = append(spliced, body...)
	spliced = append(spliced, liveContent[liveSym.EndByte:]...)

	return r.writeFileAtomic(absPath, spliced)
}

func findSymbol(syms []symbols.Symbol, name string) (symbols.Symbol, bool) {
	for _, s := range syms {
		if s.Name == name {
			return s, true
		}
	}
	return symbols.Symbol{}, false
}

func (r *Repository) writeFileAtomic(absPath string, content []byte) error {
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return mnemerr.NewIOError(dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".mnem-restore-*")
	if err != nil {
		return mnemerr.NewIOError(dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return mnemerr.NewIOError(tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return mnemerr.NewIOError(tmpPath, err)
	}
	if err := os.Rename(tmpPath, absPath); err != nil {
		os.Remove(tmpPath)
		return mnemerr.NewIOError(absPath, err)
	}
	return nil
}

// FileState is one entry of a checkpoint's file_states set.
type FileState struct {
	FilePath    string `json:"file_path"`
	ContentHash string `json:"content_hash"`
}

// CreateCheckpoint enumerates every currently-tracked file, ensures each
// has a snapshot matching its live content, and persists the resulting
// {(path, hash)} set. Serialised per repository.
func (r *Repository) CreateCheckpoint(message string) (string, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	files, err := r.db.ListFiles()
	if err != nil {
		return "", err
	}

	states := make([]FileState, 0, len(files))
	for _, f := range files {
		absPath := filepath.Join(r.Root, f.FilePath)
		content, err := os.ReadFile(absPath)
		if err != nil {
			continue
		}
		hash := hashid.ContentHash(content)

		history, err := r.db.HistoryOf(f.FilePath, 1)
		if err != nil {
			return "", err
		}
		if len(history) == 0 || history[0].ContentHash != hash {
			if _, err := r.SaveSnapshot(f.FilePath, content); err != nil {
				return "", err
			}
		}
		states = append(states, FileState{FilePath: f.FilePath, ContentHash: hash})
	}

	sort.Slice(states, func(i, j int) bool { return states[i].FilePath < states[j].FilePath })

	statesJSON, err := json.Marshal(states)
	if err != nil {
		return "", mnemerr.NewInternalError("Cannot encode checkpoint", err.Error(), "", err)
	}
	checkpointHash := hashid.ContentHash(statesJSON)

	if _, err := r.db.InsertCheckpoint(metadb.Checkpoint{
		CheckpointHash: checkpointHash,
		Timestamp:      time.Now(),
		Message:        message,
		FileStatesJSON: string(statesJSON),
	}); err != nil {
		return "", err
	}
	return checkpointHash, nil
}

// ListCheckpoints returns every recorded checkpoint, newest first.
func (r *Repository) ListCheckpoints() ([]metadb.CheckpointSummary, error) {
	return r.db.ListCheckpoints()
}

// RevertToCheckpoint writes every file in the checkpoint's file_states
// back to disk atomically. Files present on disk but absent from the
// checkpoint are left untouched. Returns the number of files restored.
func (r *Repository) RevertToCheckpoint(hash string) (int, error) {
	cp, err := r.db.CheckpointByHash(hash)
	if err != nil {
		return 0, err
	}
	var states []FileState
	if err := json.Unmarshal([]byte(cp.FileStatesJSON), &states); err != nil {
		return 0, mnemerr.NewInternalError("Cannot decode checkpoint file states", err.Error(), "", err)
	}

	restored := 0
	for _, fs := range states {
		content, err := r.store.Read(fs.ContentHash)
		if err != nil {
			r.logger.Warn("repository.checkpoint_restore_missing_blob", "path", fs.FilePath, "hash", fs.ContentHash)
			continue
		}
		if err := r.writeFileAtomic(filepath.Join(r.Root, fs.FilePath), content); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

// RunGC collects every ContentHash reachable from snapshot rows and
// checkpoint file_states, and deletes any blob not in that set. Holds
// the write lock for the duration of the sweep.
func (r *Repository) RunGC() (int, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	reachable, err := r.db.AllReachableHashes()
	if err != nil {
		return 0, err
	}

	checkpointBlobs, err := r.db.CheckpointFileStatesJSON()
	if err != nil {
		return 0, err
	}
	for _, raw := range checkpointBlobs {
		var states []FileState
		if err := json.Unmarshal([]byte(raw), &states); err != nil {
			continue
		}
		for _, fs := range states {
			reachable[fs.ContentHash] = true
		}
	}

	return r.store.GCUnreachable(reachable)
}

// RunMigration delegates to the Content Store's tier migration.
func (r *Repository) RunMigration() (int, error) {
	return r.store.Migrate()
}

// SnapshotInfo is one entry of snapshot.list.
type SnapshotInfo struct {
	ContentHash string    `json:"content_hash"`
	Timestamp   time.Time `json:"timestamp"`
	Branch      string    `json:"branch,omitempty"`
}

// ListSnapshots returns filePath's full snapshot history, newest first.
func (r *Repository) ListSnapshots(filePath string) ([]SnapshotInfo, error) {
	rel, err := r.resolveRel(filePath)
	if err != nil {
		return nil, err
	}
	history, err := r.db.HistoryOf(rel, 0)
	if err != nil {
		return nil, err
	}
	out := make([]SnapshotInfo, len(history))
	for i, h := range history {
		out[i] = SnapshotInfo{ContentHash: h.ContentHash, Timestamp: h.Timestamp, Branch: h.Branch}
	}
	return out, nil
}

// FileInfo is the payload of file.getInfo.
type FileInfo struct {
	Path          string    `json:"path"`
	SnapshotCount int       `json:"snapshot_count"`
	TotalSizeHuman string   `json:"total_size_human"`
	Earliest      time.Time `json:"earliest"`
	Latest        time.Time `json:"latest"`
}

// GetFileInfo summarises filePath's tracked history.
func (r *Repository) GetFileInfo(filePath string) (FileInfo, error) {
	rel, err := r.resolveRel(filePath)
	if err != nil {
		return FileInfo{}, err
	}
	history, err := r.db.HistoryOf(rel, 0)
	if err != nil {
		return FileInfo{}, err
	}
	if len(history) == 0 {
		return FileInfo{}, mnemerr.NewNotFoundError("No history for file", rel)
	}

	var totalBytes int64
	for _, h := range history {
		if size, err := r.store.Size(h.ContentHash); err == nil {
			totalBytes += size
		}
	}

	return FileInfo{
		Path:           rel,
		SnapshotCount:  len(history),
		TotalSizeHuman: humanBytes(totalBytes),
		Earliest:       history[len(history)-1].Timestamp,
		Latest:         history[0].Timestamp,
	}, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for n/div >= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// RecordGitCommit persists a commit and the snapshot hash each of its
// touched files maps to, wiring the git.recordCommit IPC method into the
// metadata database. An external git hook is the expected caller for
// recording new commits as they land.
func (r *Repository) RecordGitCommit(c metadb.GitCommit) error {
	return r.db.InsertGitCommit(c)
}

// ListGitCommits returns every recorded commit, newest first.
func (r *Repository) ListGitCommits() ([]metadb.GitCommit, error) {
	return r.db.ListCommits()
}

// GitHistory shells out to git to backfill commit history for filePath
// predating Git Commit Link hook installation, i.e. for commits the hook
// never reported through RecordGitCommit. Returns NotFound if the
// project root isn't a git working tree.
func (r *Repository) GitHistory(ctx context.Context, filePath string, limit int) ([]gitlink.Commit, error) {
	rel, err := r.resolveRel(filePath)
	if err != nil {
		return nil, err
	}

	executor, err := gitlink.NewExecutor(r.Root)
	if err != nil {
		return nil, mnemerr.NewNotFoundError("Not a git working tree", err.Error())
	}
	return gitlink.Log(ctx, executor, rel, limit)
}

// Stats is a point-in-time summary of one repository's size, used to
// build the daemon-wide status response.
type Stats struct {
	TotalSnapshots int
	TotalSymbols   int
	SizeBytes      int64
}

// Stats gathers the repository's snapshot count, symbol count, and
// total on-disk blob size.
func (r *Repository) Stats() (Stats, error) {
	snapshots, err := r.db.CountSnapshots()
	if err != nil {
		return Stats{}, err
	}
	symbolCount, err := r.db.CountSymbols()
	if err != nil {
		return Stats{}, err
	}
	size, err := r.store.TotalSize()
	if err != nil {
		return Stats{}, err
	}
	return Stats{TotalSnapshots: snapshots, TotalSymbols: symbolCount, SizeBytes: size}, nil
}
