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

package daemon

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/mnemosyne-project/mnemosyne/internal/metadb"
	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// unmarshal decodes raw into dst, wrapping malformed params as a
// Config-kind error so the dispatcher maps it to a wire InvalidParams.
func unmarshal(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return mnemerr.NewConfigError("Malformed params", err.Error(), "", err)
	}
	return nil
}

type projectScoped struct {
	ProjectPath string `json:"project_path"`
}

// registerHandlers wires every IPC method in the server's capability
// list to a Daemon-backed implementation.
func (d *Daemon) registerHandlers() {
	d.Dispatcher.Handle("daemon.getStatus", d.handleGetStatus)
	d.Dispatcher.Handle("snapshot.list", d.handleSnapshotList)
	d.Dispatcher.Handle("snapshot.get", d.handleSnapshotGet)
	d.Dispatcher.Handle("snapshot.restore.v1", d.handleSnapshotRestore)
	d.Dispatcher.Handle("snapshot.restoreSymbol.v1", d.handleSnapshotRestoreSymbol)
	d.Dispatcher.Handle("file.getInfo", d.handleFileGetInfo)
	d.Dispatcher.Handle("file.getDiff", d.handleFileGetDiff)
	d.Dispatcher.Handle("symbol.getSemanticHistory", d.handleSymbolHistory)
	d.Dispatcher.Handle("content.grep", d.handleContentGrep)
	d.Dispatcher.Handle("symbol.find", d.handleSymbolFind)
	d.Dispatcher.Handle("checkpoint.create", d.handleCheckpointCreate)
	d.Dispatcher.Handle("checkpoint.list", d.handleCheckpointList)
	d.Dispatcher.Handle("checkpoint.revert", d.handleCheckpointRevert)
	d.Dispatcher.Handle("maintenance.gc", d.handleMaintenanceGC)
	d.Dispatcher.Handle("git.recordCommit", d.handleGitRecordCommit)
	d.Dispatcher.Handle("git.history", d.handleGitHistory)
	d.Dispatcher.Handle("mcp.start", d.handleMCPStub)
	d.Dispatcher.Handle("mcp.stop", d.handleMCPStub)
	d.Dispatcher.Handle("mcp.status", d.handleMCPStub)
}

func (d *Daemon) handleGetStatus(json.RawMessage) (any, error) {
	return d.Status()
}

func (d *Daemon) handleSnapshotList(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		FilePath string `json:"file_path"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	return repo.ListSnapshots(params.FilePath)
}

func (d *Daemon) handleSnapshotGet(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		ContentHash string `json:"content_hash"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	content, err := repo.GetContent(params.ContentHash)
	if err != nil {
		return nil, err
	}
	return map[string]string{"content": base64.StdEncoding.EncodeToString(content)}, nil
}

func (d *Daemon) handleSnapshotRestore(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		ContentHash string `json:"content_hash"`
		TargetPath  string `json:"target_path"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	if err := repo.RestoreFile(params.ContentHash, params.TargetPath); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

// handleSnapshotRestoreSymbol extracts the named construct from the
// snapshot and splices it into the live file in place of its current
// body, via the language-specific parser adapter in internal/symbols.
// Fails with Semantic when no adapter covers the file's extension or
// the symbol can't be located in either version.
func (d *Daemon) handleSnapshotRestoreSymbol(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		ContentHash string `json:"content_hash"`
		TargetPath  string `json:"target_path"`
		SymbolName  string `json:"symbol_name"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	if err := repo.RestoreSymbol(params.ContentHash, params.TargetPath, params.SymbolName); err != nil {
		return nil, err
	}
	d.logger.Info("daemon.restore_symbol", "symbol", params.SymbolName, "target", params.TargetPath)
	return struct{}{}, nil
}

func (d *Daemon) handleFileGetInfo(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		FilePath string `json:"file_path"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	return repo.GetFileInfo(params.FilePath)
}

func (d *Daemon) handleFileGetDiff(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		FilePath   string `json:"file_path"`
		BaseHash   string `json:"base_hash"`
		TargetHash string `json:"target_hash"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	diff, err := repo.GetFileDiff(params.FilePath, params.BaseHash, params.TargetHash)
	if err != nil {
		return nil, err
	}
	return map[string]string{"diff": diff}, nil
}

func (d *Daemon) handleSymbolHistory(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		SymbolName string `json:"symbol_name"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	deltas, err := repo.SemanticHistory(params.SymbolName)
	if err != nil {
		return nil, err
	}
	return map[string]any{"deltas": deltas}, nil
}

func (d *Daemon) handleContentGrep(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		Query      string `json:"query"`
		FileFilter string `json:"file_filter"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	matches, err := repo.GrepContents(params.Query, params.FileFilter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"matches": matches}, nil
}

func (d *Daemon) handleSymbolFind(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		Query string `json:"query"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	matches, err := repo.FindSymbols(params.Query)
	if err != nil {
		return nil, err
	}
	return map[string]any{"matches": matches}, nil
}

func (d *Daemon) handleCheckpointCreate(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		Message string `json:"message"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	hash, err := repo.CreateCheckpoint(params.Message)
	if err != nil {
		return nil, err
	}
	return map[string]string{"checkpoint_hash": hash}, nil
}

func (d *Daemon) handleCheckpointList(raw json.RawMessage) (any, error) {
	var params projectScoped
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	return repo.ListCheckpoints()
}

func (d *Daemon) handleCheckpointRevert(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		CheckpointHash string `json:"checkpoint_hash"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	restored, err := repo.RevertToCheckpoint(params.CheckpointHash)
	if err != nil {
		return nil, err
	}
	return map[string]int{"files_restored": restored}, nil
}

func (d *Daemon) handleMaintenanceGC(raw json.RawMessage) (any, error) {
	var params projectScoped
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	pruned, err := repo.RunGC()
	if err != nil {
		return nil, err
	}
	d.gcRuns.Inc()
	return map[string]int{"pruned": pruned}, nil
}

func (d *Daemon) handleGitRecordCommit(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		CommitHash string `json:"commit_hash"`
		Message    string `json:"message"`
		Author     string `json:"author"`
		Timestamp  int64  `json:"timestamp"`
		Files      []struct {
			FilePath     string `json:"file_path"`
			SnapshotHash string `json:"snapshot_hash"`
		} `json:"files"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}

	ts := time.Now()
	if params.Timestamp > 0 {
		ts = time.Unix(params.Timestamp, 0)
	}
	files := make([]metadb.GitCommitFile, len(params.Files))
	for i, f := range params.Files {
		files[i] = metadb.GitCommitFile{FilePath: f.FilePath, SnapshotHash: f.SnapshotHash}
	}

	if err := repo.RecordGitCommit(metadb.GitCommit{
		Hash:      params.CommitHash,
		Message:   params.Message,
		Author:    params.Author,
		Timestamp: ts,
		Files:     files,
	}); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

// handleGitHistory backfills commit history for a file from git itself,
// covering commits that predate the Git Commit Link hook's installation
// and so were never reported through git.recordCommit.
func (d *Daemon) handleGitHistory(raw json.RawMessage) (any, error) {
	var params struct {
		projectScoped
		FilePath string `json:"file_path"`
		Limit    int    `json:"limit"`
	}
	if err := unmarshal(raw, &params); err != nil {
		return nil, err
	}
	repo, err := d.openRepository(params.ProjectPath)
	if err != nil {
		return nil, err
	}
	commits, err := repo.GitHistory(d.ctx, params.FilePath, params.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"commits": commits}, nil
}

// handleMCPStub answers the three mcp.* methods without actually
// running an MCP server: bridging to the Model Context Protocol is an
// external-collaborator concern, never implemented here.
func (d *Daemon) handleMCPStub(json.RawMessage) (any, error) {
	return map[string]any{"running": false, "transport": "stdio"}, nil
}
