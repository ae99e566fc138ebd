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

// Package gitlink shells out to git to support the Git Commit Link
// feature: an external post-commit hook reports a commit and its touched
// files, which the daemon links to the snapshots already recorded for
// those files.
package gitlink

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Runner is the interface for executing git commands, so callers can
// substitute a fake in tests.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
	RepoPath() string
}

// Executor runs real git commands rooted at a discovered repository.
type Executor struct {
	repoPath string
}

// NewExecutor discovers the git repository root containing startPath.
func NewExecutor(startPath string) (*Executor, error) {
	if startPath == "" {
		return nil, fmt.Errorf("startPath cannot be empty")
	}
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}

	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = absPath
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("not a git repository: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("git not found or not installed: %w", err)
	}

	repoPath := strings.TrimSpace(string(output))
	if repoPath == "" {
		return nil, fmt.Errorf("could not determine git repository root")
	}
	return &Executor{repoPath: repoPath}, nil
}

// RepoPath returns the absolute repository root.
func (g *Executor) RepoPath() string { return g.repoPath }

// Run executes a git subcommand rooted at the repository, capturing
// stdout and folding stderr into the returned error.
func (g *Executor) Run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("no git command specified")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git command timed out or canceled: %w", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s failed: %s", args[0], msg)
		}
		return "", fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return stdout.String(), nil
}

// CommitFile is one file touched by a commit, paired with the content
// hash of its state at that commit (supplied by the hook, which already
// knows the snapshot hash it just recorded for the file).
type CommitFile struct {
	Path        string
	ContentHash string
}

// Commit is the payload an external post-commit hook reports to the
// git.recordCommit IPC method.
type Commit struct {
	Hash      string
	Message   string
	Author    string
	Timestamp string
	Files     []CommitFile
}

// Log returns the last n commits touching path, newest first, via
// `git log --format`. Used to backfill Git Commit Link history for a
// file that predates the hook being installed.
func Log(ctx context.Context, runner Runner, path string, n int) ([]Commit, error) {
	if n <= 0 {
		n = 10
	}
	out, err := runner.Run(ctx, "log",
		fmt.Sprintf("-n%d", n),
		"--format=%H|%an|%aI|%s",
		"--", path,
	)
	if err != nil {
		return nil, err
	}

	var commits []Commit
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		if len(parts) != 4 {
			continue
		}
		commits = append(commits, Commit{
			Hash:      parts[0],
			Author:    parts[1],
			Timestamp: parts[2],
			Message:   parts[3],
		})
	}
	return commits, nil
}
