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

// Package ignore layers a project's .gitignore and .mnemignore files into
// a single match policy the Monitor and Repository consult before
// snapshotting a path.
package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// alwaysExcluded directories are never traversed or snapshotted,
// regardless of ignore-file configuration.
var alwaysExcluded = map[string]bool{
	".git":         true,
	".mnemosyne":   true,
	"node_modules": true,
}

// Policy decides whether a path under a project root should be skipped.
type Policy struct {
	root    string
	git     *gitignore.GitIgnore
	mnem    *gitignore.GitIgnore
	useGit  bool
	useMnem bool
}

// Load builds a Policy for projectRoot. respectGitignore/respectMnemignore
// control whether each file is consulted at all; a missing file under an
// enabled flag is treated as an empty ignore list, not an error.
func Load(projectRoot string, respectGitignore, respectMnemignore bool) (*Policy, error) {
	p := &Policy{root: projectRoot, useGit: respectGitignore, useMnem: respectMnemignore}

	if respectGitignore {
		if ig, err := loadIgnoreFile(filepath.Join(projectRoot, ".gitignore")); err == nil {
			p.git = ig
		}
	}
	if respectMnemignore {
		if ig, err := loadIgnoreFile(filepath.Join(projectRoot, ".mnemignore")); err == nil {
			p.mnem = ig
		}
	}
	return p, nil
}

func loadIgnoreFile(path string) (*gitignore.GitIgnore, error) {
	if _, err := os.Stat(path); err != nil {
		return gitignore.CompileIgnoreLines(), nil
	}
	return gitignore.CompileIgnoreFile(path)
}

// Excluded reports whether relPath (relative to the project root, forward
// slashes) should be skipped.
func (p *Policy) Excluded(relPath string) bool {
	first := relPath
	if idx := firstSegmentEnd(relPath); idx >= 0 {
		first = relPath[:idx]
	}
	if alwaysExcluded[first] {
		return true
	}
	if p.useGit && p.git != nil && p.git.MatchesPath(relPath) {
		return true
	}
	if p.useMnem && p.mnem != nil && p.mnem.MatchesPath(relPath) {
		return true
	}
	return false
}

func firstSegmentEnd(relPath string) int {
	for i, r := range relPath {
		if r == '/' {
			return i
		}
	}
	return -1
}
