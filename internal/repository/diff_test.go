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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetFileDiffBetweenSnapshots(t *testing.T) {
	r := openTestRepo(t)

	h1, err := r.SaveSnapshot("note.txt", []byte("line one\nline two\n"))
	require.NoError(t, err)
	h2, err := r.SaveSnapshot("note.txt", []byte("line one\nline three\n"))
	require.NoError(t, err)

	diff, err := r.GetFileDiff("note.txt", h1, h2)
	require.NoError(t, err)
	require.Contains(t, diff, "-line two")
	require.Contains(t, diff, "+line three")
}

func TestGetFileDiffAgainstDisk(t *testing.T) {
	r := openTestRepo(t)

	h1, err := r.SaveSnapshot("note.txt", []byte("v1\n"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(r.Root, "note.txt"), []byte("v2\n"), 0o644))

	diff, err := r.GetFileDiff("note.txt", h1, diskSentinel)
	require.NoError(t, err)
	require.Contains(t, diff, "-v1")
	require.Contains(t, diff, "+v2")
}

func TestGrepContentsFindsMatchInLatestSnapshot(t *testing.T) {
	r := openTestRepo(t)
	_, err := r.SaveSnapshot("a.go", []byte("package main\nfunc needle() {}\n"))
	require.NoError(t, err)
	_, err = r.SaveSnapshot("b.go", []byte("package main\nfunc other() {}\n"))
	require.NoError(t, err)

	matches, err := r.GrepContents("needle", "")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "a.go", matches[0].FilePath)
	require.Equal(t, 2, matches[0].LineNumber)
}

func TestGrepContentsHonorsFileFilter(t *testing.T) {
	r := openTestRepo(t)
	_, err := r.SaveSnapshot("src/a.go", []byte("needle here\n"))
	require.NoError(t, err)
	_, err = r.SaveSnapshot("docs/a.go", []byte("needle here too\n"))
	require.NoError(t, err)

	matches, err := r.GrepContents("needle", "src/")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.True(t, strings.HasPrefix(matches[0].FilePath, "src/"))
}

func TestFindSymbolsAndSemanticHistory(t *testing.T) {
	r := openTestRepo(t)

	src1 := []byte("package main\n\nfunc Alpha() {}\n")
	src2 := []byte("package main\n\nfunc Alpha() { println(1) }\n")

	path := filepath.Join(r.Root, "main.go")
	require.NoError(t, os.WriteFile(path, src1, 0o644))
	require.NoError(t, r.SaveSnapshotFromFile(path))
	require.NoError(t, os.WriteFile(path, src2, 0o644))
	require.NoError(t, r.SaveSnapshotFromFile(path))

	matches, err := r.FindSymbols("Alpha")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	deltas, err := r.SemanticHistory("Alpha")
	require.NoError(t, err)
	require.NotEmpty(t, deltas)
}
