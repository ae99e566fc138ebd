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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mnemosyne-project/mnemosyne/internal/config"
	"github.com/mnemosyne-project/mnemosyne/internal/hashid"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	root := t.TempDir()
	vault := t.TempDir()
	cfg := config.DefaultRepository()

	r, err := Open("proj1", root, vault, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestDedupAcrossReversion(t *testing.T) {
	r := openTestRepo(t)

	hA, err := r.SaveSnapshot("work.txt", []byte("Initial Content"))
	require.NoError(t, err)
	hB, err := r.SaveSnapshot("work.txt", []byte("Modified Content"))
	require.NoError(t, err)
	hA2, err := r.SaveSnapshot("work.txt", []byte("Initial Content"))
	require.NoError(t, err)

	require.Equal(t, hA, hA2)
	require.NotEqual(t, hA, hB)

	history, err := r.db.HistoryOf("work.txt", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)

	contentA, err := r.GetContent(hA)
	require.NoError(t, err)
	require.Equal(t, "Initial Content", string(contentA))
	contentB, err := r.GetContent(hB)
	require.NoError(t, err)
	require.Equal(t, "Modified Content", string(contentB))
}

func TestCheckpointRoundTrip(t *testing.T) {
	r := openTestRepo(t)

	aPath := filepath.Join(r.Root, "a.txt")
	bPath := filepath.Join(r.Root, "b.txt")
	require.NoError(t, os.WriteFile(aPath, []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(bPath, []byte("2"), 0o644))
	_, err := r.SaveSnapshot("a.txt", []byte("1"))
	require.NoError(t, err)
	_, err = r.SaveSnapshot("b.txt", []byte("2"))
	require.NoError(t, err)

	cpHash, err := r.CreateCheckpoint("m1")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(aPath, []byte("1-changed"), 0o644))
	require.NoError(t, os.WriteFile(bPath, []byte("2-changed"), 0o644))

	restored, err := r.RevertToCheckpoint(cpHash)
	require.NoError(t, err)
	require.Equal(t, 2, restored)

	contentA, err := os.ReadFile(aPath)
	require.NoError(t, err)
	require.Equal(t, "1", string(contentA))
	contentB, err := os.ReadFile(bPath)
	require.NoError(t, err)
	require.Equal(t, "2", string(contentB))

	checkpoints, err := r.db.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	require.Equal(t, "m1", checkpoints[0].Message)
}

func TestGCReachability(t *testing.T) {
	r := openTestRepo(t)

	hashA := hashid.ContentHash([]byte("a"))
	hashB := hashid.ContentHash([]byte("b"))

	_, err := r.SaveSnapshot("x.txt", []byte("a"))
	require.NoError(t, err)
	_, err = r.SaveSnapshot("x.txt", []byte("b"))
	require.NoError(t, err)
	_, err = r.SaveSnapshot("x.txt", []byte("a"))
	require.NoError(t, err)

	require.True(t, r.store.Exists(hashA))
	require.True(t, r.store.Exists(hashB))

	// Delete every snapshot row except the middle one, simulating a
	// pruned history whose surviving row still references hashB.
	_, err = r.db.DeleteSnapshotsExceptHash("x.txt", hashB)
	require.NoError(t, err)

	removed, err := r.RunGC()
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, 1)

	require.False(t, r.store.Exists(hashA))
	require.True(t, r.store.Exists(hashB))
}

func TestSaveSnapshotRejectsPathEscape(t *testing.T) {
	r := openTestRepo(t)
	_, err := r.SaveSnapshot("../outside.txt", []byte("x"))
	require.Error(t, err)
}

func TestGetContentRejectsMalformedHash(t *testing.T) {
	r := openTestRepo(t)
	_, err := r.GetContent("not-a-hash")
	require.Error(t, err)
}

func TestSaveSnapshotFromFileRespectsMaxSize(t *testing.T) {
	r := openTestRepo(t)
	r.cfg.MaxFileSizeBytes = 4

	path := filepath.Join(r.Root, "big.txt")
	require.NoError(t, os.WriteFile(path, []byte("this is too big"), 0o644))

	require.NoError(t, r.SaveSnapshotFromFile(path))

	history, err := r.db.HistoryOf("big.txt", 0)
	require.NoError(t, err)
	require.Empty(t, history)
}
