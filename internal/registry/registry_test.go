package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreateCreatesThenReuses(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)

	projectPath := filepath.Join(dir, "my-project")
	first, err := r.GetOrCreate(projectPath)
	require.NoError(t, err)
	require.Equal(t, "my-project", first.Name)
	require.NotEmpty(t, first.ID)

	second, err := r.GetOrCreate(projectPath)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)

	_, err = r.Get("nonexistent")
	require.Error(t, err)
}

func TestRemoveDeletesEntry(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	require.NoError(t, err)

	p, err := r.GetOrCreate(filepath.Join(dir, "proj"))
	require.NoError(t, err)
	require.NoError(t, r.Remove(p.ID))

	list, err := r.List()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	r1, err := Open(dir)
	require.NoError(t, err)
	p, err := r1.GetOrCreate(filepath.Join(dir, "proj"))
	require.NoError(t, err)

	r2, err := Open(dir)
	require.NoError(t, err)
	got, err := r2.Get(p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Path, got.Path)
}
