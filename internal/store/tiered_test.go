package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mnemosyne-project/mnemosyne/internal/hashid"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), DefaultTierConfig(), nil)
	require.NoError(t, err)

	content := []byte("hello mnemosyne")
	h := hashid.ContentHash(content)
	require.NoError(t, s.Write(h, content))

	got, err := s.Read(h)
	require.NoError(t, err)
	require.Equal(t, content, got)
	require.True(t, s.Exists(h))
}

func TestReadMissingReturnsNotFound(t *testing.T) {
	s, err := Open(t.TempDir(), DefaultTierConfig(), nil)
	require.NoError(t, err)

	_, err = s.Read("deadbeef")
	require.Error(t, err)
}

func TestDeleteIsSilentWhenAbsent(t *testing.T) {
	s, err := Open(t.TempDir(), DefaultTierConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete("nonexistent-hash"))
}

func TestMigrateMovesAgedHotBlobToWarm(t *testing.T) {
	base := t.TempDir()
	s, err := Open(base, TierConfig{HotWindowHours: 1, WarmWindowDays: 3, ColdCompressionLevel: 15}, nil)
	require.NoError(t, err)

	content := []byte("aged content")
	h := hashid.ContentHash(content)
	require.NoError(t, s.Write(h, content))

	// Backdate the hot file past the hot window so migrate treats it as aged.
	hotPath := filepath.Join(base, "cas", "hot", h)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(hotPath, old, old))

	moved, err := s.Migrate()
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	require.False(t, s.hot.exists(h))
	require.True(t, s.warm.exists(h))

	got, err := s.Read(h)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestMigrateLeavesFreshBlobsInHot(t *testing.T) {
	s, err := Open(t.TempDir(), DefaultTierConfig(), nil)
	require.NoError(t, err)

	content := []byte("fresh content")
	h := hashid.ContentHash(content)
	require.NoError(t, s.Write(h, content))

	moved, err := s.Migrate()
	require.NoError(t, err)
	require.Equal(t, 0, moved)
	require.True(t, s.hot.exists(h))
}

func TestWriteIsIdempotent(t *testing.T) {
	s, err := Open(t.TempDir(), DefaultTierConfig(), nil)
	require.NoError(t, err)

	content := []byte("same bytes")
	h := hashid.ContentHash(content)
	require.NoError(t, s.Write(h, content))
	require.NoError(t, s.Write(h, content))

	got, err := s.Read(h)
	require.NoError(t, err)
	require.Equal(t, content, got)
}
