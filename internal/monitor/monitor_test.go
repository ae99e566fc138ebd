package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu    sync.Mutex
	saved []string
}

func (f *fakeRecorder) SaveSnapshotFromFile(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, path)
	return nil
}

func (f *fakeRecorder) Excluded(relPath string) bool { return false }

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestMonitorRecordsFileAfterDebounce(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{}
	m, err := New(dir, rec, nil, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	target := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, 10*time.Millisecond)
}

func TestMonitorCoalescesRapidEvents(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{}
	m, err := New(dir, rec, nil, 100*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	target := filepath.Join(dir, "a.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(target, []byte{byte(i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	require.LessOrEqual(t, rec.count(), 2)
}

func TestInitialScanVisitsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))

	rec := &fakeRecorder{}
	m, err := New(dir, rec, nil, time.Second)
	require.NoError(t, err)

	require.NoError(t, m.InitialScan(2, false))
	require.Equal(t, 2, rec.count())
}
