package gitlink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	repoPath string
	output   string
	err      error
}

func (f fakeRunner) Run(ctx context.Context, args ...string) (string, error) {
	return f.output, f.err
}
func (f fakeRunner) RepoPath() string { return f.repoPath }

func TestLogParsesCommitLines(t *testing.T) {
	runner := fakeRunner{output: "abc123|Jane Dev|2026-01-02T10:00:00Z|fix bug\ndef456|Jane Dev|2026-01-01T09:00:00Z|initial\n"}
	commits, err := Log(context.Background(), runner, "file.go", 10)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	require.Equal(t, "abc123", commits[0].Hash)
	require.Equal(t, "fix bug", commits[0].Message)
}

func TestLogPropagatesRunnerError(t *testing.T) {
	runner := fakeRunner{err: errors.New("git failed")}
	_, err := Log(context.Background(), runner, "file.go", 10)
	require.Error(t, err)
}

func TestLogSkipsMalformedLines(t *testing.T) {
	runner := fakeRunner{output: "not-enough-fields\nabc123|Jane|2026-01-01T00:00:00Z|ok\n"}
	commits, err := Log(context.Background(), runner, "file.go", 5)
	require.NoError(t, err)
	require.Len(t, commits, 1)
}

func TestNewExecutorRejectsEmptyPath(t *testing.T) {
	_, err := NewExecutor("")
	require.Error(t, err)
}
