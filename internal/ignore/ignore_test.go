package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlwaysExcludesGitAndMnemosyneDirs(t *testing.T) {
	dir := t.TempDir()
	p, err := Load(dir, true, true)
	require.NoError(t, err)

	require.True(t, p.Excluded(".git/HEAD"))
	require.True(t, p.Excluded(".mnemosyne/registry.json"))
	require.False(t, p.Excluded("src/main.go"))
}

func TestGitignorePatternsApply(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\nbuild/\n"), 0o644))

	p, err := Load(dir, true, false)
	require.NoError(t, err)

	require.True(t, p.Excluded("debug.log"))
	require.True(t, p.Excluded("build/output.bin"))
	require.False(t, p.Excluded("main.go"))
}

func TestMnemignoreAppliesIndependently(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".mnemignore"), []byte("secrets.env\n"), 0o644))

	p, err := Load(dir, false, true)
	require.NoError(t, err)

	require.True(t, p.Excluded("secrets.env"))
}

func TestDisabledFlagsIgnorePatternFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0o644))

	p, err := Load(dir, false, false)
	require.NoError(t, err)
	require.False(t, p.Excluded("debug.log"))
}
