package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "-home-yu-alpha", "s1.jsonl"))
	touch(t, filepath.Join(root, "-home-yu-alpha", "agent-123.jsonl"))
	touch(t, filepath.Join(root, "-home-yu-alpha", "notes.txt"))
	touch(t, filepath.Join(root, "-home-yu-alpha", "subagents", "x.jsonl"))
	touch(t, filepath.Join(root, "-home-yu-beta", "s2.jsonl"))
	touch(t, filepath.Join(root, "stray.jsonl"))

	files, err := Discover(root, "")
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "s1", files[0].SessionID)
	assert.Equal(t, "/home/yu/alpha", files[0].Project)
	assert.Equal(t, int64(3), files[0].Size)
	assert.NotZero(t, files[0].Mtime)
	assert.Equal(t, "s2", files[1].SessionID)

	filtered, err := Discover(root, "beta")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "s2", filtered[0].SessionID)
}

func TestDiscover_MissingRoot(t *testing.T) {
	files, err := Discover(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestStat(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "-nowhere-proj", "abc.jsonl")
	touch(t, path)

	sf, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", sf.SessionID)
	assert.Equal(t, "/nowhere/proj", sf.Project)

	_, err = Stat(filepath.Join(root, "missing.jsonl"))
	assert.Error(t, err)
}
