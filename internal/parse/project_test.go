package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdir(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(p, 0o755))
	return p
}

func TestEncodeProjectDir(t *testing.T) {
	assert.Equal(t, "-home-yu-projects-foo", EncodeProjectDir("/home/yu/projects/foo"))
	assert.Equal(t, "-home-yu--config-nvim", EncodeProjectDir("/home/yu/.config/nvim"))
}

func TestDecodeProjectDir_RoundTrip(t *testing.T) {
	p := mkdir(t, t.TempDir(), "home", "yu", "projects", "foo")

	got, ok := DecodeProjectDir(EncodeProjectDir(p))
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestDecodeProjectDir_HyphenatedSegment(t *testing.T) {
	base := t.TempDir()
	p := mkdir(t, base, "work", "my-cool-app", "src")

	got, ok := DecodeProjectDir(EncodeProjectDir(p))
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestDecodeProjectDir_DotSegment(t *testing.T) {
	p := mkdir(t, t.TempDir(), ".config", "nvim")

	got, ok := DecodeProjectDir(EncodeProjectDir(p))
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestDecodeProjectDir_NotOnDisk(t *testing.T) {
	got, ok := DecodeProjectDir("-nonexistent-root-my-app")
	require.True(t, ok)
	assert.Equal(t, "/nonexistent/root/my/app", got)

	got, ok = DecodeProjectDir("-nonexistent--hidden")
	require.True(t, ok)
	assert.Equal(t, "/nonexistent/.hidden", got)
}

func TestDecodeProjectDir_Invalid(t *testing.T) {
	_, ok := DecodeProjectDir("home-yu-foo")
	assert.False(t, ok)

	_, ok = DecodeProjectDir("")
	assert.False(t, ok)
}

func TestProjectPath(t *testing.T) {
	root := t.TempDir()
	workspace := mkdir(t, root, "code", "service")

	t.Run("decoded path exists", func(t *testing.T) {
		dir := mkdir(t, root, "projects", EncodeProjectDir(workspace))
		file := filepath.Join(dir, "abc.jsonl")
		require.NoError(t, os.WriteFile(file, []byte("{}\n"), 0o644))

		assert.Equal(t, workspace, ProjectPath(file))
	})

	t.Run("falls back to cwd", func(t *testing.T) {
		dir := mkdir(t, root, "projects", "-gone-away-project")
		file := filepath.Join(dir, "abc.jsonl")
		content := `{"type":"summary"}` + "\n" + `{"type":"user","cwd":"  /real/cwd  "}` + "\n"
		require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

		assert.Equal(t, "/real/cwd", ProjectPath(file))
	})

	t.Run("decoded path when nothing better", func(t *testing.T) {
		dir := mkdir(t, root, "projects", "-gone-again")
		file := filepath.Join(dir, "abc.jsonl")
		require.NoError(t, os.WriteFile(file, []byte(`{"type":"user"}`+"\n"), 0o644))

		assert.Equal(t, "/gone/again", ProjectPath(file))
	})

	t.Run("not a project dir", func(t *testing.T) {
		dir := mkdir(t, root, "plain")
		file := filepath.Join(dir, "abc.jsonl")
		require.NoError(t, os.WriteFile(file, []byte("{}\n"), 0o644))

		assert.Equal(t, "", ProjectPath(file))
	})
}
