package fsutil

import (
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAll(t *testing.T, fsys FS, name, data string) {
	t.Helper()
	w, err := fsys.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestOSRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	fsys := OS{}
	require.NoError(t, fsys.MkdirAll(dir, 0o755))
	name := filepath.Join(dir, "obs_0000.txt")
	writeAll(t, fsys, name, "mode 2d\n")

	data, err := fsys.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "mode 2d\n", string(data))
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.MkdirAll("out/dumps", 0o755))
	writeAll(t, m, "out/dumps/obs_0001.txt", "second")
	writeAll(t, m, "out/dumps/obs_0000.txt", "first")
	writeAll(t, m, "top.html", "<html>")

	data, err := m.ReadFile("out/dumps/obs_0000.txt")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.Equal(t, []string{"out/dumps/obs_0000.txt", "out/dumps/obs_0001.txt", "top.html"}, m.Files())
}

func TestMemoryCreateNeedsParent(t *testing.T) {
	m := NewMemory()
	_, err := m.Create("missing/file.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, m.MkdirAll("missing", 0o755))
	_, err = m.Create("missing")
	assert.ErrorIs(t, err, fs.ErrExist)
}

func TestMemoryCommitsOnClose(t *testing.T) {
	m := NewMemory()
	w, err := m.Create("pending.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	_, err = m.ReadFile("pending.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), fs.ErrClosed)
	_, err = w.Write([]byte("y"))
	assert.ErrorIs(t, err, fs.ErrClosed)

	data, err := m.ReadFile("pending.txt")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestMemoryReadReturnsCopy(t *testing.T) {
	m := NewMemory()
	writeAll(t, m, "f", "abc")
	data, _ := m.ReadFile("f")
	data[0] = 'z'
	again, _ := m.ReadFile("f")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryMkdirOverFile(t *testing.T) {
	m := NewMemory()
	writeAll(t, m, "f", "abc")
	assert.ErrorIs(t, m.MkdirAll("f/sub", 0o755), fs.ErrExist)
}
