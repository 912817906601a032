package filesystem

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/assemblyfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createRealTree creates a small directory tree and returns its root
func createRealTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("bravo!"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))
	return dir
}

func readAll(t *testing.T, f *assemblyfs.VirtualFile) string {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestRealFileSystem_Directory(t *testing.T) {
	t.Parallel()
	dir := createRealTree(t)
	v := assemblyfs.New()
	h, err := MountReal(v, dir, v.Child("/real"))
	require.NoError(t, err)
	defer h.Close()

	root := v.Child("/real")
	assert.True(t, root.Exists())
	assert.True(t, root.IsDirectory())
	assert.False(t, root.IsFile())
	assert.Equal(t, []string{"a.txt", "empty", "sub"}, root.ChildNames())

	a := v.Child("/real/a.txt")
	assert.True(t, a.IsFile())
	size, err := a.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
	assert.Equal(t, "alpha", readAll(t, a))
	assert.Empty(t, a.ChildNames(), "files have no entries")
	assert.NotNil(t, a.ChildNames())

	b := v.Child("/real/sub/b.txt")
	assert.Equal(t, "bravo!", readAll(t, b))
	lm, err := b.LastModified()
	require.NoError(t, err)
	fi, err := os.Stat(filepath.Join(dir, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, fi.ModTime(), lm)

	dirSize, err := v.Child("/real/sub").Size()
	require.NoError(t, err)
	assert.Zero(t, dirSize)
	assert.Empty(t, v.Child("/real/empty").ChildNames())
}

func TestRealFileSystem_Materialize(t *testing.T) {
	t.Parallel()
	dir := createRealTree(t)
	v := assemblyfs.New()
	fs, err := NewRealFileSystem(dir)
	require.NoError(t, err)
	mp := v.Child("/m")
	_, err = v.Mount(fs, mp)
	require.NoError(t, err)

	got, err := fs.File(mp, mp)
	require.NoError(t, err)
	assert.Equal(t, dir, got, "mount root materializes to the real root")

	got, err = v.Child("/m/sub/b.txt").PhysicalFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sub", "b.txt"), got)

	assert.Equal(t, dir, fs.MountSource())
	assert.False(t, fs.ReadOnly())
	assert.Nil(t, fs.CodeSigners(mp, v.Child("/m/a.txt")))
}

func TestRealFileSystem_Missing(t *testing.T) {
	t.Parallel()
	dir := createRealTree(t)
	v := assemblyfs.New()
	_, err := MountReal(v, dir, v.Child("/real"))
	require.NoError(t, err)

	missing := v.Child("/real/nope/x.txt")
	assert.False(t, missing.Exists())
	assert.False(t, missing.IsFile())
	assert.False(t, missing.IsDirectory())
	assert.Empty(t, missing.ChildNames())
	assert.False(t, missing.Delete())

	_, err = missing.Size()
	assert.ErrorIs(t, err, assemblyfs.ErrNotFound)
	_, err = missing.LastModified()
	assert.ErrorIs(t, err, assemblyfs.ErrNotFound)
	_, err = missing.Open()
	assert.ErrorIs(t, err, assemblyfs.ErrNotFound)
}

func TestRealFileSystem_Delete(t *testing.T) {
	t.Parallel()
	dir := createRealTree(t)
	v := assemblyfs.New()
	_, err := MountReal(v, dir, v.Child("/real"))
	require.NoError(t, err)

	assert.False(t, v.Child("/real/sub").Delete(), "non-empty directory")
	assert.True(t, v.Child("/real/a.txt").Delete())
	assert.False(t, v.Child("/real/a.txt").Exists())
	_, err = os.Stat(filepath.Join(dir, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRealFileSystem_SingleFile(t *testing.T) {
	t.Parallel()
	dir := createRealTree(t)
	v := assemblyfs.New()
	_, err := MountReal(v, filepath.Join(dir, "a.txt"), v.Child("/meta/info.txt"))
	require.NoError(t, err)

	f := v.Child("/meta/info.txt")
	assert.True(t, f.Exists())
	assert.True(t, f.IsFile())
	assert.Equal(t, "alpha", readAll(t, f))
	assert.True(t, v.Child("/meta").IsDirectory(), "parent of a mount point is implied")
}
