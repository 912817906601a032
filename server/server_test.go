package server

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/assemblyfs"
	"github.com/brettbedarf/assemblyfs/assembly"
	"github.com/stretchr/testify/require"
)

// newExport builds an assembly with a real file and a jar and mounts it at the
// root of a fresh VFS.
func newExport(t *testing.T) *assemblyfs.VirtualFile {
	t.Helper()
	src := t.TempDir()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("com/example/readme.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello archive"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.jar"), buf.Bytes(), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "info.txt"), []byte("info"), 0o644))

	a, err := assembly.New(assembly.Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() }) // nolint:errcheck
	_, err = a.AddArchive("lib/app.jar", filepath.Join(src, "app.jar"))
	require.NoError(t, err)
	_, err = a.AddFile("meta/info.txt", filepath.Join(src, "info.txt"))
	require.NoError(t, err)

	v := assemblyfs.New()
	h, err := a.MountInto(v, v.Root())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() }) // nolint:errcheck
	return v.Root()
}
