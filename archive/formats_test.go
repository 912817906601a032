package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brettbedarf/assemblyfs"
	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModTime = time.Date(2022, 3, 4, 5, 6, 8, 0, time.UTC)

// testFiles is the content written into every test archive
var testFiles = []struct {
	name    string
	content string
}{
	{"META-INF/MANIFEST.MF", "Manifest-Version: 1.0\n"},
	{"com/example/App.class", "cafebabe"},
	{"readme.txt", "hello archive"},
}

func buildZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, err := w.CreateHeader(&zip.FileHeader{Name: "META-INF/", Modified: testModTime})
	require.NoError(t, err)
	for _, f := range testFiles {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Deflate, Modified: testModTime})
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func buildCpio(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := cpio.NewWriter(&buf)
	require.NoError(t, w.WriteHeader(&cpio.Header{Name: "META-INF", Mode: cpio.TypeDir | 0o755, ModTime: testModTime}))
	for _, f := range testFiles {
		require.NoError(t, w.WriteHeader(&cpio.Header{
			Name:    f.name,
			Mode:    cpio.TypeReg | 0o644,
			Size:    int64(len(f.content)),
			ModTime: testModTime,
		}))
		_, err := w.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readEntry(t *testing.T, a Archive, e Entry) string {
	t.Helper()
	rc, err := a.OpenEntry(e)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

// assertArchiveContent checks an opened archive holds exactly testFiles plus the META-INF dir
func assertArchiveContent(t *testing.T, a Archive) {
	t.Helper()
	entries, err := a.Entries()
	require.NoError(t, err)

	byName := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}
	dir, ok := byName["META-INF"]
	require.True(t, ok, "directory entry must be listed without trailing slash")
	assert.True(t, dir.Dir)

	for _, f := range testFiles {
		e, ok := byName[f.name]
		require.True(t, ok, "missing entry %s", f.name)
		assert.False(t, e.Dir)
		assert.Equal(t, int64(len(f.content)), e.Size)
		assert.Equal(t, f.content, readEntry(t, a, e))
	}

	// Lookup by name alone works too
	assert.Equal(t, "hello archive", readEntry(t, a, Entry{Name: "readme.txt"}))

	_, err = a.OpenEntry(Entry{Name: "nope.txt"})
	assert.ErrorIs(t, err, assemblyfs.ErrNotFound)
	_, err = a.OpenEntry(dir)
	assert.Error(t, err, "directories cannot be opened")
}

func TestFormats_OpenReadClose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		build   func(*testing.T) []byte
		factory FactoryFunc
	}{
		{"zip", "app.jar", buildZip, newZipArchive},
		{"kzip", "app.jar", buildZip, newKZipArchive},
		{"cpio", "initrd.cpio", buildCpio, newCpioArchive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, tt.file, tt.build(t))
			a, err := tt.factory(Source{Path: path})
			require.NoError(t, err)

			assert.Equal(t, path, a.Name())
			assert.True(t, a.Exists())
			assert.Positive(t, a.Size())
			assert.False(t, a.LastModified().IsZero())

			_, err = a.Entries()
			require.ErrorIs(t, err, assemblyfs.ErrNotAcquired, "entries need an open archive")

			require.NoError(t, a.Open())
			assertArchiveContent(t, a)
			require.NoError(t, a.Close())

			_, err = a.Entries()
			require.ErrorIs(t, err, assemblyfs.ErrNotAcquired)

			// Reopen after close
			require.NoError(t, a.Open())
			assertArchiveContent(t, a)
			require.NoError(t, a.Close())
		})
	}
}

func TestFormats_NestedSource(t *testing.T) {
	t.Parallel()
	data := buildZip(t)
	a, err := newZipArchive(Source{ReaderAt: bytes.NewReader(data), Size: int64(len(data)), Name: "lib/inner.jar"})
	require.NoError(t, err)

	assert.Equal(t, "lib/inner.jar", a.Name())
	assert.Equal(t, int64(len(data)), a.Size())
	assert.True(t, a.Exists())

	require.NoError(t, a.Open())
	assertArchiveContent(t, a)
	require.NoError(t, a.Close())

	rc, err := a.Raw()
	require.NoError(t, err)
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, raw)
}

func TestFormats_MissingSource(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "gone.jar")
	a, err := newKZipArchive(Source{Path: path})
	require.NoError(t, err)

	assert.False(t, a.Exists())
	assert.Zero(t, a.Size())
	assert.True(t, a.LastModified().IsZero())
	assert.ErrorIs(t, a.Open(), assemblyfs.ErrNotFound)
	_, err = a.Raw()
	assert.ErrorIs(t, err, assemblyfs.ErrNotFound)
}

func TestFormats_CorruptSource(t *testing.T) {
	t.Parallel()

	factories := map[string]FactoryFunc{
		"broken.zip":  newZipArchive,
		"broken.jar":  newKZipArchive,
		"broken.7z":   newSevenZipArchive,
		"broken.rar":  newRarArchive,
		"broken.cpio": newCpioArchive,
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, name, bytes.Repeat([]byte("not an archive "), 64))
			a, err := factory(Source{Path: path})
			require.NoError(t, err)
			assert.Error(t, a.Open())
		})
	}
}

func TestFormats_InvalidSource(t *testing.T) {
	t.Parallel()
	for _, factory := range []FactoryFunc{newZipArchive, newKZipArchive, newSevenZipArchive, newRarArchive, newCpioArchive} {
		_, err := factory(Source{})
		assert.Error(t, err)
	}
}

func TestAutoFactory(t *testing.T) {
	t.Parallel()
	auto := NewAutoFactory()

	tests := []struct {
		path string
		want any
	}{
		{"/x/app.jar", &kzipArchive{}},
		{"/x/app.ZIP", &kzipArchive{}},
		{"/x/pkg.7z", &sevenZipArchive{}},
		{"/x/pkg.rar", &scanned{}},
		{"/x/initrd.cpio", &scanned{}},
	}
	for _, tt := range tests {
		a, err := auto.NewArchive(Source{Path: tt.path})
		require.NoError(t, err)
		assert.IsType(t, tt.want, a, tt.path)
	}

	// The cpio branch must produce a working reader
	path := writeFile(t, "initrd.cpio", buildCpio(t))
	a, err := auto.NewArchive(Source{Path: path})
	require.NoError(t, err)
	require.NoError(t, a.Open())
	assertArchiveContent(t, a)
	require.NoError(t, a.Close())
}

func TestCleanName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a/b", cleanName("a/b/"))
	assert.Equal(t, "a/b", cleanName("./a/b"))
	assert.Equal(t, "a/b", cleanName("/a//b"))
	assert.Equal(t, "a/b", cleanName(`a\b`))
	assert.Equal(t, "", cleanName("./"))
	assert.Equal(t, "b", cleanName("../b"))
}
