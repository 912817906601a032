package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mounts:
  - path: lib/app.jar
    type: archive
    source: /opt/app/app.jar
  - path: meta/info.txt
    type: file
    source: /opt/app/info.txt
  - path: conf
    type: dir
    source: /etc/app
`), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []MountSpec{
		{Path: "lib/app.jar", Type: ArchiveMount, Source: "/opt/app/app.jar"},
		{Path: "meta/info.txt", Type: FileMount, Source: "/opt/app/info.txt"},
		{Path: "conf", Type: DirMount, Source: "/etc/app"},
	}, m.Mounts)
}

func TestLoadManifest_JSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mounts":[{"path":"x","type":"dir","source":"/x"}]}`), 0o600))

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Mounts, 1)
	assert.Equal(t, DirMount, m.Mounts[0].Type)
}

func TestManifest_Validate(t *testing.T) {
	t.Parallel()

	m := &Manifest{Mounts: []MountSpec{
		{Path: "ok", Type: DirMount, Source: "/ok"},
		{Type: "tarball", Source: "/x"},
	}}
	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mount 1: missing path")
	assert.Contains(t, err.Error(), `mount 1: unknown type "tarball"`)
	assert.NotContains(t, err.Error(), "mount 0")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mounts:\n  - path: a\n"), 0o600))
	_, err = LoadManifest(path)
	assert.Error(t, err)
}
