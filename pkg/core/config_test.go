// pkg/core/config_test.go
package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
	assert.Empty(t, cfg.CatalogPath)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("install_root: /srv/tools\nworkers: 4\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/tools", cfg.InstallRoot)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadConfigClampsWorkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	in := &Config{InstallRoot: "/srv/tools", Workers: 2, Debug: true}
	require.NoError(t, SaveConfig(in, path))

	out, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDefaultInstallRootFromEnv(t *testing.T) {
	t.Setenv("FORGE_INSTALL_ROOT", "/data/forge")
	assert.Equal(t, "/data/forge", DefaultConfig().InstallRoot)
}
