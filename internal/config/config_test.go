package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ngspice", cfg.Simulators.Ngspice.Command)
	assert.Equal(t, []string{"-b"}, cfg.Simulators.Ngspice.Args)
	assert.Equal(t, "Xyce", cfg.Simulators.Xyce.Command)
	assert.Greater(t, cfg.Run.NCore, 0)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.NotContains(t, cfg.Directories.Simulations, "~", "home expanded")
}

func TestWorkspaceFileOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("dmkit.yaml", []byte(
		"simulators:\n  ngspice:\n    command: /opt/ngspice/bin/ngspice\nrun:\n  ncore: 2\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/ngspice/bin/ngspice", cfg.Simulators.Ngspice.Command)
	assert.Equal(t, 2, cfg.Run.NCore)
	// untouched keys keep their defaults
	assert.Equal(t, "Xyce", cfg.Simulators.Xyce.Command)
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DMKIT_RUN_NCORE", "7")
	t.Setenv("DMKIT_S3_BUCKET", "dmkit-results")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Run.NCore)
	assert.Equal(t, "dmkit-results", cfg.S3.Bucket)
}

func TestCommandLookup(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ngspice", cfg.Command("NGSPICE").Command)
	assert.Equal(t, "hdev", cfg.Command("hdev").Command)
	assert.Empty(t, cfg.Command("ads").Command)
}
