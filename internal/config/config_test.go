// Public domain.

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/dc2cat/internal/config"
)

func TestEnvFromMap(t *testing.T) {
	e, err := config.EnvFromMap(map[string]string{
		"DC2_CATALOG_CONFIG_DIR": "/cat",
		"THROUGHPUTS_DIR":        "/tp",
	})
	require.NoError(t, err)
	d, err := e.CatalogDir()
	require.NoError(t, err)
	assert.Equal(t, "/cat", d)
	d, err = e.BandpassDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tp", "baseline"), d)
	_, err = e.SEDDir()
	assert.True(t, errors.Is(err, config.ErrUnset))
	assert.ErrorContains(t, err, "SIMS_SED_LIBRARY_DIR")
	assert.Equal(t, ".", e.ScratchDir())
}

func TestReadEnv(t *testing.T) {
	t.Setenv("TWINKLES_DIR", "/tw")
	t.Setenv("SCRATCH", "/scratch")
	e, err := config.ReadEnv()
	require.NoError(t, err)
	d, err := e.Twinkles()
	require.NoError(t, err)
	assert.Equal(t, "/tw", d)
	assert.Equal(t, "/scratch", e.ScratchDir())
}

func TestReadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(`catalog: cosmoDC2_v1.1.4_image
opsim: minion_1016_desc_dithered_v4_sfd.db
sensors:
  - "R:2,2 S:1,1"
  - R01_S00
fov: 2.1
tolerance: 0.005
`), 0o644))
	f, err := config.ReadFile(fn)
	require.NoError(t, err)
	assert.Equal(t, &config.File{
		Catalog:   "cosmoDC2_v1.1.4_image",
		OpSim:     "minion_1016_desc_dithered_v4_sfd.db",
		Sensors:   []string{"R:2,2 S:1,1", "R01_S00"},
		FOV:       2.1,
		Tolerance: .005,
	}, f)

	require.NoError(t, os.WriteFile(fn, []byte("catalgo: x\n"), 0o644))
	_, err = config.ReadFile(fn)
	assert.Error(t, err)
	_, err = config.ReadFile(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
