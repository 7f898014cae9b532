package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("INPUT_DIR", "")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ANALYSIS_CITIES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.InputDir)
	assert.Equal(t, "apartments_pl_*.csv", cfg.FilePattern)
	assert.Equal(t, "drop", cfg.Policy)
	assert.Equal(t, 2001, cfg.Analysis.BuiltByCutoff)
	assert.Equal(t, []string{"krakow", "warszawa", "lodz", "szczecin"}, cfg.Analysis.Cities)
	assert.Equal(t, "share", cfg.Pipeline.OwnershipAliases["udział"])
	assert.Contains(t, cfg.Pipeline.DroppedColumns, "latitude")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("INPUT_DIR", "/srv/listings")
	t.Setenv("MISSING_POLICY", "fill")
	t.Setenv("LOAD_WORKERS", "8")
	t.Setenv("BIN_WIDTH", "0.5")
	t.Setenv("ANALYSIS_CITIES", "gdynia, krakow ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/listings", cfg.InputDir)
	assert.Equal(t, "fill", cfg.Policy)
	assert.Equal(t, 8, cfg.LoadWorkers)
	assert.Equal(t, 0.5, cfg.Analysis.BinWidth)
	assert.Equal(t, []string{"gdynia", "krakow"}, cfg.Analysis.Cities)
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	yamlDoc := `
pipeline:
  dropped_columns: [latitude, longitude]
  ownership_aliases:
    " Spółdzielcze ": cooperative
analysis:
  cities: [warszawa]
  bin_width: 2
  built_by_cutoff: 1990
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"latitude", "longitude"}, cfg.Pipeline.DroppedColumns)
	assert.Equal(t, "cooperative", cfg.Pipeline.OwnershipAliases["spółdzielcze"])
	assert.Equal(t, "share", cfg.Pipeline.OwnershipAliases["udział"])
	assert.Equal(t, []string{"warszawa"}, cfg.Analysis.Cities)
	assert.Equal(t, 2.0, cfg.Analysis.BinWidth)
	assert.Equal(t, 1990, cfg.Analysis.BuiltByCutoff)
}

func TestLoadYAMLInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [unterminated"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: "5432", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "apartments", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=apartments sslmode=disable", cfg.DSN())
}
