package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan1elw/LARA/internal/geo"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
[tracking]
home_latitude = 50.0379
home_longitude = 8.5622
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 50.0, cfg.Tracking.RadiusKM)
	assert.Equal(t, "UTC", cfg.Tracking.Timezone)
	assert.Equal(t, 30, cfg.Tracking.SessionTimeoutMinutes)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	opts := cfg.AnalysisOptions()
	assert.Equal(t, 20.0, opts.HeadingToleranceDeg)
	assert.Equal(t, 60, opts.MinFlightsForCorridor)
	assert.Equal(t, 0.8, opts.RouteSimilarityThreshold)
	require.NoError(t, opts.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadHome(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[tracking]
home_latitude = 95.0
home_longitude = 8.5622
`))
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), geo.ErrInvalidCoordinate)
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
[analysis]
route_similarity_threshold = 1.5
`))
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), geo.ErrInvalidConfig)
}

func TestValidateRejectsNegativeRadius(t *testing.T) {
	cfg := &Config{}
	cfg.Tracking.HomeLatitude = 50.0379
	cfg.Tracking.HomeLongitude = 8.5622
	cfg.Tracking.RadiusKM = -5
	assert.ErrorIs(t, cfg.Validate(), geo.ErrInvalidConfig)
}

func TestValidateOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[server]
port = 9000

[tracking]
home_latitude = 50.0379
home_longitude = 8.5622
radius_km = 25.0
timezone = "Europe/Berlin"

[analysis]
min_flights_for_corridor = 15
shards = 4

[logging]
level = "debug"
format = "json"
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 25.0, cfg.Tracking.RadiusKM)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	assert.Equal(t, 15, cfg.AnalysisOptions().MinFlightsForCorridor)
	assert.Equal(t, 4, cfg.AnalysisOptions().Shards)
	assert.Equal(t, "debug", cfg.LoggerConfig().Level)
}

func TestValidateRequiresAIKeyWhenEnabled(t *testing.T) {
	cfg := &Config{}
	cfg.Tracking.HomeLatitude = 50.0379
	cfg.Tracking.HomeLongitude = 8.5622
	cfg.AI.Enabled = true
	assert.Error(t, cfg.Validate())
}
