package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dan1elw/LARA/internal/analysis"
	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/pkg/logger"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Tracking TrackingConfig `toml:"tracking"` // Aircraft tracking data source settings
	Analysis AnalysisConfig `toml:"analysis"` // Batch analysis thresholds and scheduling
	Storage  StorageConfig  `toml:"storage"`  // Data persistence settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	AI       AIConfig       `toml:"ai"`       // Optional AI report summary settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
}

// TrackingConfig contains the home location and the OpenSky collector
// settings. The bounding box queried from OpenSky is derived from the home
// location and search radius, never configured directly.
type TrackingConfig struct {
	HomeLatitude  float64 `toml:"home_latitude"`  // Latitude of the observer in decimal degrees
	HomeLongitude float64 `toml:"home_longitude"` // Longitude of the observer in decimal degrees
	RadiusKM      float64 `toml:"radius_km"`      // Search radius around the home location in kilometers
	Timezone      string  `toml:"timezone"`       // IANA observer time zone for daily statistics (default: UTC)

	SessionTimeoutMinutes int `toml:"session_timeout_minutes"` // Idle gap in minutes after which a flight session is sealed (default: 30)
	FetchIntervalSecs     int `toml:"fetch_interval_seconds"`  // How often to poll OpenSky for new state vectors (default: 60)

	// OpenSky OAuth2 client-credentials settings. Anonymous access is used
	// when the client ID is empty.
	OpenSkyAPIURL       string `toml:"opensky_api_url"`       // Base URL of the OpenSky REST API (default: https://opensky-network.org/api)
	OpenSkyTokenURL     string `toml:"opensky_token_url"`     // OAuth2 token endpoint for client-credentials flow
	OpenSkyClientID     string `toml:"opensky_client_id"`     // OAuth2 client ID
	OpenSkyClientSecret string `toml:"opensky_client_secret"` // OAuth2 client secret
}

// AnalysisConfig exposes every tunable of the analysis pipeline. Defaults
// are applied and ranges checked once in Validate.
type AnalysisConfig struct {
	IntervalMinutes int `toml:"interval_minutes"` // How often the analysis scheduler reruns the pipeline (default: 60)
	Shards          int `toml:"shards"`           // Parallel workers for pairwise clustering (0 = GOMAXPROCS)

	HeadingToleranceDeg      float64 `toml:"heading_tolerance_deg"`      // Max heading difference for corridor compatibility (default: 20)
	ProximityThresholdKM     float64 `toml:"proximity_threshold_km"`     // Max track distance for corridor compatibility (default: 10)
	MinCorridorLengthKM      float64 `toml:"min_corridor_length_km"`     // Minimum accepted corridor length (default: 3)
	MinLinearityScore        float64 `toml:"min_linearity_score"`        // Minimum track straightness for corridor candidates (default: 0.3)
	MinFlightsForCorridor    int     `toml:"min_flights_for_corridor"`   // Minimum member sessions per corridor (default: 60)
	TrendWindowDays          int     `toml:"trend_window_days"`          // Trailing window for pattern detection (default: 30)
	MinPatternOccurrences    int     `toml:"min_pattern_occurrences"`    // Minimum occurrences per route pattern (default: 5)
	RouteSimilarityThreshold float64 `toml:"route_similarity_threshold"` // Minimum similarity to group sessions into a pattern (default: 0.8)
	PeriodicityBound         float64 `toml:"periodicity_bound"`          // Max time-of-day CV for a pattern to report a period (default: 0.05)
	PeakHourThreshold        float64 `toml:"peak_hour_threshold"`        // Fraction of the busiest hour that still counts as peak (default: 0.7)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type              string `toml:"type"`                 // Storage backend type (currently only "sqlite" is supported)
	SQLitePath        string `toml:"sqlite_path"`          // Path to the SQLite database file
	MaxPositionsInAPI int    `toml:"max_positions_in_api"` // Maximum number of positions returned per flight in the API (default: 1000)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// AIConfig contains the optional Gemini report summary settings. The
// summary stays disabled unless an API key is present.
type AIConfig struct {
	Enabled bool   `toml:"enabled"` // Enable AI-generated report narratives
	APIKey  string `toml:"api_key"` // Gemini API key
	Model   string `toml:"model"`   // Model name (default: "gemini-2.0-flash")
}

// Load reads and decodes the TOML configuration at path.
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in
// order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate applies defaults and checks every setting once. Threshold range
// failures wrap geo.ErrInvalidConfig so callers can classify them.
func (c *Config) Validate() error {
	// Server defaults and checks
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 30
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = 60
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 120
	}

	// Tracking checks
	if err := geo.ValidatePoint(c.Home()); err != nil {
		return fmt.Errorf("home location: %w", err)
	}
	if c.Tracking.RadiusKM == 0 {
		c.Tracking.RadiusKM = 50
	}
	if c.Tracking.RadiusKM <= 0 {
		return fmt.Errorf("radius_km %v must be positive: %w", c.Tracking.RadiusKM, geo.ErrInvalidConfig)
	}
	if c.Tracking.Timezone == "" {
		c.Tracking.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Tracking.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Tracking.Timezone, err)
	}
	if c.Tracking.SessionTimeoutMinutes == 0 {
		c.Tracking.SessionTimeoutMinutes = 30
	}
	if c.Tracking.SessionTimeoutMinutes < 0 {
		return fmt.Errorf("session_timeout_minutes %d must be positive: %w", c.Tracking.SessionTimeoutMinutes, geo.ErrInvalidConfig)
	}
	if c.Tracking.FetchIntervalSecs == 0 {
		c.Tracking.FetchIntervalSecs = 60
	}
	if c.Tracking.FetchIntervalSecs < 0 {
		return fmt.Errorf("fetch_interval_seconds %d must be positive: %w", c.Tracking.FetchIntervalSecs, geo.ErrInvalidConfig)
	}
	if c.Tracking.OpenSkyAPIURL == "" {
		c.Tracking.OpenSkyAPIURL = "https://opensky-network.org/api"
	}
	if c.Tracking.OpenSkyTokenURL == "" {
		c.Tracking.OpenSkyTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"
	}

	// Analysis defaults come from the pipeline itself; only overridden
	// values survive, then the whole set is range-checked in one place.
	defaults := analysis.DefaultOptions()
	if c.Analysis.IntervalMinutes == 0 {
		c.Analysis.IntervalMinutes = 60
	}
	if c.Analysis.IntervalMinutes < 0 {
		return fmt.Errorf("interval_minutes %d must be positive: %w", c.Analysis.IntervalMinutes, geo.ErrInvalidConfig)
	}
	if c.Analysis.HeadingToleranceDeg == 0 {
		c.Analysis.HeadingToleranceDeg = defaults.HeadingToleranceDeg
	}
	if c.Analysis.ProximityThresholdKM == 0 {
		c.Analysis.ProximityThresholdKM = defaults.ProximityThresholdKM
	}
	if c.Analysis.MinCorridorLengthKM == 0 {
		c.Analysis.MinCorridorLengthKM = defaults.MinCorridorLengthKM
	}
	if c.Analysis.MinLinearityScore == 0 {
		c.Analysis.MinLinearityScore = defaults.MinLinearityScore
	}
	if c.Analysis.MinFlightsForCorridor == 0 {
		c.Analysis.MinFlightsForCorridor = defaults.MinFlightsForCorridor
	}
	if c.Analysis.TrendWindowDays == 0 {
		c.Analysis.TrendWindowDays = defaults.TrendWindowDays
	}
	if c.Analysis.MinPatternOccurrences == 0 {
		c.Analysis.MinPatternOccurrences = defaults.MinPatternOccurrences
	}
	if c.Analysis.RouteSimilarityThreshold == 0 {
		c.Analysis.RouteSimilarityThreshold = defaults.RouteSimilarityThreshold
	}
	if c.Analysis.PeriodicityBound == 0 {
		c.Analysis.PeriodicityBound = defaults.PeriodicityBound
	}
	if c.Analysis.PeakHourThreshold == 0 {
		c.Analysis.PeakHourThreshold = defaults.PeakHourThreshold
	}
	if err := c.AnalysisOptions().Validate(); err != nil {
		return err
	}

	// Storage defaults and checks
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "lara.db"
	}
	if c.Storage.MaxPositionsInAPI == 0 {
		c.Storage.MaxPositionsInAPI = 1000
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// AI defaults
	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai.enabled is true")
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash"
	}

	return nil
}

// Home returns the configured observer location
func (c *Config) Home() geo.Point {
	return geo.Point{Lat: c.Tracking.HomeLatitude, Lon: c.Tracking.HomeLongitude}
}

// Location returns the observer time zone. Validate must have succeeded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Tracking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionTimeout returns the idle-session timeout as a duration
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Tracking.SessionTimeoutMinutes) * time.Minute
}

// FetchInterval returns the collector poll interval as a duration
func (c *Config) FetchInterval() time.Duration {
	return time.Duration(c.Tracking.FetchIntervalSecs) * time.Second
}

// AnalysisInterval returns the scheduler period as a duration
func (c *Config) AnalysisInterval() time.Duration {
	return time.Duration(c.Analysis.IntervalMinutes) * time.Minute
}

// AnalysisOptions maps the analysis section onto the pipeline options
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{
		HeadingToleranceDeg:      c.Analysis.HeadingToleranceDeg,
		ProximityThresholdKM:     c.Analysis.ProximityThresholdKM,
		MinCorridorLengthKM:      c.Analysis.MinCorridorLengthKM,
		MinLinearityScore:        c.Analysis.MinLinearityScore,
		MinFlightsForCorridor:    c.Analysis.MinFlightsForCorridor,
		TrendWindowDays:          c.Analysis.TrendWindowDays,
		MinPatternOccurrences:    c.Analysis.MinPatternOccurrences,
		RouteSimilarityThreshold: c.Analysis.RouteSimilarityThreshold,
		PeriodicityBound:         c.Analysis.PeriodicityBound,
		PeakHourThreshold:        c.Analysis.PeakHourThreshold,
		Shards:                   c.Analysis.Shards,
	}
}

// LoggerConfig maps the logging section onto the logger package config
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:  c.Logging.Level,
		Format: c.Logging.Format,
	}
}
