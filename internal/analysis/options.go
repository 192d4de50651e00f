package analysis

import (
	"fmt"

	"github.com/dan1elw/LARA/internal/geo"
)

// Options holds every tunable threshold of the analysis pipeline. Validation
// happens once at construction; the detectors never re-check per call.
type Options struct {
	// Corridor detection
	HeadingToleranceDeg  float64
	ProximityThresholdKM float64
	MinCorridorLengthKM  float64
	MinLinearityScore    float64
	MinFlightsForCorridor int

	// Pattern detection
	TrendWindowDays       int
	MinPatternOccurrences int
	RouteSimilarityThreshold float64

	// PeriodicityBound is the maximum coefficient of variation of
	// occurrence time-of-day (circular stddev over 24h) for a pattern to
	// be reported as periodic.
	PeriodicityBound float64

	// Statistics
	PeakHourThreshold float64

	// Shards bounds the number of parallel workers evaluating pairwise
	// compatibility. Zero or negative means GOMAXPROCS.
	Shards int
}

// DefaultOptions returns the tuned defaults for a typical single-station
// coverage area.
func DefaultOptions() Options {
	return Options{
		HeadingToleranceDeg:      20.0,
		ProximityThresholdKM:     10.0,
		MinCorridorLengthKM:      3.0,
		MinLinearityScore:        0.3,
		MinFlightsForCorridor:    60,
		TrendWindowDays:          30,
		MinPatternOccurrences:    5,
		RouteSimilarityThreshold: 0.8,
		PeriodicityBound:         0.05,
		PeakHourThreshold:        0.7,
	}
}

// Validate checks every threshold once. All failures wrap
// geo.ErrInvalidConfig so callers can classify with errors.Is.
func (o Options) Validate() error {
	if o.HeadingToleranceDeg <= 0 || o.HeadingToleranceDeg > 180 {
		return fmt.Errorf("heading tolerance %.1f out of (0,180]: %w", o.HeadingToleranceDeg, geo.ErrInvalidConfig)
	}
	if o.ProximityThresholdKM <= 0 {
		return fmt.Errorf("proximity threshold %.1f must be positive: %w", o.ProximityThresholdKM, geo.ErrInvalidConfig)
	}
	if o.MinCorridorLengthKM <= 0 {
		return fmt.Errorf("min corridor length %.1f must be positive: %w", o.MinCorridorLengthKM, geo.ErrInvalidConfig)
	}
	if o.MinLinearityScore < 0 || o.MinLinearityScore > 1 {
		return fmt.Errorf("min linearity %.2f out of [0,1]: %w", o.MinLinearityScore, geo.ErrInvalidConfig)
	}
	if o.MinFlightsForCorridor < 1 {
		return fmt.Errorf("min flights for corridor %d must be >= 1: %w", o.MinFlightsForCorridor, geo.ErrInvalidConfig)
	}
	if o.TrendWindowDays < 1 {
		return fmt.Errorf("trend window %d days must be >= 1: %w", o.TrendWindowDays, geo.ErrInvalidConfig)
	}
	if o.MinPatternOccurrences < 1 {
		return fmt.Errorf("min pattern occurrences %d must be >= 1: %w", o.MinPatternOccurrences, geo.ErrInvalidConfig)
	}
	if o.RouteSimilarityThreshold < 0 || o.RouteSimilarityThreshold > 1 {
		return fmt.Errorf("route similarity threshold %.2f out of [0,1]: %w", o.RouteSimilarityThreshold, geo.ErrInvalidConfig)
	}
	if o.PeriodicityBound <= 0 || o.PeriodicityBound > 1 {
		return fmt.Errorf("periodicity bound %.3f out of (0,1]: %w", o.PeriodicityBound, geo.ErrInvalidConfig)
	}
	if o.PeakHourThreshold <= 0 || o.PeakHourThreshold > 1 {
		return fmt.Errorf("peak hour threshold %.2f out of (0,1]: %w", o.PeakHourThreshold, geo.ErrInvalidConfig)
	}
	return nil
}
