package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

// Result is the output of one analysis run. Derived entities reference
// sessions by ID only; the session batch remains the single source of truth.
type Result struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Elapsed     time.Duration  `json:"elapsed_ns"`
	Sessions    int            `json:"session_count"`
	Corridors   []Corridor     `json:"corridors"`
	Patterns    []RoutePattern `json:"patterns"`
	Statistics  Statistics     `json:"statistics"`
}

// Analyzer runs the full pipeline over a batch of sealed sessions: corridor
// detection, pattern detection and statistics aggregation. It performs no
// I/O; callers own persistence and time limits.
type Analyzer struct {
	corridors  *CorridorDetector
	patterns   *PatternDetector
	aggregator *Aggregator
	logger     *logger.Logger
}

// NewAnalyzer validates the options once and wires the three stages.
func NewAnalyzer(spheroid geo.Spheroid, home geo.Point, loc *time.Location, opts Options, log *logger.Logger) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	aggregator, err := NewAggregator(spheroid, home, loc, opts)
	if err != nil {
		return nil, err
	}
	return &Analyzer{
		corridors:  NewCorridorDetector(spheroid, opts, log),
		patterns:   NewPatternDetector(spheroid, opts, log),
		aggregator: aggregator,
		logger:     log.Named("analyzer"),
	}, nil
}

// Run executes one batch analysis. The run is deterministic for a given
// session batch; the run ID and timestamps are the only varying outputs.
func (a *Analyzer) Run(ctx context.Context, sessions []*tracking.FlightSession) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()

	a.logger.Info("Starting analysis run",
		logger.String("run_id", runID),
		logger.Int("sessions", len(sessions)),
	)

	asOf := newestObservation(sessions, started)

	corridors, err := a.corridors.Detect(ctx, sessions, asOf)
	if err != nil {
		return nil, err
	}

	patterns, err := a.patterns.Detect(ctx, sessions)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:       runID,
		GeneratedAt: started.UTC(),
		Sessions:    len(sessions),
		Corridors:   corridors,
		Patterns:    patterns,
		Statistics:  a.aggregator.Aggregate(sessions),
	}
	result.Elapsed = time.Since(started)

	a.logger.Info("Analysis run complete",
		logger.String("run_id", runID),
		logger.Int("corridors", len(corridors)),
		logger.Int("patterns", len(patterns)),
		logger.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// newestObservation anchors date-dependent math (magnetic declination) on
// the data rather than the wall clock, falling back to now for an empty
// batch.
func newestObservation(sessions []*tracking.FlightSession, now time.Time) time.Time {
	newest := time.Time{}
	for _, sess := range sessions {
		if sess.LastSeen.After(newest) {
			newest = sess.LastSeen
		}
	}
	if newest.IsZero() {
		return now
	}
	return newest
}
