// Package report assembles analysis results into the JSON report served by
// the API and optionally attaches an LLM-generated summary.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dan1elw/LARA/internal/ai"
	"github.com/dan1elw/LARA/internal/analysis"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

// Report is the externally served view of one analysis run
type Report struct {
	RunID       string                  `json:"run_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Sessions    int                     `json:"session_count"`
	Overview    analysis.Overview       `json:"overview"`
	Corridors   []analysis.Corridor     `json:"corridors"`
	Patterns    []analysis.RoutePattern `json:"patterns"`
	Statistics  analysis.Statistics     `json:"statistics"`
	Summary     string                  `json:"summary,omitempty"`
}

// sessionLoader reads persisted sessions back out of storage.
type sessionLoader interface {
	LoadSessions(since time.Time) ([]*tracking.FlightSession, error)
}

// runStore persists analysis results.
type runStore interface {
	SaveAnalysisRun(result *analysis.Result) error
	UpsertDailyStats(days []analysis.DailyStatistics) error
}

// Store is the storage surface the report service needs.
type Store interface {
	sessionLoader
	runStore
}

// Service runs the analysis pipeline over stored sessions, persists the
// result and builds the report. The summarizer is optional; without one the
// report simply carries no summary.
type Service struct {
	store      Store
	analyzer   *analysis.Analyzer
	summarizer ai.SummaryProvider
	summaryCfg ai.SummaryConfig
	logger     *logger.Logger
}

// NewService creates a report service. Pass a nil summarizer to disable
// summary generation.
func NewService(store Store, analyzer *analysis.Analyzer, summarizer ai.SummaryProvider, summaryCfg ai.SummaryConfig, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		analyzer:   analyzer,
		summarizer: summarizer,
		summaryCfg: summaryCfg,
		logger:     log.Named("report"),
	}
}

// Run loads all stored sessions, runs the analysis pipeline, persists the
// result and daily statistics, and returns the assembled report. Summary
// generation failures are logged, not fatal.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	sessions, err := s.store.LoadSessions(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	result, err := s.analyzer.Run(ctx, sessions)
	if err != nil {
		return nil, fmt.Errorf("analysis run failed: %w", err)
	}

	if err := s.store.SaveAnalysisRun(result); err != nil {
		return nil, fmt.Errorf("failed to save analysis run: %w", err)
	}
	if err := s.store.UpsertDailyStats(result.Statistics.Daily); err != nil {
		return nil, fmt.Errorf("failed to upsert daily stats: %w", err)
	}

	report := Build(result)

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, Prompt(report), s.summaryCfg)
		if err != nil {
			s.logger.Warn("Summary generation failed", logger.Error(err))
		} else {
			report.Summary = summary
		}
	}

	s.logger.Info("Analysis run complete",
		logger.String("run_id", result.RunID),
		logger.Int("sessions", result.Sessions),
		logger.Int("corridors", len(result.Corridors)),
		logger.Int("patterns", len(result.Patterns)),
		logger.Duration("elapsed", result.Elapsed))

	return report, nil
}

// Build assembles the served report from a stored analysis result
func Build(result *analysis.Result) *Report {
	return &Report{
		RunID:       result.RunID,
		GeneratedAt: result.GeneratedAt,
		Sessions:    result.Sessions,
		Overview:    result.Statistics.Overview,
		Corridors:   result.Corridors,
		Patterns:    result.Patterns,
		Statistics:  result.Statistics,
	}
}

// Prompt renders the report facts the summarizer should write about. Plain
// text, one fact per line, so the model has nothing to misparse.
func Prompt(r *Report) string {
	var b strings.Builder
	b.WriteString("Write a short plain-language summary of the following air traffic analysis. ")
	b.WriteString("Two or three sentences, no markdown.\n\n")

	fmt.Fprintf(&b, "Flight sessions analyzed: %d\n", r.Sessions)
	fmt.Fprintf(&b, "Unique aircraft: %d\n", r.Overview.UniqueAircraft)
	fmt.Fprintf(&b, "Unique airlines: %d\n", r.Overview.UniqueAirlines)
	if r.Overview.ClosestApproachKM != nil {
		fmt.Fprintf(&b, "Closest approach to the observer: %.1f km\n", *r.Overview.ClosestApproachKM)
	}

	fmt.Fprintf(&b, "Traffic corridors found: %d\n", len(r.Corridors))
	for _, c := range r.Corridors {
		fmt.Fprintf(&b, "- corridor %s: %d flights, heading %.0f deg true (%.0f deg magnetic), %.1f km long\n",
			c.ID, c.MemberCount, c.MeanHeadingDeg, c.MagneticHeadingDeg, c.LengthKM)
	}

	fmt.Fprintf(&b, "Recurring route patterns found: %d\n", len(r.Patterns))
	for _, p := range r.Patterns {
		if p.Periodicity != nil {
			fmt.Fprintf(&b, "- pattern %s: %d flights, heading %.0f deg, scheduled around %s UTC\n",
				p.ID, p.OccurrenceCount, p.HeadingDeg, p.Periodicity.MeanTimeOfDayUTC)
		} else {
			fmt.Fprintf(&b, "- pattern %s: %d flights, heading %.0f deg, no fixed schedule\n",
				p.ID, p.OccurrenceCount, p.HeadingDeg)
		}
	}

	peaks := make([]string, 0, 4)
	for _, h := range r.Statistics.Hourly {
		if h.Peak {
			peaks = append(peaks, fmt.Sprintf("%02d:00", h.Hour))
		}
	}
	if len(peaks) > 0 {
		fmt.Fprintf(&b, "Peak traffic hours (UTC): %s\n", strings.Join(peaks, ", "))
	}

	return b.String()
}
