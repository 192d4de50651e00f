package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan1elw/LARA/internal/ai"
	"github.com/dan1elw/LARA/internal/analysis"
	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
	"github.com/dan1elw/LARA/pkg/logger"
)

var reportHome = geo.Point{Lat: 50.0379, Lon: 8.5622}

type fakeStore struct {
	sessions  []*tracking.FlightSession
	savedRuns []*analysis.Result
	upserted  [][]analysis.DailyStatistics
}

func (f *fakeStore) LoadSessions(since time.Time) ([]*tracking.FlightSession, error) {
	return f.sessions, nil
}

func (f *fakeStore) SaveAnalysisRun(result *analysis.Result) error {
	f.savedRuns = append(f.savedRuns, result)
	return nil
}

func (f *fakeStore) UpsertDailyStats(days []analysis.DailyStatistics) error {
	f.upserted = append(f.upserted, days)
	return nil
}

type fakeSummarizer struct {
	prompt string
	out    string
	err    error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, prompt string, config ai.SummaryConfig) (string, error) {
	f.prompt = prompt
	return f.out, f.err
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)
	return log
}

func newTestAnalyzer(t *testing.T) *analysis.Analyzer {
	t.Helper()
	a, err := analysis.NewAnalyzer(geo.WGS84, reportHome, time.UTC, analysis.DefaultOptions(), newTestLogger(t))
	require.NoError(t, err)
	return a
}

func reportSession(icao24 string, ts time.Time) *tracking.FlightSession {
	lat, lon := 50.05, 8.60
	alt := 2000.0
	sample := tracking.PositionSample{
		ICAO24:        icao24,
		Callsign:      "TST101",
		Timestamp:     ts,
		Lat:           &lat,
		Lon:           &lon,
		BaroAltitudeM: &alt,
	}
	return &tracking.FlightSession{
		ID:        icao24 + "_TST101_" + ts.UTC().Format("20060102"),
		ICAO24:    icao24,
		Callsign:  "TST101",
		FirstSeen: ts,
		LastSeen:  ts,
		Samples:   []tracking.PositionSample{sample},
	}
}

func TestServiceRunPersistsAndBuilds(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{sessions: []*tracking.FlightSession{
		reportSession("3c6444", base),
		reportSession("3c6675", base.Add(time.Hour)),
	}}
	svc := NewService(store, newTestAnalyzer(t), nil, ai.SummaryConfig{}, newTestLogger(t))

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, store.savedRuns, 1)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, store.savedRuns[0].RunID, rep.RunID)
	assert.Equal(t, 2, rep.Sessions)
	assert.Equal(t, 2, rep.Overview.TotalSessions)
	assert.Empty(t, rep.Summary)
}

func TestServiceRunAttachesSummary(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{sessions: []*tracking.FlightSession{reportSession("3c6444", base)}}
	sum := &fakeSummarizer{out: "Quiet day over the field."}
	svc := NewService(store, newTestAnalyzer(t), sum, ai.SummaryConfig{}, newTestLogger(t))

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Quiet day over the field.", rep.Summary)
	assert.Contains(t, sum.prompt, "Flight sessions analyzed: 1")
}

func TestServiceRunSummaryFailureNotFatal(t *testing.T) {
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{sessions: []*tracking.FlightSession{reportSession("3c6444", base)}}
	sum := &fakeSummarizer{err: assert.AnError}
	svc := NewService(store, newTestAnalyzer(t), sum, ai.SummaryConfig{}, newTestLogger(t))

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Summary)
	assert.Len(t, store.savedRuns, 1)
}

func TestPromptListsCorridorsAndPeaks(t *testing.T) {
	rep := &Report{
		Sessions: 120,
		Overview: analysis.Overview{TotalSessions: 120, UniqueAircraft: 40, UniqueAirlines: 6},
		Corridors: []analysis.Corridor{{
			ID:                 "corridor_001",
			MemberCount:        80,
			MeanHeadingDeg:     92,
			MagneticHeadingDeg: 89,
			LengthKM:           5.1,
		}},
		Patterns: []analysis.RoutePattern{{
			ID:              "pattern_001",
			OccurrenceCount: 8,
			HeadingDeg:      90,
			Periodicity:     &analysis.Periodicity{MeanTimeOfDayUTC: "14:00"},
		}},
		Statistics: analysis.Statistics{Hourly: []analysis.HourlyBucket{
			{Hour: 13, SessionCount: 60, Peak: true},
			{Hour: 3, SessionCount: 2},
		}},
	}

	prompt := Prompt(rep)
	assert.Contains(t, prompt, "corridor corridor_001: 80 flights")
	assert.Contains(t, prompt, "scheduled around 14:00 UTC")
	assert.Contains(t, prompt, "Peak traffic hours (UTC): 13:00")
	assert.NotContains(t, prompt, "03:00")
}
