package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
)

var statsHome = geo.Point{Lat: 50.0379, Lon: 8.5622}

func newTestAggregator(t *testing.T, loc *time.Location) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(geo.WGS84, statsHome, loc, DefaultOptions())
	require.NoError(t, err)
	return agg
}

func statsSession(icao24, callsign string, first time.Time, altM, lat, lon float64) *tracking.FlightSession {
	sample := tracking.PositionSample{
		ICAO24:        icao24,
		Callsign:      callsign,
		Timestamp:     first,
		Lat:           f64(lat),
		Lon:           f64(lon),
		BaroAltitudeM: f64(altM),
	}
	return &tracking.FlightSession{
		ID:        icao24 + "_" + callsign,
		ICAO24:    icao24,
		Callsign:  callsign,
		FirstSeen: first,
		LastSeen:  first,
		Samples:   []tracking.PositionSample{sample},
		Summary:   tracking.SessionSummary{SampleCount: 1},
	}
}

func TestAggregatorDaily(t *testing.T) {
	agg := newTestAggregator(t, time.UTC)
	d1 := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	d2 := time.Date(2026, 5, 2, 0, 30, 0, 0, time.UTC)

	sessions := []*tracking.FlightSession{
		statsSession("aaa111", "DLH100", d1, 2000, 50.1, 8.6),
		statsSession("bbb222", "DLH200", d1.Add(-time.Hour), 4000, 50.2, 8.7),
		statsSession("ccc333", "RYR300", d2, 6000, 50.0379, 8.5622),
	}

	daily := agg.Daily(sessions)
	require.Len(t, daily, 2)

	assert.Equal(t, "2026-05-01", daily[0].Date)
	assert.Equal(t, 2, daily[0].SessionCount)
	assert.Equal(t, 2, daily[0].PositionCount)
	require.NotNil(t, daily[0].MeanAltitudeM)
	assert.Equal(t, 3000.0, *daily[0].MeanAltitudeM)

	assert.Equal(t, "2026-05-02", daily[1].Date)
	assert.Equal(t, 1, daily[1].SessionCount)
	require.NotNil(t, daily[1].MinDistanceKM)
	assert.InDelta(t, 0, *daily[1].MinDistanceKM, 0.01)
}

func TestAggregatorDailyObserverTimeZone(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	agg := newTestAggregator(t, berlin)

	// 23:30 UTC on May 1 is already May 2 in Berlin (UTC+2 in summer).
	late := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	daily := agg.Daily([]*tracking.FlightSession{
		statsSession("aaa111", "DLH100", late, 2000, 50.1, 8.6),
	})

	require.Len(t, daily, 1)
	assert.Equal(t, "2026-05-02", daily[0].Date)
}

func TestAggregatorHourlyPeak(t *testing.T) {
	agg := newTestAggregator(t, time.UTC)
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	var sessions []*tracking.FlightSession
	add := func(hour, n int) {
		for i := 0; i < n; i++ {
			sessions = append(sessions, statsSession(
				"aaa111", "DLH100", day.Add(time.Duration(hour)*time.Hour), 2000, 50.1, 8.6))
		}
	}
	add(8, 10) // busiest
	add(9, 7)  // 0.7 of busiest, still peak
	add(10, 6) // below threshold
	add(23, 1)

	hourly := agg.Hourly(sessions)
	require.Len(t, hourly, 24)
	assert.True(t, hourly[8].Peak)
	assert.True(t, hourly[9].Peak)
	assert.False(t, hourly[10].Peak)
	assert.False(t, hourly[23].Peak)
	assert.False(t, hourly[0].Peak, "empty hours are never peak")
	assert.Equal(t, 10, hourly[8].SessionCount)
}

func TestAggregatorAirlines(t *testing.T) {
	agg := newTestAggregator(t, time.UTC)
	day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	sessions := []*tracking.FlightSession{
		statsSession("a1", "DLH100", day, 2000, 50.1, 8.6),
		statsSession("a2", "DLH200", day, 2000, 50.1, 8.6),
		statsSession("a3", "RYR300", day, 2000, 50.1, 8.6),
		statsSession("a4", tracking.UnknownCallsign, day, 2000, 50.1, 8.6),
		statsSession("a5", "D2", day, 2000, 50.1, 8.6), // no designator
	}

	airlines := agg.Airlines(sessions)
	require.Len(t, airlines, 2)
	assert.Equal(t, AirlineCount{Airline: "DLH", SessionCount: 2}, airlines[0])
	assert.Equal(t, AirlineCount{Airline: "RYR", SessionCount: 1}, airlines[1])
}

func TestAggregatorDistributions(t *testing.T) {
	agg := newTestAggregator(t, time.UTC)
	day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	sessions := []*tracking.FlightSession{
		statsSession("a1", "DLH100", day, 500, 50.0379, 8.5622),  // very_low, very_close
		statsSession("a2", "DLH200", day, 5000, 50.3, 8.6),       // medium altitude, far
		statsSession("a3", "DLH300", day, 13000, 51.0, 8.6),      // cruise, very_far
	}

	alt := agg.AltitudeDistribution(sessions)
	byClass := func(buckets []ClassBucket, name string) int {
		for _, b := range buckets {
			if b.Class == name {
				return b.Count
			}
		}
		t.Fatalf("missing class %s", name)
		return 0
	}

	assert.Equal(t, 1, byClass(alt, "very_low"))
	assert.Equal(t, 1, byClass(alt, "medium"))
	assert.Equal(t, 1, byClass(alt, "cruise"))
	assert.Equal(t, 0, byClass(alt, "high"))

	dist := agg.DistanceDistribution(sessions)
	assert.Equal(t, 1, byClass(dist, "very_close"))
	assert.Equal(t, 1, byClass(dist, "very_far"))
}

func TestAggregatorOverview(t *testing.T) {
	agg := newTestAggregator(t, time.UTC)
	day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	sessions := []*tracking.FlightSession{
		statsSession("a1", "DLH100", day, 2000, 50.1, 8.6),
		statsSession("a1", "DLH101", day.Add(time.Hour), 4000, 50.2, 8.7),
		statsSession("b2", "RYR300", day.Add(2*time.Hour), 6000, 50.0379, 8.5622),
	}

	o := agg.OverviewOf(sessions)
	assert.Equal(t, 3, o.TotalSessions)
	assert.Equal(t, 2, o.UniqueAircraft)
	assert.Equal(t, 2, o.UniqueAirlines)
	assert.Equal(t, 3, o.TotalPositions)
	require.NotNil(t, o.MeanAltitudeM)
	assert.Equal(t, 4000.0, *o.MeanAltitudeM)
	require.NotNil(t, o.ClosestApproachKM)
	assert.InDelta(t, 0, *o.ClosestApproachKM, 0.01)
	require.NotNil(t, o.FirstObservation)
	assert.Equal(t, day, *o.FirstObservation)
	require.NotNil(t, o.LastObservation)
	assert.Equal(t, day.Add(2*time.Hour), *o.LastObservation)
}

func TestAggregatorPure(t *testing.T) {
	agg := newTestAggregator(t, time.UTC)
	day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sessions := []*tracking.FlightSession{
		statsSession("a1", "DLH100", day, 2000, 50.1, 8.6),
	}

	first := agg.Aggregate(sessions)
	second := agg.Aggregate(sessions)
	assert.Equal(t, first, second)
}
