package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
)

// DailyStatistics is the aggregate over one calendar date in the observer's
// time zone. It is a disposable projection, recomputable at any time from
// the sessions of that date.
type DailyStatistics struct {
	Date          string   `json:"date"`
	SessionCount  int      `json:"session_count"`
	PositionCount int      `json:"position_count"`
	MeanAltitudeM *float64 `json:"mean_altitude_m,omitempty"`
	MinDistanceKM *float64 `json:"min_distance_km,omitempty"`
}

// HourlyBucket is the session count for one hour of day. Peak marks hours
// whose traffic reaches the configured fraction of the busiest hour.
type HourlyBucket struct {
	Hour         int  `json:"hour"`
	SessionCount int  `json:"session_count"`
	Peak         bool `json:"peak"`
}

// WeekdayBucket is the session count for one day of the week.
type WeekdayBucket struct {
	Weekday      string `json:"weekday"`
	SessionCount int    `json:"session_count"`
}

// AirlineCount is the session count for one airline designator, taken as
// the three-letter callsign prefix.
type AirlineCount struct {
	Airline      string `json:"airline"`
	SessionCount int    `json:"session_count"`
}

// ClassBucket is one band of an altitude or distance distribution. A nil
// upper bound means unbounded.
type ClassBucket struct {
	Class string   `json:"class"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max,omitempty"`
	Count int      `json:"count"`
}

// Overview is the whole-batch summary line of a statistics run.
type Overview struct {
	TotalSessions     int        `json:"total_sessions"`
	UniqueAircraft    int        `json:"unique_aircraft"`
	UniqueAirlines    int        `json:"unique_airlines"`
	TotalPositions    int        `json:"total_positions"`
	ClosestApproachKM *float64   `json:"closest_approach_km,omitempty"`
	MeanAltitudeM     *float64   `json:"mean_altitude_m,omitempty"`
	FirstObservation  *time.Time `json:"first_observation,omitempty"`
	LastObservation   *time.Time `json:"last_observation,omitempty"`
}

// Statistics bundles every aggregate view over one session batch.
type Statistics struct {
	Overview             Overview          `json:"overview"`
	Daily                []DailyStatistics `json:"daily"`
	Hourly               []HourlyBucket    `json:"hourly"`
	Weekdays             []WeekdayBucket   `json:"weekdays"`
	Airlines             []AirlineCount    `json:"airlines"`
	AltitudeDistribution []ClassBucket     `json:"altitude_distribution"`
	DistanceDistribution []ClassBucket     `json:"distance_distribution"`
}

// classBand is a half-open [Min, Max) value band; Max of +Inf is unbounded.
type classBand struct {
	name     string
	min, max float64
}

// Altitude bands in meters and distance-from-home bands in km.
var (
	altitudeBands = []classBand{
		{"very_low", 0, 1000},
		{"low", 1000, 3000},
		{"medium", 3000, 6000},
		{"high", 6000, 9000},
		{"very_high", 9000, 12000},
		{"cruise", 12000, math.Inf(1)},
	}
	distanceBands = []classBand{
		{"very_close", 0, 5},
		{"close", 5, 10},
		{"medium", 10, 20},
		{"far", 20, 30},
		{"very_far", 30, math.Inf(1)},
	}
)

// Aggregator rolls session batches into statistics. Every method is a pure
// function of its inputs; there is no internal state beyond configuration.
type Aggregator struct {
	spheroid geo.Spheroid
	home     geo.Point
	location *time.Location
	opts     Options
}

// NewAggregator creates an aggregator for the given home location and
// observer time zone. A nil location defaults to UTC.
func NewAggregator(spheroid geo.Spheroid, home geo.Point, loc *time.Location, opts Options) (*Aggregator, error) {
	if err := geo.ValidatePoint(home); err != nil {
		return nil, fmt.Errorf("home location: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		spheroid: spheroid,
		home:     home,
		location: loc,
		opts:     opts,
	}, nil
}

// Aggregate computes every statistics view over the batch.
func (a *Aggregator) Aggregate(sessions []*tracking.FlightSession) Statistics {
	return Statistics{
		Overview:             a.OverviewOf(sessions),
		Daily:                a.Daily(sessions),
		Hourly:               a.Hourly(sessions),
		Weekdays:             a.Weekdays(sessions),
		Airlines:             a.Airlines(sessions),
		AltitudeDistribution: a.AltitudeDistribution(sessions),
		DistanceDistribution: a.DistanceDistribution(sessions),
	}
}

// OverviewOf computes the whole-batch summary.
func (a *Aggregator) OverviewOf(sessions []*tracking.FlightSession) Overview {
	o := Overview{TotalSessions: len(sessions)}

	aircraft := make(map[string]struct{})
	airlines := make(map[string]struct{})
	var altSum float64
	var altCount int

	for _, sess := range sessions {
		aircraft[sess.ICAO24] = struct{}{}
		if prefix := airlinePrefix(sess.Callsign); prefix != "" {
			airlines[prefix] = struct{}{}
		}
		o.TotalPositions += len(sess.Samples)

		for _, sample := range sess.Samples {
			if p, ok := sample.Position(); ok {
				d := a.spheroid.DistanceKM(a.home, p)
				if o.ClosestApproachKM == nil || d < *o.ClosestApproachKM {
					o.ClosestApproachKM = &d
				}
			}
			if alt, ok := sample.AltitudeM(); ok {
				altSum += alt
				altCount++
			}
		}

		if o.FirstObservation == nil || sess.FirstSeen.Before(*o.FirstObservation) {
			first := sess.FirstSeen
			o.FirstObservation = &first
		}
		if o.LastObservation == nil || sess.LastSeen.After(*o.LastObservation) {
			last := sess.LastSeen
			o.LastObservation = &last
		}
	}

	o.UniqueAircraft = len(aircraft)
	o.UniqueAirlines = len(airlines)
	if altCount > 0 {
		mean := altSum / float64(altCount)
		o.MeanAltitudeM = &mean
	}
	return o
}

// Daily groups the batch by the calendar date, in the observer's time zone,
// on which each session opened. Dates are returned in ascending order.
func (a *Aggregator) Daily(sessions []*tracking.FlightSession) []DailyStatistics {
	type acc struct {
		stats    DailyStatistics
		altSum   float64
		altCount int
	}
	byDate := make(map[string]*acc)

	for _, sess := range sessions {
		date := sess.FirstSeen.In(a.location).Format("2006-01-02")
		day, ok := byDate[date]
		if !ok {
			day = &acc{stats: DailyStatistics{Date: date}}
			byDate[date] = day
		}
		day.stats.SessionCount++
		day.stats.PositionCount += len(sess.Samples)

		for _, sample := range sess.Samples {
			if p, ok := sample.Position(); ok {
				d := a.spheroid.DistanceKM(a.home, p)
				if day.stats.MinDistanceKM == nil || d < *day.stats.MinDistanceKM {
					day.stats.MinDistanceKM = &d
				}
			}
			if alt, ok := sample.AltitudeM(); ok {
				day.altSum += alt
				day.altCount++
			}
		}
	}

	out := make([]DailyStatistics, 0, len(byDate))
	for _, day := range byDate {
		if day.altCount > 0 {
			mean := day.altSum / float64(day.altCount)
			day.stats.MeanAltitudeM = &mean
		}
		out = append(out, day.stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Hourly buckets sessions by opening hour of day and flags peak hours. An
// hour is peak when its count reaches the threshold fraction of the busiest
// hour's count.
func (a *Aggregator) Hourly(sessions []*tracking.FlightSession) []HourlyBucket {
	var counts [24]int
	for _, sess := range sessions {
		counts[sess.FirstSeen.In(a.location).Hour()]++
	}

	busiest := 0
	for _, c := range counts {
		if c > busiest {
			busiest = c
		}
	}

	out := make([]HourlyBucket, 24)
	for h, c := range counts {
		out[h] = HourlyBucket{
			Hour:         h,
			SessionCount: c,
			Peak:         busiest > 0 && float64(c) >= a.opts.PeakHourThreshold*float64(busiest),
		}
	}
	return out
}

// Weekdays buckets sessions by opening day of week, Sunday first.
func (a *Aggregator) Weekdays(sessions []*tracking.FlightSession) []WeekdayBucket {
	var counts [7]int
	for _, sess := range sessions {
		counts[int(sess.FirstSeen.In(a.location).Weekday())]++
	}

	out := make([]WeekdayBucket, 7)
	for d, c := range counts {
		out[d] = WeekdayBucket{
			Weekday:      time.Weekday(d).String(),
			SessionCount: c,
		}
	}
	return out
}

// Airlines counts sessions per three-letter callsign prefix, descending by
// count with a stable alphabetical tiebreak. Unknown callsigns are skipped.
func (a *Aggregator) Airlines(sessions []*tracking.FlightSession) []AirlineCount {
	counts := make(map[string]int)
	for _, sess := range sessions {
		if prefix := airlinePrefix(sess.Callsign); prefix != "" {
			counts[prefix]++
		}
	}

	out := make([]AirlineCount, 0, len(counts))
	for airline, count := range counts {
		out = append(out, AirlineCount{Airline: airline, SessionCount: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionCount != out[j].SessionCount {
			return out[i].SessionCount > out[j].SessionCount
		}
		return out[i].Airline < out[j].Airline
	})
	return out
}

// AltitudeDistribution counts positions per altitude band.
func (a *Aggregator) AltitudeDistribution(sessions []*tracking.FlightSession) []ClassBucket {
	return a.distribution(sessions, altitudeBands, func(sample tracking.PositionSample) (float64, bool) {
		return sample.AltitudeM()
	})
}

// DistanceDistribution counts positions per distance-from-home band.
func (a *Aggregator) DistanceDistribution(sessions []*tracking.FlightSession) []ClassBucket {
	return a.distribution(sessions, distanceBands, func(sample tracking.PositionSample) (float64, bool) {
		p, ok := sample.Position()
		if !ok {
			return 0, false
		}
		return a.spheroid.DistanceKM(a.home, p), true
	})
}

func (a *Aggregator) distribution(sessions []*tracking.FlightSession, bands []classBand, value func(tracking.PositionSample) (float64, bool)) []ClassBucket {
	out := make([]ClassBucket, len(bands))
	for i, band := range bands {
		out[i] = ClassBucket{Class: band.name, Min: band.min}
		if !math.IsInf(band.max, 1) {
			max := band.max
			out[i].Max = &max
		}
	}

	for _, sess := range sessions {
		for _, sample := range sess.Samples {
			v, ok := value(sample)
			if !ok {
				continue
			}
			for i, band := range bands {
				if v >= band.min && v < band.max {
					out[i].Count++
					break
				}
			}
		}
	}
	return out
}

// airlinePrefix extracts the three-letter airline designator from a
// callsign, or "" when the callsign does not carry one.
func airlinePrefix(callsign string) string {
	if callsign == tracking.UnknownCallsign || len(callsign) < 3 {
		return ""
	}
	prefix := strings.ToUpper(callsign[:3])
	for _, r := range prefix {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return prefix
}
