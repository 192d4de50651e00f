package tracking

import (
	"fmt"
	"strings"
	"time"

	"github.com/dan1elw/LARA/internal/geo"
)

// UnknownCallsign is the normalized identity for samples reporting an empty
// or whitespace callsign. It is a distinct identity from any real callsign.
const UnknownCallsign = "unknown"

// PositionSample is one ADS-B state vector for an aircraft at an instant.
// Samples are immutable after ingest; optional telemetry is carried as nil
// pointers and never substituted with fabricated values.
type PositionSample struct {
	ICAO24         string     `json:"icao24"`
	Callsign       string     `json:"callsign,omitempty"`
	OriginCountry  string     `json:"origin_country,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	Lat            *float64   `json:"lat,omitempty"`
	Lon            *float64   `json:"lon,omitempty"`
	BaroAltitudeM  *float64   `json:"baro_altitude_m,omitempty"`
	GeoAltitudeM   *float64   `json:"geo_altitude_m,omitempty"`
	VelocityMS     *float64   `json:"velocity_ms,omitempty"`
	HeadingDeg     *float64   `json:"heading,omitempty"`
	VerticalRateMS *float64   `json:"vertical_rate_ms,omitempty"`
	OnGround       bool       `json:"on_ground"`
	Squawk         string     `json:"squawk,omitempty"`
}

// Position returns the sample's fix and whether one is present
func (p PositionSample) Position() (geo.Point, bool) {
	if p.Lat == nil || p.Lon == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *p.Lat, Lon: *p.Lon}, true
}

// AltitudeM returns the best available altitude, preferring barometric
func (p PositionSample) AltitudeM() (float64, bool) {
	if p.BaroAltitudeM != nil {
		return *p.BaroAltitudeM, true
	}
	if p.GeoAltitudeM != nil {
		return *p.GeoAltitudeM, true
	}
	return 0, false
}

// NormalizeCallsign trims a raw callsign and maps empty/whitespace to the
// unknown identity.
func NormalizeCallsign(raw string) string {
	cs := strings.TrimSpace(raw)
	if cs == "" {
		return UnknownCallsign
	}
	return cs
}

// SessionSummary holds derived per-session aggregates. Pointer fields are
// nil when no sample carried the underlying telemetry.
type SessionSummary struct {
	SampleCount    int      `json:"sample_count"`
	MinDistanceKM  *float64 `json:"min_distance_km,omitempty"`
	MaxAltitudeM   *float64 `json:"max_altitude_m,omitempty"`
	MinAltitudeM   *float64 `json:"min_altitude_m,omitempty"`
	MeanVelocityMS *float64 `json:"mean_velocity_ms,omitempty"`
}

// FlightSession is a maximal run of samples for one (icao24, callsign)
// identity with no gap above the idle timeout. Sealed sessions are immutable
// and are the single source of truth for all downstream analysis.
type FlightSession struct {
	ID        string           `json:"id"`
	ICAO24    string           `json:"icao24"`
	Callsign  string           `json:"callsign"`
	FirstSeen time.Time        `json:"first_seen"`
	LastSeen  time.Time        `json:"last_seen"`
	Samples   []PositionSample `json:"samples"`
	Summary   SessionSummary   `json:"summary"`
}

// sessionID builds a deterministic identifier so repeated runs over the same
// input refer to the same sessions.
func sessionID(icao24, callsign string, firstSeen time.Time) string {
	return fmt.Sprintf("%s_%s_%d", icao24, callsign, firstSeen.UTC().Unix())
}

// Track returns the session's valid fixes in time order
func (s *FlightSession) Track() []geo.Point {
	track := make([]geo.Point, 0, len(s.Samples))
	for _, sample := range s.Samples {
		if p, ok := sample.Position(); ok {
			track = append(track, p)
		}
	}
	return track
}

// Duration returns the elapsed time between the first and last sample
func (s *FlightSession) Duration() time.Duration {
	return s.LastSeen.Sub(s.FirstSeen)
}
