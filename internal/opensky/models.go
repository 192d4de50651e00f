package opensky

import (
	"time"

	"github.com/dan1elw/LARA/internal/tracking"
)

// stateResponse is the wire shape of the OpenSky /states/all endpoint: a
// batch timestamp plus one heterogeneous array per aircraft.
type stateResponse struct {
	Time   int64   `json:"time"`
	States [][]any `json:"states"`
}

// State-vector array indices per the OpenSky REST documentation.
const (
	idxICAO24        = 0
	idxCallsign      = 1
	idxOriginCountry = 2
	idxTimePosition  = 3
	idxLastContact   = 4
	idxLongitude     = 5
	idxLatitude      = 6
	idxBaroAltitude  = 7
	idxOnGround      = 8
	idxVelocity      = 9
	idxTrueTrack     = 10
	idxVerticalRate  = 11
	idxGeoAltitude   = 13
	idxSquawk        = 14
)

// parseState converts one OpenSky state-vector array into a position sample.
// Nil array slots are the API's way of saying "unknown"; they map onto the
// sample's optional fields. Returns ok=false when the vector carries no
// usable identity.
func parseState(state []any, batchTime time.Time) (tracking.PositionSample, bool) {
	icao24 := stringAt(state, idxICAO24)
	if icao24 == "" {
		return tracking.PositionSample{}, false
	}

	ts := batchTime
	if lastContact, ok := floatAt(state, idxLastContact); ok {
		ts = time.Unix(int64(lastContact), 0).UTC()
	}

	sample := tracking.PositionSample{
		ICAO24:        icao24,
		Callsign:      stringAt(state, idxCallsign),
		OriginCountry: stringAt(state, idxOriginCountry),
		Timestamp:     ts,
		Squawk:        stringAt(state, idxSquawk),
	}

	if lon, ok := floatAt(state, idxLongitude); ok {
		sample.Lon = &lon
	}
	if lat, ok := floatAt(state, idxLatitude); ok {
		sample.Lat = &lat
	}
	if alt, ok := floatAt(state, idxBaroAltitude); ok {
		sample.BaroAltitudeM = &alt
	}
	if alt, ok := floatAt(state, idxGeoAltitude); ok {
		sample.GeoAltitudeM = &alt
	}
	if v, ok := floatAt(state, idxVelocity); ok {
		sample.VelocityMS = &v
	}
	if h, ok := floatAt(state, idxTrueTrack); ok {
		sample.HeadingDeg = &h
	}
	if vr, ok := floatAt(state, idxVerticalRate); ok {
		sample.VerticalRateMS = &vr
	}
	if onGround, ok := boolAt(state, idxOnGround); ok {
		sample.OnGround = onGround
	}

	return sample, true
}

func stringAt(state []any, idx int) string {
	if idx >= len(state) {
		return ""
	}
	s, _ := state[idx].(string)
	return s
}

func floatAt(state []any, idx int) (float64, bool) {
	if idx >= len(state) {
		return 0, false
	}
	f, ok := state[idx].(float64)
	return f, ok
}

func boolAt(state []any, idx int) (bool, bool) {
	if idx >= len(state) {
		return false, false
	}
	b, ok := state[idx].(bool)
	return b, ok
}
