package opensky

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	require.NoError(t, err)
	return log
}

func testBBox(t *testing.T) geo.BoundingBox {
	t.Helper()
	bbox, err := geo.WGS84.BoundingBox(geo.Point{Lat: 50.0379, Lon: 8.5622}, 50)
	require.NoError(t, err)
	return bbox
}

const statesBody = `{
	"time": 1756400000,
	"states": [
		["3c6444", "DLH9CK  ", "Germany", 1756399998, 1756399999, 8.5700, 50.0400, 1100.5, false, 120.3, 92.1, 5.2, null, 1150.0, "1000", false, 0],
		["3c6675", "", "Germany", null, null, null, null, null, true, null, null, null, null, null, null, false, 0],
		[null, "GHOST", "Nowhere", null, 1756399990, 8.0, 50.0, null, false, null, null, null, null, null, null, false, 0]
	]
}`

func TestFetchStatesParsesVectors(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/states/all", r.URL.Path)
		gotQuery = map[string]string{
			"lamin": r.URL.Query().Get("lamin"),
			"lamax": r.URL.Query().Get("lamax"),
			"lomin": r.URL.Query().Get("lomin"),
			"lomax": r.URL.Query().Get("lomax"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(statesBody))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{APIURL: srv.URL}, newTestLogger(t))
	samples, err := client.FetchStates(context.Background(), testBBox(t))
	require.NoError(t, err)

	// The vector with a null icao24 is dropped, the sparse one is kept.
	require.Len(t, samples, 2)

	full := samples[0]
	assert.Equal(t, "3c6444", full.ICAO24)
	assert.Equal(t, "DLH9CK  ", full.Callsign)
	assert.Equal(t, "Germany", full.OriginCountry)
	assert.Equal(t, time.Unix(1756399999, 0).UTC(), full.Timestamp)
	require.NotNil(t, full.Lat)
	require.NotNil(t, full.Lon)
	assert.InDelta(t, 50.0400, *full.Lat, 1e-9)
	assert.InDelta(t, 8.5700, *full.Lon, 1e-9)
	require.NotNil(t, full.BaroAltitudeM)
	assert.InDelta(t, 1100.5, *full.BaroAltitudeM, 1e-9)
	require.NotNil(t, full.HeadingDeg)
	assert.InDelta(t, 92.1, *full.HeadingDeg, 1e-9)
	assert.Equal(t, "1000", full.Squawk)
	assert.False(t, full.OnGround)

	sparse := samples[1]
	assert.Equal(t, "3c6675", sparse.ICAO24)
	assert.Nil(t, sparse.Lat)
	assert.Nil(t, sparse.VelocityMS)
	assert.True(t, sparse.OnGround)
	// No last_contact means the batch timestamp applies.
	assert.Equal(t, time.Unix(1756400000, 0).UTC(), sparse.Timestamp)

	for _, key := range []string{"lamin", "lamax", "lomin", "lomax"} {
		assert.NotEmpty(t, gotQuery[key])
	}
}

func TestFetchStatesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "90")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{APIURL: srv.URL}, newTestLogger(t))
	_, err := client.FetchStates(context.Background(), testBBox(t))
	require.Error(t, err)

	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 90*time.Second, rl.RetryAfter)
}

func TestFetchStatesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{APIURL: srv.URL}, newTestLogger(t))
	_, err := client.FetchStates(context.Background(), testBBox(t))
	require.Error(t, err)

	var rl *RateLimitError
	assert.False(t, errors.As(err, &rl))
}

func TestParseStateShortVector(t *testing.T) {
	sample, ok := parseState([]any{"abc123"}, time.Unix(1756400000, 0).UTC())
	require.True(t, ok)
	assert.Equal(t, "abc123", sample.ICAO24)
	assert.Nil(t, sample.Lat)
	assert.Equal(t, time.Unix(1756400000, 0).UTC(), sample.Timestamp)

	_, ok = parseState([]any{}, time.Unix(1756400000, 0).UTC())
	assert.False(t, ok)
}
