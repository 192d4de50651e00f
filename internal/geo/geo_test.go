package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKnownPairs(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Point
		wantKM  float64
		within  float64
	}{
		{
			name:   "frankfurt to mainz",
			a:      Point{Lat: 50.0379, Lon: 8.5622},
			b:      Point{Lat: 49.9929, Lon: 8.2473},
			wantKM: 23.0,
			within: 1.5,
		},
		{
			name:   "same point",
			a:      Point{Lat: 52.52, Lon: 13.37},
			b:      Point{Lat: 52.52, Lon: 13.37},
			wantKM: 0,
			within: 0.001,
		},
		{
			name:   "one degree of latitude",
			a:      Point{Lat: 0, Lon: 0},
			b:      Point{Lat: 1, Lon: 0},
			wantKM: 111.19,
			within: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := WGS84.Distance(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantKM, d, tt.within)
		})
	}
}

func TestDistanceInvalidCoordinates(t *testing.T) {
	bad := []Point{
		{Lat: 91, Lon: 0},
		{Lat: -91, Lon: 0},
		{Lat: 0, Lon: 181},
		{Lat: 0, Lon: -181},
		{Lat: math.NaN(), Lon: 0},
		{Lat: 0, Lon: math.Inf(1)},
	}
	good := Point{Lat: 50, Lon: 8}

	for _, p := range bad {
		_, err := WGS84.Distance(p, good)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
		_, err = WGS84.Distance(good, p)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	}
}

func TestInitialBearingCardinal(t *testing.T) {
	origin := Point{Lat: 50, Lon: 8}

	north, err := WGS84.InitialBearing(origin, Point{Lat: 51, Lon: 8})
	require.NoError(t, err)
	assert.InDelta(t, 0, north, 0.1)

	east, err := WGS84.InitialBearing(origin, Point{Lat: 50, Lon: 9})
	require.NoError(t, err)
	assert.InDelta(t, 90, east, 1.0)

	south, err := WGS84.InitialBearing(origin, Point{Lat: 49, Lon: 8})
	require.NoError(t, err)
	assert.InDelta(t, 180, south, 0.1)

	west, err := WGS84.InitialBearing(origin, Point{Lat: 50, Lon: 7})
	require.NoError(t, err)
	assert.InDelta(t, 270, west, 1.0)
}

func TestBoundingBoxRejectsBadRadius(t *testing.T) {
	center := Point{Lat: 50.0379, Lon: 8.5622}
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := WGS84.BoundingBox(center, r)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

// The box must contain the center and any point whose exact distance to the
// center is within the radius, across randomized centers and radii.
func TestBoundingBoxConservative(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 150; i++ {
		center := Point{
			Lat: rng.Float64()*140 - 70, // keep away from the poles
			Lon: rng.Float64()*360 - 180,
		}
		radius := rng.Float64()*190 + 10

		box, err := WGS84.BoundingBox(center, radius)
		require.NoError(t, err)
		assert.True(t, box.Contains(center), "box must contain its own center")

		// Sample points around the center and check the containment property
		for j := 0; j < 20; j++ {
			p := Point{
				Lat: center.Lat + (rng.Float64()*2-1)*radius/WGS84.KMPerDegreeLat*1.6,
				Lon: center.Lon + (rng.Float64()*2-1)*radius/WGS84.KMPerDegreeLat*1.6,
			}
			if ValidatePoint(p) != nil {
				continue
			}
			d, err := WGS84.Distance(center, p)
			require.NoError(t, err)
			if d <= radius {
				assert.True(t, box.Contains(p),
					"point %.4f,%.4f at %.2fkm must be inside box for radius %.2fkm", p.Lat, p.Lon, d, radius)
			}
		}
	}
}

func TestCircularMean(t *testing.T) {
	mean, ok := CircularMean([]float64{350, 10}, nil)
	require.True(t, ok)
	assert.InDelta(t, 0, math.Min(mean, 360-mean), 0.001)

	mean, ok = CircularMean([]float64{80, 100}, nil)
	require.True(t, ok)
	assert.InDelta(t, 90, mean, 0.001)

	// Weighted: the heavier heading dominates
	mean, ok = CircularMean([]float64{0, 90}, []float64{10, 1})
	require.True(t, ok)
	assert.Less(t, math.Min(mean, 360-mean), 45.0)

	// Opposing unit vectors cancel
	_, ok = CircularMean([]float64{0, 180}, nil)
	assert.False(t, ok)

	_, ok = CircularMean(nil, nil)
	assert.False(t, ok)
}

func TestCircularDiff(t *testing.T) {
	assert.InDelta(t, 20, CircularDiff(350, 10), 0.001)
	assert.InDelta(t, 180, CircularDiff(0, 180), 0.001)
	assert.InDelta(t, 0, CircularDiff(90, 450), 0.001)
	assert.InDelta(t, 10, CircularDiff(5, 355), 0.001)
}

func TestPointToSegment(t *testing.T) {
	// Segment running east along 50N; point ~1.113km north of the middle
	a := Point{Lat: 50, Lon: 8}
	b := Point{Lat: 50, Lon: 8.2}
	p := Point{Lat: 50.01, Lon: 8.1}

	d := WGS84.PointToSegmentKM(p, a, b)
	assert.InDelta(t, 0.01*WGS84.KMPerDegreeLat, d, 0.05)

	// Point beyond the end clamps to endpoint distance
	beyond := Point{Lat: 50, Lon: 8.4}
	d = WGS84.PointToSegmentKM(beyond, a, b)
	want, _ := WGS84.Distance(beyond, b)
	assert.InDelta(t, want, d, 0.1)
}

func TestMinPolylineDistanceSymmetric(t *testing.T) {
	a := []Point{{Lat: 50, Lon: 8}, {Lat: 50, Lon: 8.5}}
	b := []Point{{Lat: 50.05, Lon: 8}, {Lat: 50.05, Lon: 8.5}}

	d1 := WGS84.MinPolylineDistanceKM(a, b)
	d2 := WGS84.MinPolylineDistanceKM(b, a)
	assert.InDelta(t, d1, d2, 1e-9)
	assert.InDelta(t, 0.05*WGS84.KMPerDegreeLat, d1, 0.1)
}

func TestMeanPolylineDistanceIdenticalTracks(t *testing.T) {
	track := []Point{{Lat: 50, Lon: 8}, {Lat: 50.1, Lon: 8.1}, {Lat: 50.2, Lon: 8.2}}
	assert.InDelta(t, 0, WGS84.MeanPolylineDistanceKM(track, track), 1e-9)
}
