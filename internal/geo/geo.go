package geo

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for coordinate and configuration validation. Callers match
// with errors.Is after unwrapping.
var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Point is a geographic position in decimal degrees
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is an axis-aligned lat/lon box
type BoundingBox struct {
	LatMin float64 `json:"lat_min"`
	LonMin float64 `json:"lon_min"`
	LatMax float64 `json:"lat_max"`
	LonMax float64 `json:"lon_max"`
}

// Contains reports whether p lies inside the box (inclusive)
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.LatMin && p.Lat <= b.LatMax &&
		p.Lon >= b.LonMin && p.Lon <= b.LonMax
}

// Spheroid holds the geometric constants used by distance and bounding box
// math. It is an immutable value injected into every caller so tests can
// substitute alternate geometries without touching shared state.
type Spheroid struct {
	RadiusKM       float64 // mean Earth radius
	KMPerDegreeLat float64 // meridional km per degree of latitude
}

// WGS84 is the standard spherical approximation used in production
var WGS84 = Spheroid{
	RadiusKM:       6371.0,
	KMPerDegreeLat: 111.32,
}

// ValidatePoint checks that p holds finite coordinates within valid ranges
func ValidatePoint(p Point) error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range: %w", p.Lat, ErrInvalidCoordinate)
	}
	if math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("longitude %v out of range: %w", p.Lon, ErrInvalidCoordinate)
	}
	return nil
}

// Distance returns the great-circle distance between a and b in kilometers
// using the Haversine formula.
func (s Spheroid) Distance(a, b Point) (float64, error) {
	if err := ValidatePoint(a); err != nil {
		return 0, err
	}
	if err := ValidatePoint(b); err != nil {
		return 0, err
	}
	return s.distance(a, b), nil
}

// DistanceKM is the unchecked fast path for callers holding already
// validated points, such as sealed session tracks.
func (s Spheroid) DistanceKM(a, b Point) float64 {
	return s.distance(a, b)
}

// distance is the unchecked fast path for callers holding validated points
func (s Spheroid) distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return s.RadiusKM * c
}

// InitialBearing returns the forward azimuth from a to b in degrees [0,360)
func (s Spheroid) InitialBearing(a, b Point) (float64, error) {
	if err := ValidatePoint(a); err != nil {
		return 0, err
	}
	if err := ValidatePoint(b); err != nil {
		return 0, err
	}
	return s.initialBearing(a, b), nil
}

// BearingDeg is the unchecked counterpart of InitialBearing for validated
// points.
func (s Spheroid) BearingDeg(a, b Point) float64 {
	return s.initialBearing(a, b)
}

func (s Spheroid) initialBearing(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	return NormalizeHeading(deg)
}

// BoundingBox returns a box guaranteed to contain every point within radiusKM
// of center. The flat-Earth approximation is slightly conservative, so the
// box may include points marginally outside the radius; callers still apply
// an exact distance filter afterwards.
func (s Spheroid) BoundingBox(center Point, radiusKM float64) (BoundingBox, error) {
	if err := ValidatePoint(center); err != nil {
		return BoundingBox{}, err
	}
	if radiusKM <= 0 || math.IsNaN(radiusKM) || math.IsInf(radiusKM, 0) {
		return BoundingBox{}, fmt.Errorf("radius %v must be positive: %w", radiusKM, ErrInvalidConfig)
	}

	// The flat approximation with KMPerDegreeLat=111.32 is a hair tighter
	// than the Haversine sphere (111.19 km/deg); a 2% pad keeps the box
	// strictly conservative. Callers filter by exact distance afterwards.
	latDelta := radiusKM / s.KMPerDegreeLat * 1.02

	// Longitude degrees shrink with latitude; use the latitude of the box
	// edge closest to the pole so the box stays conservative.
	edgeLat := math.Max(math.Abs(center.Lat-latDelta), math.Abs(center.Lat+latDelta))
	if edgeLat >= 89.9 {
		edgeLat = 89.9
	}
	lonDelta := radiusKM / (s.KMPerDegreeLat * math.Cos(edgeLat*math.Pi/180)) * 1.02

	return BoundingBox{
		LatMin: center.Lat - latDelta,
		LonMin: center.Lon - lonDelta,
		LatMax: center.Lat + latDelta,
		LonMax: center.Lon + lonDelta,
	}, nil
}

// NormalizeHeading wraps a heading in degrees into [0,360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}
