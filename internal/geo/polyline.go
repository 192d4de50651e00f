package geo

import "math"

// LocalKM projects p into a flat east/north frame centered on origin, in
// kilometers. The equirectangular approximation is accurate well below 1%
// at the tens-of-kilometers scale this package works at.
func (s Spheroid) LocalKM(origin, p Point) (x, y float64) {
	x = (p.Lon - origin.Lon) * s.KMPerDegreeLat * math.Cos(origin.Lat*math.Pi/180)
	y = (p.Lat - origin.Lat) * s.KMPerDegreeLat
	return x, y
}

// PointToSegmentKM returns the distance in km from p to the segment a-b
func (s Spheroid) PointToSegmentKM(p, a, b Point) float64 {
	ax, ay := s.LocalKM(p, a)
	bx, by := s.LocalKM(p, b)

	dx, dy := bx-ax, by-ay
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return math.Hypot(ax, ay)
	}

	// Projection of the origin (p) onto the segment, clamped to [0,1]
	t := -(ax*dx + ay*dy) / segLenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	cx := ax + t*dx
	cy := ay + t*dy
	return math.Hypot(cx, cy)
}

// PointToPolylineKM returns the minimum distance in km from p to any segment
// of line. A single-point line degenerates to point distance; an empty line
// returns +Inf.
func (s Spheroid) PointToPolylineKM(p Point, line []Point) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return s.distance(p, line[0])
	}

	min := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		if d := s.PointToSegmentKM(p, line[i], line[i+1]); d < min {
			min = d
		}
	}
	return min
}

// MinPolylineDistanceKM returns the minimum point-to-polyline distance
// between two tracks, evaluated symmetrically.
func (s Spheroid) MinPolylineDistanceKM(a, b []Point) float64 {
	min := math.Inf(1)
	for _, p := range a {
		if d := s.PointToPolylineKM(p, b); d < min {
			min = d
		}
	}
	for _, p := range b {
		if d := s.PointToPolylineKM(p, a); d < min {
			min = d
		}
	}
	return min
}

// MeanPolylineDistanceKM returns the symmetric mean of the directed mean
// point-to-polyline distances between two tracks. Unlike the minimum it
// penalizes tracks that only touch at one spot.
func (s Spheroid) MeanPolylineDistanceKM(a, b []Point) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	var sumA float64
	for _, p := range a {
		sumA += s.PointToPolylineKM(p, b)
	}
	var sumB float64
	for _, p := range b {
		sumB += s.PointToPolylineKM(p, a)
	}
	return (sumA/float64(len(a)) + sumB/float64(len(b))) / 2
}
