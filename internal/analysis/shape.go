package analysis

import (
	"github.com/dan1elw/LARA/internal/geo"
	"github.com/dan1elw/LARA/internal/tracking"
)

// TrackShape is the geometric digest of one session's track used by the
// clustering stages: its valid fixes, dominant heading and linearity.
type TrackShape struct {
	SessionID string
	Fixes     []geo.Point

	// DominantHeading is the distance-weighted circular mean of
	// consecutive-fix bearings. Meaningless when HasHeading is false.
	DominantHeading float64
	HasHeading      bool

	// Linearity is straight-line distance over cumulative path length,
	// in [0,1]. 1.0 means a single straight segment.
	Linearity float64

	// PathLengthKM is the cumulative great-circle length over all fixes.
	PathLengthKM float64
}

// shapeOf digests a sealed session. Sessions with fewer than 2 usable fixes
// carry no shape information: HasHeading stays false and they are excluded
// from clustering.
func shapeOf(s geo.Spheroid, sess *tracking.FlightSession) TrackShape {
	shape := TrackShape{
		SessionID: sess.ID,
		Fixes:     sess.Track(),
	}
	if len(shape.Fixes) < 2 {
		return shape
	}

	bearings := make([]float64, 0, len(shape.Fixes)-1)
	weights := make([]float64, 0, len(shape.Fixes)-1)
	for i := 1; i < len(shape.Fixes); i++ {
		a, b := shape.Fixes[i-1], shape.Fixes[i]
		d := s.DistanceKM(a, b)
		shape.PathLengthKM += d
		if d == 0 {
			// Duplicate fix, bearing undefined
			continue
		}
		bearings = append(bearings, s.BearingDeg(a, b))
		weights = append(weights, d)
	}

	if mean, ok := geo.CircularMean(bearings, weights); ok {
		shape.DominantHeading = mean
		shape.HasHeading = true
	}

	if shape.PathLengthKM > 0 {
		straight := s.DistanceKM(shape.Fixes[0], shape.Fixes[len(shape.Fixes)-1])
		shape.Linearity = straight / shape.PathLengthKM
		if shape.Linearity > 1 {
			// Floating point slack on a perfectly straight track
			shape.Linearity = 1
		}
	}
	return shape
}
