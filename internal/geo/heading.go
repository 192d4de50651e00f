package geo

import "math"

// CircularMean returns the weighted circular mean of headings in degrees.
// The boolean is false when the weights sum to zero (no usable heading) or
// when the vector sum cancels out completely.
func CircularMean(headings, weights []float64) (float64, bool) {
	var sinSum, cosSum float64
	for i, h := range headings {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if w <= 0 {
			continue
		}
		rad := h * math.Pi / 180
		sinSum += w * math.Sin(rad)
		cosSum += w * math.Cos(rad)
	}
	if sinSum == 0 && cosSum == 0 {
		return 0, false
	}
	mean := math.Atan2(sinSum, cosSum) * 180 / math.Pi
	return NormalizeHeading(mean), true
}

// CircularDiff returns the smallest angular difference between two headings,
// in degrees [0,180].
func CircularDiff(a, b float64) float64 {
	d := math.Abs(NormalizeHeading(a) - NormalizeHeading(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// CircularStdDev returns the circular standard deviation of headings in
// degrees. Returns 0 for fewer than two headings.
func CircularStdDev(headings []float64) float64 {
	if len(headings) < 2 {
		return 0
	}
	var sinSum, cosSum float64
	for _, h := range headings {
		rad := h * math.Pi / 180
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}
	n := float64(len(headings))
	r := math.Sqrt(sinSum*sinSum+cosSum*cosSum) / n
	if r >= 1 {
		return 0
	}
	if r <= 0 {
		// Headings uniformly spread; the dispersion is unbounded, cap at a
		// half turn which is the largest meaningful spread for our use.
		return 180
	}
	return math.Sqrt(-2*math.Log(r)) * 180 / math.Pi
}
