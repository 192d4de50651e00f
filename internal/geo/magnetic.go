package geo

import (
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Declination returns the magnetic declination in degrees (+East, -West) at
// the given position, altitude (meters) and date.
func Declination(p Point, altM float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(p.Lat, p.Lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Return 0 for safety if calculation fails
		return 0.0
	}

	return mag.D()
}

// MagneticHeading converts a true heading to magnetic at the given position
func MagneticHeading(trueHeading float64, p Point, altM float64, date time.Time) float64 {
	return NormalizeHeading(trueHeading - Declination(p, altM, date))
}
