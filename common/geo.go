package common

import (
	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the mean earth radius used for all great-circle distances.
// Note that this differs from orb.EarthRadius (equatorial).
const EarthRadiusMeters = 6_371_000.0

// DistanceMeters returns the great-circle distance between two points using the haversine formula.
// s2.LatLng.Distance is implemented as the haversine of the central angle,
// so we only scale the angle by the earth radius.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	d := p1.Distance(p2).Radians() * EarthRadiusMeters
	if d < 0 {
		return 0
	}
	return d
}
