package validate

import "math"

const (
	earthRadiusMeters = 6371000.0
	metersPerDegree   = 111320.0
)

// haversineMeters returns the great-circle distance between two coordinate
// pairs in meters.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

// gpsEqual reports whether two coordinate pairs agree within the angular
// tolerance. Each axis must be inside the tolerance, and the great-circle
// distance must corroborate the per-axis check so that small per-axis drifts
// do not compound into a real displacement.
func gpsEqual(lat1, lon1, lat2, lon2, toleranceDegrees float64) bool {
	if math.Abs(lat2-lat1) > toleranceDegrees || math.Abs(lon2-lon1) > toleranceDegrees {
		return false
	}
	maxMeters := toleranceDegrees * metersPerDegree * math.Sqrt2
	return haversineMeters(lat1, lon1, lat2, lon2) <= maxMeters
}
