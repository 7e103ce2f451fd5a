// Package geo holds the advisory distance check used at check-in. Precision
// is delegated to the server; this only feeds a warning log.
package geo

import "math"

const earthRadiusM = 6371000.0

// DistanceM returns the haversine great-circle distance in meters.
func DistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
