package geo

import "math"

const earthRadiusKm = 6371.0

// Haversine computes the great-circle distance in kilometers between two
// WGS84 coordinates. It stands in for the external geocoding collaborator,
// which only ever hands the engine a numeric distance.
type Haversine struct{}

func (Haversine) DistanceKm(aLat, aLon, bLat, bLon float64) float64 {
	latA := aLat * math.Pi / 180
	latB := bLat * math.Pi / 180
	dLat := (bLat - aLat) * math.Pi / 180
	dLon := (bLon - aLon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
