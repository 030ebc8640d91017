// Package geo holds great-circle helpers.
package geo

import (
	"math"

	"social-app/internal/models"
)

// EarthRadiusKm is the mean earth radius used by every distance computation.
const EarthRadiusKm = 6371.0

// Distance returns the haversine distance between a and b in kilometres,
// rounded to two decimals.
func Distance(a, b models.Location) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(EarthRadiusKm*c*100) / 100
}

// Between returns the distance when both locations are known, nil otherwise.
func Between(a, b *models.Location) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := Distance(*a, *b)
	return &d
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
