package domain

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000.0

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate ranges.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return NewValidationError("latitude", fmt.Sprintf("latitude %v out of range", c.Latitude))
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return NewValidationError("longitude", fmt.Sprintf("longitude %v out of range", c.Longitude))
	}
	return nil
}

// ToFields converts the coordinates into document-store fields.
func (c Coordinates) ToFields() map[string]any {
	return map[string]any{"latitude": c.Latitude, "longitude": c.Longitude}
}

// DistanceMeters returns the great-circle distance between a and b (haversine).
func DistanceMeters(a, b Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
