package tracking

import (
	"fmt"
	"math"
	"strings"
)

// Method names reported with every distance result.
const (
	MethodDistanceMatrix = "Google Maps Distance Matrix API"
	MethodOSRM           = "OSRM API"
	MethodStraightLine   = "Haversine (straight-line)"
)

// MilesPerMeter converts provider distances, which arrive in meters.
const MilesPerMeter = 0.000621371

const estimateSpeedMPH = 60.0

// Distance is a computed distance and travel time between a driver and
// a destination.
type Distance struct {
	Miles           float64 `json:"distance_miles"`
	DistanceText    string  `json:"distance_text"`
	DurationText    string  `json:"duration_text"`
	DurationMinutes float64 `json:"duration_minutes"`
	Method          string  `json:"method"`
}

// Estimated reports whether the result came from the straight-line
// fallback rather than road routing.
func (d Distance) Estimated() bool {
	return strings.Contains(d.Method, "straight-line")
}

// FormatDuration renders a travel time the way dispatchers read it:
// tenths of an hour once the trip crosses the hour mark, whole minutes
// below it.
func FormatDuration(minutes float64) string {
	if hours := minutes / 60; hours >= 1 {
		return fmt.Sprintf("%.1f hr", hours)
	}
	return fmt.Sprintf("%.0f min", minutes)
}

// HaversineMiles computes the great-circle distance between two points
// in miles.
func HaversineMiles(from, to Coordinates) float64 {
	const earthRadiusMiles = 3959.0

	dLat := (to.Lat - from.Lat) * math.Pi / 180.0
	dLon := (to.Lon - from.Lon) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(from.Lat*math.Pi/180.0)*math.Cos(to.Lat*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return earthRadiusMiles * c
}

// EstimateDistance builds a straight-line result assuming a 60 mph
// average road speed. Texts are marked so readers know the figure is an
// estimate, not a routed distance.
func EstimateDistance(from, to Coordinates) Distance {
	miles := HaversineMiles(from, to)
	minutes := miles / estimateSpeedMPH * 60
	return Distance{
		Miles:           miles,
		DistanceText:    fmt.Sprintf("%.1f mi (straight-line)", miles),
		DurationText:    FormatDuration(minutes) + " (estimated)",
		DurationMinutes: minutes,
		Method:          MethodStraightLine,
	}
}
