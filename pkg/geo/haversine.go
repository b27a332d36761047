// Package geo adapts orb's spherical distance functions to the latitude,
// longitude argument order used across the road graph.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Point converts a latitude and longitude to an orb point ([lon, lat]).
func Point(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(Point(lat1, lon1), Point(lat2, lon2))
}

// HaversineKm is Haversine in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return Haversine(lat1, lon1, lat2, lon2) / 1000
}

// LineStringKm sums the great-circle length of consecutive vertices of ls.
func LineStringKm(ls orb.LineString) float64 {
	var m float64
	for i := 1; i < len(ls); i++ {
		m += geo.DistanceHaversine(ls[i-1], ls[i])
	}
	return m / 1000
}
