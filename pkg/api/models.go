package api

import (
	"time"

	"safepath/pkg/geocode"
)

// RoutesRequest is the JSON body for POST /api/v1/routes.
type RoutesRequest struct {
	Origin      EndpointJSON `json:"origin"`
	Destination EndpointJSON `json:"destination"`
	K           int          `json:"k,omitempty"`
	TimeOfDay   string       `json:"time_of_day,omitempty"`
	DepartAt    *time.Time   `json:"depart_at,omitempty"`
	Incidents   int          `json:"incidents,omitempty"`
}

// EndpointJSON is a route endpoint: a place name or a lat/lng pair.
type EndpointJSON struct {
	Name string   `json:"name,omitempty"`
	Lat  *float64 `json:"lat,omitempty"`
	Lng  *float64 `json:"lng,omitempty"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationJSON is a resolved endpoint in the response.
type LocationJSON struct {
	Name               string     `json:"name,omitempty"`
	Point              LatLngJSON `json:"point"`
	Node               int64      `json:"node"`
	SnapDistanceMeters float64    `json:"snap_distance_meters"`
}

// RoutesResponse is the JSON response for a successful recommendation.
type RoutesResponse struct {
	Origin      LocationJSON `json:"origin"`
	Destination LocationJSON `json:"destination"`
	TimeOfDay   string       `json:"time_of_day"`
	Routes      []RouteJSON  `json:"routes"`
	Safest      int          `json:"safest"`
}

// RouteJSON represents one candidate route in the response.
type RouteJSON struct {
	Name       string       `json:"name"`
	Nodes      []int64      `json:"nodes"`
	Weight     float64      `json:"weight"`
	DistanceKm float64      `json:"distance_km"`
	Congestion string       `json:"congestion"`
	Risk       string       `json:"risk"`
	Color      string       `json:"color"`
	Safest     bool         `json:"safest"`
	Geometry   []LatLngJSON `json:"geometry"`
}

// PlacesResponse is the JSON response for GET /api/v1/places.
type PlacesResponse struct {
	Places []geocode.Place `json:"places"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes uint32            `json:"num_nodes"`
	NumEdges uint32            `json:"num_edges"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
