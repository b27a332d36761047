package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"mime"
	"net/http"

	"safepath/pkg/geocode"
	"safepath/pkg/render"
	"safepath/pkg/risk"
	"safepath/pkg/routing"
)

// maxK bounds the number of candidate routes per request.
const maxK = 10

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	recommender routing.Recommender
	places      []geocode.Place
	stats       StatsResponse
}

// NewHandlers creates handlers with the given recommender.
func NewHandlers(recommender routing.Recommender, places []geocode.Place, stats StatsResponse) *Handlers {
	return &Handlers{
		recommender: recommender,
		places:      places,
		stats:       stats,
	}
}

// HandleRoutes handles POST /api/v1/routes. With ?format=geojson the
// candidates are returned as a GeoJSON FeatureCollection.
func (h *Handlers) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	// Enforce Content-Type.
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	// Parse request.
	var req RoutesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	// Validate.
	origin, err := toLocation(req.Origin)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_location", "origin")
		return
	}
	dest, err := toLocation(req.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_location", "destination")
		return
	}
	if req.K < 0 || req.K > maxK {
		writeError(w, http.StatusBadRequest, "invalid_k", "k")
		return
	}
	if req.Incidents < 0 {
		writeError(w, http.StatusBadRequest, "invalid_incidents", "incidents")
		return
	}
	rreq := routing.Request{Origin: origin, Destination: dest, K: req.K, Incidents: req.Incidents}
	if req.TimeOfDay != "" {
		tc, err := risk.ParseTimeCategory(req.TimeOfDay)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time_of_day", "time_of_day")
			return
		}
		rreq.TimeOfDay = &tc
	}
	if req.DepartAt != nil {
		rreq.DepartAt = *req.DepartAt
	}

	// Recommend.
	rec, err := h.recommender.Recommend(r.Context(), rreq)
	if err != nil {
		writeRecommendError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "geojson" {
		data, err := render.GeoJSON(rec)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(data)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toResponse(rec))
}

// HandlePlaces handles GET /api/v1/places.
func (h *Handlers) HandlePlaces(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PlacesResponse{Places: h.places})
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats)
}

// writeRecommendError maps engine errors to status codes. Unresolvable
// input and missing routes are distinct failures.
func writeRecommendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	case errors.Is(err, geocode.ErrUpstream):
		writeError(w, http.StatusBadGateway, "geocoder_unavailable", "")
	case errors.Is(err, risk.ErrClassifier):
		writeError(w, http.StatusBadGateway, "classifier_unavailable", "")
	case errors.Is(err, routing.ErrPointTooFar):
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "")
	case errors.Is(err, routing.ErrLocation), errors.Is(err, routing.ErrNodeNotFound):
		writeError(w, http.StatusUnprocessableEntity, "location_not_found", "")
	case errors.Is(err, routing.ErrNoPath):
		writeError(w, http.StatusNotFound, "no_route_found", "")
	default:
		log.Printf("recommend: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func toLocation(ep EndpointJSON) (routing.Location, error) {
	loc := routing.Location{Name: ep.Name}
	switch {
	case ep.Lat != nil && ep.Lng != nil:
		ll := LatLngJSON{Lat: *ep.Lat, Lng: *ep.Lng}
		if err := validateCoord(ll); err != nil {
			return loc, err
		}
		loc.Point = &routing.LatLng{Lat: ll.Lat, Lng: ll.Lng}
	case ep.Lat != nil || ep.Lng != nil:
		return loc, errors.New("lat and lng must be given together")
	case ep.Name == "":
		return loc, errors.New("name or coordinates required")
	}
	return loc, nil
}

func toResponse(rec *routing.Recommendation) RoutesResponse {
	resp := RoutesResponse{
		Origin:      toLocationJSON(rec.Origin),
		Destination: toLocationJSON(rec.Destination),
		TimeOfDay:   rec.TimeOfDay.String(),
		Routes:      make([]RouteJSON, len(rec.Routes)),
		Safest:      rec.Safest,
	}
	for i, r := range rec.Routes {
		nodes := make([]int64, len(r.Path.Nodes))
		for j, id := range r.Path.Nodes {
			nodes[j] = int64(id)
		}
		geom := make([]LatLngJSON, len(r.Geometry))
		for j, ll := range r.Geometry {
			geom[j] = LatLngJSON{Lat: ll.Lat, Lng: ll.Lng}
		}
		resp.Routes[i] = RouteJSON{
			Name:       render.RouteName(i),
			Nodes:      nodes,
			Weight:     r.Path.Weight,
			DistanceKm: r.DistanceKm,
			Congestion: r.Congestion.String(),
			Risk:       string(r.Risk),
			Color:      render.Color(i),
			Safest:     i == rec.Safest,
			Geometry:   geom,
		}
	}
	return resp
}

func toLocationJSON(l routing.ResolvedLocation) LocationJSON {
	return LocationJSON{
		Name:               l.Name,
		Point:              LatLngJSON{Lat: l.Point.Lat, Lng: l.Point.Lng},
		Node:               int64(l.Node),
		SnapDistanceMeters: l.SnapDistance,
	}
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
