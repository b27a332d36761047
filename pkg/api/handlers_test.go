package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"safepath/pkg/geocode"
	"safepath/pkg/graph"
	"safepath/pkg/risk"
	"safepath/pkg/routing"
	"safepath/pkg/traffic"
)

// mockRecommender implements routing.Recommender for testing.
type mockRecommender struct {
	rec  *routing.Recommendation
	err  error
	last routing.Request
}

func (m *mockRecommender) Recommend(ctx context.Context, req routing.Request) (*routing.Recommendation, error) {
	m.last = req
	return m.rec, m.err
}

func testRecommendation() *routing.Recommendation {
	return &routing.Recommendation{
		Origin:      routing.ResolvedLocation{Name: "T Nagar", Point: routing.LatLng{Lat: 13.04, Lng: 80.23}, Node: 1},
		Destination: routing.ResolvedLocation{Name: "Adyar", Point: routing.LatLng{Lat: 13.0, Lng: 80.26}, Node: 3},
		TimeOfDay:   risk.Evening,
		Routes: []routing.RouteResult{
			{
				Path:       routing.Path{Nodes: []graph.NodeID{1, 2, 3}, Weight: 5100},
				DistanceKm: 5.1,
				Congestion: graph.CongestionHigh,
				Risk:       risk.HighRisk,
				Geometry:   []routing.LatLng{{Lat: 13.04, Lng: 80.23}, {Lat: 13.0, Lng: 80.26}},
			},
			{
				Path:       routing.Path{Nodes: []graph.NodeID{1, 4, 3}, Weight: 5600},
				DistanceKm: 5.6,
				Congestion: graph.CongestionLow,
				Risk:       risk.LowRisk,
				Geometry:   []routing.LatLng{{Lat: 13.04, Lng: 80.23}, {Lat: 13.0, Lng: 80.26}},
			},
		},
		Safest: 1,
	}
}

func postRoutes(h *Handlers, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleRoutes(w, req)
	return w
}

func TestHandleRoutes_Success(t *testing.T) {
	mock := &mockRecommender{rec: testRecommendation()}
	h := NewHandlers(mock, nil, StatsResponse{})

	body := `{"origin":{"name":"T Nagar"},"destination":{"lat":13.0,"lng":80.26},"k":2,"time_of_day":"evening","incidents":1}`
	w := postRoutes(h, "/api/v1/routes", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}

	var resp RoutesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Routes) != 2 {
		t.Fatalf("Routes length = %d, want 2", len(resp.Routes))
	}
	if resp.Safest != 1 || !resp.Routes[1].Safest || resp.Routes[0].Safest {
		t.Errorf("safest = %d (flags %v, %v), want 1", resp.Safest, resp.Routes[0].Safest, resp.Routes[1].Safest)
	}
	if resp.Routes[0].Name != "R1" || resp.Routes[0].Color != "#ef4444" {
		t.Errorf("route 0 = %s %s, want R1 #ef4444", resp.Routes[0].Name, resp.Routes[0].Color)
	}
	if resp.Routes[0].Risk != "High Risk" || resp.Routes[0].Congestion != "High" {
		t.Errorf("route 0 risk/congestion = %q/%q", resp.Routes[0].Risk, resp.Routes[0].Congestion)
	}
	if resp.TimeOfDay != "Evening" {
		t.Errorf("TimeOfDay = %q, want Evening", resp.TimeOfDay)
	}

	// Request was translated faithfully.
	if mock.last.Origin.Name != "T Nagar" || mock.last.Origin.Point != nil {
		t.Errorf("origin = %+v, want name only", mock.last.Origin)
	}
	if p := mock.last.Destination.Point; p == nil || p.Lat != 13.0 || p.Lng != 80.26 {
		t.Errorf("destination point = %v, want (13.0, 80.26)", p)
	}
	if mock.last.K != 2 || mock.last.Incidents != 1 {
		t.Errorf("K, Incidents = %d, %d, want 2, 1", mock.last.K, mock.last.Incidents)
	}
	if mock.last.TimeOfDay == nil || *mock.last.TimeOfDay != risk.Evening {
		t.Errorf("TimeOfDay = %v, want Evening", mock.last.TimeOfDay)
	}
}

func TestHandleRoutes_GeoJSON(t *testing.T) {
	h := NewHandlers(&mockRecommender{rec: testRecommendation()}, nil, StatsResponse{})

	w := postRoutes(h, "/api/v1/routes?format=geojson", `{"origin":{"name":"a"},"destination":{"name":"b"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q, want application/geo+json", ct)
	}
	var doc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Type != "FeatureCollection" || len(doc.Features) != 4 {
		t.Errorf("got %s with %d features, want FeatureCollection with 4", doc.Type, len(doc.Features))
	}
}

func TestHandleRoutes_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"not json", "not json", ""},
		{"missing origin", `{"destination":{"name":"b"}}`, "origin"},
		{"lat without lng", `{"origin":{"lat":13.0},"destination":{"name":"b"}}`, "origin"},
		{"lat out of range", `{"origin":{"name":"a"},"destination":{"lat":91,"lng":80}}`, "destination"},
		{"k too large", `{"origin":{"name":"a"},"destination":{"name":"b"},"k":50}`, "k"},
		{"negative incidents", `{"origin":{"name":"a"},"destination":{"name":"b"},"incidents":-1}`, "incidents"},
		{"bad time of day", `{"origin":{"name":"a"},"destination":{"name":"b"},"time_of_day":"dusk"}`, "time_of_day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&mockRecommender{rec: testRecommendation()}, nil, StatsResponse{})
			w := postRoutes(h, "/api/v1/routes", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Field != tt.field {
				t.Errorf("field = %q, want %q", resp.Field, tt.field)
			}
		})
	}
}

func TestHandleRoutes_MissingContentType(t *testing.T) {
	h := NewHandlers(&mockRecommender{}, nil, StatsResponse{})

	body := `{"origin":{"name":"a"},"destination":{"name":"b"}}`
	req := httptest.NewRequest("POST", "/api/v1/routes", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleRoutes(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRoutes_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		want string
	}{
		{"no route", routing.ErrNoPath, http.StatusNotFound, "no_route_found"},
		{"unknown place", fmt.Errorf("origin: %w: %w", routing.ErrLocation, geocode.ErrNotFound), http.StatusUnprocessableEntity, "location_not_found"},
		{"too far", fmt.Errorf("origin: %w: %w", routing.ErrLocation, routing.ErrPointTooFar), http.StatusUnprocessableEntity, "point_too_far_from_road"},
		{"geocoder down", fmt.Errorf("origin: %w: %w", routing.ErrLocation, geocode.ErrUpstream), http.StatusBadGateway, "geocoder_unavailable"},
		{"classifier down", fmt.Errorf("score route 1: %w", risk.ErrClassifier), http.StatusBadGateway, "classifier_unavailable"},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, "request_timeout"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandlers(&mockRecommender{err: tt.err}, nil, StatsResponse{})
			w := postRoutes(h, "/api/v1/routes", `{"origin":{"name":"a"},"destination":{"name":"b"}}`)

			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
			var resp ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Error != tt.want {
				t.Errorf("error = %q, want %q", resp.Error, tt.want)
			}
		})
	}
}

func TestHandlePlaces(t *testing.T) {
	h := NewHandlers(&mockRecommender{}, geocode.DefaultPlaces, StatsResponse{})

	req := httptest.NewRequest("GET", "/api/v1/places", nil)
	w := httptest.NewRecorder()

	h.HandlePlaces(w, req)

	var resp PlacesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Places) != len(geocode.DefaultPlaces) {
		t.Fatalf("Places length = %d, want %d", len(resp.Places), len(geocode.DefaultPlaces))
	}
	if resp.Places[0].Name != "T Nagar, Chennai, India" || resp.Places[0].Lat != 13.0418 {
		t.Errorf("Places[0] = %+v", resp.Places[0])
	}
}

func TestHandleHealth(t *testing.T) {
	h := NewHandlers(&mockRecommender{}, nil, StatsResponse{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
}

func TestHandleStats(t *testing.T) {
	stats := StatsResponse{NumNodes: 500000, NumEdges: 1200000, Meta: map[string]string{"crs": "epsg:4326"}}
	h := NewHandlers(&mockRecommender{}, nil, stats)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()

	h.HandleStats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp StatsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.NumNodes != 500000 || resp.NumEdges != 1200000 {
		t.Errorf("NumNodes, NumEdges = %d, %d, want 500000, 1200000", resp.NumNodes, resp.NumEdges)
	}
	if resp.Meta["crs"] != "epsg:4326" {
		t.Errorf("Meta[crs] = %q, want epsg:4326", resp.Meta["crs"])
	}
}

func TestServerRouting(t *testing.T) {
	h := NewHandlers(&mockRecommender{rec: testRecommendation()}, geocode.DefaultPlaces, StatsResponse{})
	srv := httptest.NewServer(NewHandler(DefaultConfig(":0"), h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET health = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}

	resp, err = http.Post(srv.URL+"/api/v1/routes", "application/json",
		strings.NewReader(`{"origin":{"name":"a"},"destination":{"name":"b"}}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("POST routes = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/routes")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET routes = %d, want 405", resp.StatusCode)
	}
}

func TestLimitRejectsWhenFull(t *testing.T) {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	h := limit(sem)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler called while limiter is full")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/routes", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Error("Retry-After header missing")
	}

	<-sem
	called := false
	h = limit(sem)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/routes", nil))
	if !called || len(sem) != 0 {
		t.Errorf("called = %v, slots held = %d; want true, 0", called, len(sem))
	}
}

func TestRecoveryAndStatusRecorder(t *testing.T) {
	var rec *statusRecorder
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec = w.(*statusRecorder)
		panic("boom")
	}), accessLog, recovery)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if rec == nil || rec.status != http.StatusInternalServerError {
		t.Errorf("recorded status = %v, want 500", rec)
	}
}

func TestDeadlineSetsContext(t *testing.T) {
	h := deadline(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); !ok {
			t.Error("request context has no deadline")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/routes", nil))
}

func TestCORSPreflight(t *testing.T) {
	cfg := DefaultConfig(":0")
	cfg.CORSOrigin = "https://example.org"
	h := NewHandler(cfg, NewHandlers(&mockRecommender{}, nil, StatsResponse{}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/v1/routes", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != cfg.CORSOrigin {
		t.Errorf("Allow-Origin = %q, want %q", got, cfg.CORSOrigin)
	}
}

func TestRequestID(t *testing.T) {
	h := NewHandler(DefaultConfig(":0"), NewHandlers(&mockRecommender{}, nil, StatsResponse{}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("X-Request-ID = %q, want a fresh UUID", w.Header().Get("X-Request-ID"))
	}

	const id = "0b6f4f3e-8a8e-4c59-9d1e-3f1a2b3c4d5e"
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", id)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != id {
		t.Errorf("X-Request-ID = %q, want echoed %q", got, id)
	}

	req = httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "not a uuid")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got == "not a uuid" {
		t.Error("malformed request ID was echoed")
	}
}

func TestRoutesGeocoderRateLimitIsTimeout(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat":"13.0400","lon":"80.2300","display_name":"T Nagar"}]`))
	}))
	defer backend.Close()

	g := graph.Collapse(&graph.Multigraph{
		Nodes: []graph.Node{{ID: 1, Lat: 13.04, Lon: 80.23}, {ID: 2, Lat: 13.05, Lon: 80.24}},
		Edges: []graph.Edge{
			{From: 1, To: 2, EdgeData: graph.EdgeData{Length: 100}},
			{From: 2, To: 1, EdgeData: graph.EdgeData{Length: 100}},
		},
	})
	sim, err := traffic.NewSimulator(1)
	if err != nil {
		t.Fatal(err)
	}
	engine := routing.NewEngine(g, routing.EngineConfig{
		Geocoder:   geocode.NewNominatim(backend.URL, "safepath-test/1.0", time.Second),
		Simulator:  sim,
		Classifier: risk.RuleClassifier{},
	})

	cfg := DefaultConfig(":0")
	cfg.RequestTimeout = 200 * time.Millisecond
	h := NewHandler(cfg, NewHandlers(engine, nil, StatsResponse{}))

	// The destination lookup cannot get a geocoder slot before the deadline.
	req := httptest.NewRequest("POST", "/api/v1/routes", strings.NewReader(`{"origin":{"name":"T Nagar"},"destination":{"name":"Adyar"}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 (body %s)", w.Code, w.Body.String())
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "request_timeout" {
		t.Errorf("error = %q, want request_timeout", resp.Error)
	}
}
