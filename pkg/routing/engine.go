package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"safepath/pkg/geocode"
	"safepath/pkg/graph"
	"safepath/pkg/risk"
	"safepath/pkg/traffic"
)

// DefaultK is the number of candidate routes computed per request.
const DefaultK = 3

// ErrLocation is returned when an origin or destination cannot be resolved
// to a graph node. It wraps the underlying geocoder or resolver error.
var ErrLocation = errors.New("location could not be resolved")

var tracer = otel.Tracer("safepath/routing")

// LatLng represents a geographic coordinate.
type LatLng struct {
	Lat float64
	Lng float64
}

// Location is a route endpoint given either as a place name or as a
// coordinate (for instance a live device location). Point takes precedence.
type Location struct {
	Name  string
	Point *LatLng
}

// Request asks for candidate routes between two locations.
type Request struct {
	Origin      Location
	Destination Location
	K           int // 0 means DefaultK

	// TimeOfDay overrides the category derived from DepartAt.
	TimeOfDay *risk.TimeCategory
	DepartAt  time.Time // zero means now
	Incidents int
}

// ResolvedLocation is an endpoint after geocoding and node resolution.
type ResolvedLocation struct {
	Name         string
	Point        LatLng
	Node         graph.NodeID
	SnapDistance float64 // meters from Point to Node
}

// RouteResult describes one candidate route.
type RouteResult struct {
	Path       Path
	DistanceKm float64
	Congestion graph.Congestion
	Features   risk.Features
	Risk       risk.Label
	Geometry   []LatLng
}

// Recommendation is the candidate set for a request and the index of the
// safest route in it.
type Recommendation struct {
	Origin      ResolvedLocation
	Destination ResolvedLocation
	TimeOfDay   risk.TimeCategory
	Routes      []RouteResult
	Safest      int
}

// Recommender is the interface for route recommendation.
type Recommender interface {
	Recommend(ctx context.Context, req Request) (*Recommendation, error)
}

// Engine implements Recommender over a loaded road graph. The graph is
// never mutated; each request simulates traffic on its own copy.
type Engine struct {
	g        *graph.Graph
	resolver *NearestResolver
	geocoder geocode.Geocoder
	sim      *traffic.Simulator
	scorer   *risk.Scorer
	compare  risk.Compare
	now      func() time.Time
}

// EngineConfig holds the collaborators of an Engine.
type EngineConfig struct {
	Geocoder      geocode.Geocoder
	Simulator     *traffic.Simulator
	Classifier    risk.Classifier
	Compare       risk.Compare // nil means risk.DefaultCompare
	MaxSnapMeters float64      // 0 means unlimited
	Now           func() time.Time
}

// NewEngine creates a recommendation engine for g.
func NewEngine(g *graph.Graph, cfg EngineConfig) *Engine {
	e := &Engine{
		g:        g,
		resolver: NewNearestResolver(g, cfg.MaxSnapMeters),
		geocoder: cfg.Geocoder,
		sim:      cfg.Simulator,
		scorer:   risk.NewScorer(cfg.Classifier),
		compare:  cfg.Compare,
		now:      cfg.Now,
	}
	if e.compare == nil {
		e.compare = risk.DefaultCompare
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Graph returns the engine's pristine graph.
func (e *Engine) Graph() *graph.Graph { return e.g }

// Recommend resolves both endpoints, simulates traffic on a private copy of
// the graph, enumerates up to K routes and scores each of them.
func (e *Engine) Recommend(ctx context.Context, req Request) (rec *Recommendation, err error) {
	ctx, span := tracer.Start(ctx, "Engine.Recommend")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	k := req.K
	if k <= 0 {
		k = DefaultK
	}

	origin, err := e.resolve(ctx, req.Origin)
	if err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	dest, err := e.resolve(ctx, req.Destination)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	tc := risk.TimeCategoryAt(e.departure(req))
	if req.TimeOfDay != nil {
		tc = *req.TimeOfDay
	}

	simulated := e.sim.SimulateCopy(e.g)

	paths, err := KShortestPaths(ctx, simulated, origin.Node, dest.Node, k)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("routes.requested", k),
		attribute.Int("routes.found", len(paths)),
	)

	rec = &Recommendation{
		Origin:      origin,
		Destination: dest,
		TimeOfDay:   tc,
		Routes:      make([]RouteResult, 0, len(paths)),
	}
	labels := make([]risk.Label, 0, len(paths))
	for i, p := range paths {
		congestion := risk.DominantCongestion(simulated, p.Nodes)
		label, features, err := e.scorer.Score(ctx, simulated, p.Nodes, tc, congestion, req.Incidents)
		if err != nil {
			return nil, fmt.Errorf("score route %d: %w", i+1, err)
		}
		rec.Routes = append(rec.Routes, RouteResult{
			Path:       p,
			DistanceKm: features.DistanceKm,
			Congestion: congestion,
			Features:   features,
			Risk:       label,
			Geometry:   buildGeometry(simulated, p.Nodes),
		})
		labels = append(labels, label)
	}
	rec.Safest = risk.Safest(labels, e.compare)
	return rec, nil
}

func (e *Engine) departure(req Request) time.Time {
	if req.DepartAt.IsZero() {
		return e.now()
	}
	return req.DepartAt
}

// resolve geocodes a named location if needed and snaps it to a node.
func (e *Engine) resolve(ctx context.Context, loc Location) (ResolvedLocation, error) {
	out := ResolvedLocation{Name: loc.Name}
	switch {
	case loc.Point != nil:
		out.Point = *loc.Point
	case loc.Name != "" && e.geocoder != nil:
		p, err := e.geocoder.Geocode(ctx, loc.Name)
		if err != nil {
			return out, fmt.Errorf("%w: %w", ErrLocation, err)
		}
		out.Point = LatLng{Lat: p.Lat, Lng: p.Lon}
	default:
		return out, fmt.Errorf("%w: no name or coordinate given", ErrLocation)
	}

	id, dist, err := e.resolver.Nearest(out.Point.Lat, out.Point.Lng)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrLocation, err)
	}
	out.Node, out.SnapDistance = id, dist
	return out, nil
}

// buildGeometry converts a node path into coordinates, including
// intermediate shape points from edge geometry.
func buildGeometry(g *graph.Graph, nodes []graph.NodeID) []LatLng {
	if len(nodes) == 0 {
		return nil
	}

	var geom []LatLng
	first, _ := g.Index(nodes[0])
	geom = append(geom, LatLng{Lat: g.Nodes[first].Lat, Lng: g.Nodes[first].Lon})

	for i := 0; i+1 < len(nodes); i++ {
		if e, ok := g.Edge(nodes[i], nodes[i+1]); ok && len(e.Geometry) > 2 {
			// Interior shape points only; endpoints are the nodes themselves.
			for _, p := range e.Geometry[1 : len(e.Geometry)-1] {
				geom = append(geom, LatLng{Lat: p.Lat(), Lng: p.Lon()})
			}
		}
		v, _ := g.Index(nodes[i+1])
		geom = append(geom, LatLng{Lat: g.Nodes[v].Lat, Lng: g.Nodes[v].Lon})
	}
	return geom
}
