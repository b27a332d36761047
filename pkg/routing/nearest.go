package routing

import (
	"errors"
	"math"

	"github.com/tidwall/rtree"

	"safepath/pkg/geo"
	"safepath/pkg/graph"
)

var (
	// ErrPointTooFar is returned when the nearest node lies beyond the
	// resolver's maximum distance.
	ErrPointTooFar = errors.New("point too far from road network")
	// ErrEmptyGraph is returned when resolving against a graph with no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")
)

// NearestResolver maps coordinates to the closest graph node using an
// R-tree over node positions.
type NearestResolver struct {
	g       *graph.Graph
	tr      rtree.RTreeG[uint32]
	maxDist float64 // meters; 0 means unlimited
}

// NewNearestResolver indexes every node of g. maxDistMeters bounds how far
// a query may be from its nearest node; 0 disables the bound.
func NewNearestResolver(g *graph.Graph, maxDistMeters float64) *NearestResolver {
	r := &NearestResolver{g: g, maxDist: maxDistMeters}
	for i, n := range g.Nodes {
		p := [2]float64{n.Lon, n.Lat}
		r.tr.Insert(p, p, uint32(i))
	}
	return r
}

// Nearest returns the node closest to (lat, lon) and its great-circle
// distance in meters. Equidistant nodes resolve to the lowest node index.
func (r *NearestResolver) Nearest(lat, lon float64) (graph.NodeID, float64, error) {
	if r.tr.Len() == 0 {
		return 0, 0, ErrEmptyGraph
	}

	cosLat := math.Cos(lat * math.Pi / 180)
	boxDist := func(min, max [2]float64, _ uint32, _ bool) float64 {
		dx := axisDist(lon, min[0], max[0]) * cosLat
		dy := axisDist(lat, min[1], max[1])
		return dx*dx + dy*dy
	}

	best := noNode
	bestDist := math.Inf(1)
	r.tr.Nearby(boxDist, func(_, _ [2]float64, idx uint32, dist float64) bool {
		if dist > bestDist {
			return false
		}
		if dist < bestDist || idx < best {
			best, bestDist = idx, dist
		}
		return true
	})

	n := r.g.Nodes[best]
	meters := geo.Haversine(lat, lon, n.Lat, n.Lon)
	if r.maxDist > 0 && meters > r.maxDist {
		return 0, meters, ErrPointTooFar
	}
	return n.ID, meters, nil
}

// axisDist returns how far v lies outside [lo, hi] along one axis.
func axisDist(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	}
	return 0
}
