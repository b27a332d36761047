package graph

import (
	"maps"

	"github.com/paulmach/orb"
)

// NodeID is the opaque identifier of a road-network node (an OSM node ID
// for graphs built from OSM data).
type NodeID int64

// NoEdge is the sentinel returned by FindEdge when no edge exists.
const NoEdge = ^uint32(0)

// Node is an intersection or shape point with its coordinates.
type Node struct {
	ID    NodeID
	Lat   float64 // "y"
	Lon   float64 // "x"
	Attrs map[string]string
}

// Congestion is the traffic level assigned to an edge by simulation.
// The zero value means the edge has not been simulated.
type Congestion uint8

const (
	CongestionUnset Congestion = iota
	CongestionLow
	CongestionMedium
	CongestionHigh
)

func (c Congestion) String() string {
	switch c {
	case CongestionLow:
		return "Low"
	case CongestionMedium:
		return "Medium"
	case CongestionHigh:
		return "High"
	}
	return ""
}

// ParseCongestion maps a label to its Congestion value.
func ParseCongestion(s string) (Congestion, bool) {
	switch s {
	case "Low":
		return CongestionLow, true
	case "Medium":
		return CongestionMedium, true
	case "High":
		return CongestionHigh, true
	}
	return CongestionUnset, false
}

// EdgeData is the attribute set of one directed edge.
type EdgeData struct {
	// Length is the physical length in meters as loaded. Once traffic has
	// been simulated on a graph it holds the current traversal weight.
	Length     float64
	Congestion Congestion
	Geometry   orb.LineString // optional, not used for routing
	Attrs      map[string]string
}

// Clone returns a deep copy of d.
func (d EdgeData) Clone() EdgeData {
	out := d
	out.Attrs = maps.Clone(d.Attrs)
	if d.Geometry != nil {
		out.Geometry = d.Geometry.Clone()
	}
	return out
}

// Edge is a directed edge of a Multigraph.
type Edge struct {
	From NodeID
	To   NodeID
	EdgeData
}

// Multigraph is a directed road network as produced by the loader.
// Several edges may share the same ordered node pair.
type Multigraph struct {
	Meta  map[string]string
	Nodes []Node
	Edges []Edge
}

// Graph is a simple directed graph in CSR (Compressed Sparse Row) format:
// at most one edge per ordered node pair.
type Graph struct {
	Meta     map[string]string
	Nodes    []Node     // dense index -> node
	FirstOut []uint32   // len: NumNodes + 1; FirstOut[i]..FirstOut[i+1] are edges from node i
	Head     []uint32   // len: NumEdges; target node index for each edge
	Edges    []EdgeData // len: NumEdges; attributes for each edge

	index map[NodeID]uint32
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() uint32 { return uint32(len(g.Nodes)) }

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() uint32 { return uint32(len(g.Head)) }

// EdgesFrom returns the range of edge indices for edges originating from node u.
func (g *Graph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// Index returns the dense index of the node with the given ID.
func (g *Graph) Index(id NodeID) (uint32, bool) {
	idx, ok := g.index[id]
	return idx, ok
}

// HasNode reports whether id is a node of g.
func (g *Graph) HasNode(id NodeID) bool {
	_, ok := g.index[id]
	return ok
}

// FindEdge returns the index of edge u→v, or NoEdge.
func (g *Graph) FindEdge(u, v uint32) uint32 {
	start, end := g.EdgesFrom(u)
	for e := start; e < end; e++ {
		if g.Head[e] == v {
			return e
		}
	}
	return NoEdge
}

// Edge returns the attributes of edge from→to.
func (g *Graph) Edge(from, to NodeID) (EdgeData, bool) {
	u, ok := g.index[from]
	if !ok {
		return EdgeData{}, false
	}
	v, ok := g.index[to]
	if !ok {
		return EdgeData{}, false
	}
	e := g.FindEdge(u, v)
	if e == NoEdge {
		return EdgeData{}, false
	}
	return g.Edges[e], true
}

// Clone returns a deep copy of g. The copy shares nothing mutable with g,
// so traffic can be simulated on it without affecting g.
func (g *Graph) Clone() *Graph {
	edges := make([]EdgeData, len(g.Edges))
	for i, e := range g.Edges {
		edges[i] = e.Clone()
	}
	nodes := make([]Node, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = n
		nodes[i].Attrs = maps.Clone(n.Attrs)
	}
	return &Graph{
		Meta:     maps.Clone(g.Meta),
		Nodes:    nodes,
		FirstOut: append([]uint32(nil), g.FirstOut...),
		Head:     append([]uint32(nil), g.Head...),
		Edges:    edges,
		index:    g.index, // read-only after construction
	}
}

// buildIndex populates the NodeID -> index map from g.Nodes.
func (g *Graph) buildIndex() {
	g.index = make(map[NodeID]uint32, len(g.Nodes))
	for i, n := range g.Nodes {
		g.index[n.ID] = uint32(i)
	}
}
