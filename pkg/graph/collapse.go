package graph

import (
	"maps"
	"sort"
)

// defaultLength is used for edges that carry no positive length.
const defaultLength = 1.0

// Collapse converts a multigraph into a simple digraph. For every ordered
// node pair it keeps the edge with the smallest length; on equal lengths the
// first edge seen wins. The winning edge's attributes are copied whole, never
// merged with its parallel edges. Every node of mg is kept, including
// isolated ones, and graph metadata is copied verbatim.
//
// An edge whose endpoint is not listed in mg.Nodes gets a coordinate-less
// node appended after the listed ones.
func Collapse(mg *Multigraph) *Graph {
	g := &Graph{
		Meta:  maps.Clone(mg.Meta),
		Nodes: make([]Node, 0, len(mg.Nodes)),
	}
	if g.Meta == nil {
		g.Meta = map[string]string{}
	}
	for _, n := range mg.Nodes {
		n.Attrs = maps.Clone(n.Attrs)
		g.Nodes = append(g.Nodes, n)
	}
	g.buildIndex()

	nodeIdx := func(id NodeID) uint32 {
		if idx, ok := g.index[id]; ok {
			return idx
		}
		idx := uint32(len(g.Nodes))
		g.Nodes = append(g.Nodes, Node{ID: id})
		g.index[id] = idx
		return idx
	}

	// Step 1: keep the minimum-length edge per ordered pair.
	type kept struct {
		from, to uint32
		data     EdgeData
	}
	var winners []kept
	byPair := make(map[uint64]int, len(mg.Edges))

	for _, e := range mg.Edges {
		u, v := nodeIdx(e.From), nodeIdx(e.To)
		length := e.Length
		if length <= 0 {
			length = defaultLength
		}
		key := uint64(u)<<32 | uint64(v)

		if i, ok := byPair[key]; ok {
			if winners[i].data.Length > length {
				winners[i].data = e.EdgeData.Clone()
				winners[i].data.Length = length
			}
			continue
		}

		data := e.EdgeData.Clone()
		data.Length = length
		byPair[key] = len(winners)
		winners = append(winners, kept{from: u, to: v, data: data})
	}

	// Step 2: sort by source then target for a deterministic CSR layout.
	sort.Slice(winners, func(i, j int) bool {
		if winners[i].from != winners[j].from {
			return winners[i].from < winners[j].from
		}
		return winners[i].to < winners[j].to
	})

	// Step 3: CSR arrays.
	numNodes := uint32(len(g.Nodes))
	g.FirstOut = make([]uint32, numNodes+1)
	g.Head = make([]uint32, len(winners))
	g.Edges = make([]EdgeData, len(winners))

	for i, w := range winners {
		g.Head[i] = w.to
		g.Edges[i] = w.data
		g.FirstOut[w.from+1]++
	}
	for i := uint32(1); i <= numNodes; i++ {
		g.FirstOut[i] += g.FirstOut[i-1]
	}

	return g
}

// ToMultigraph returns g as a Multigraph with one edge per ordered pair,
// in CSR order. Collapse(g.ToMultigraph()) reproduces g.
func (g *Graph) ToMultigraph() *Multigraph {
	mg := &Multigraph{
		Meta:  maps.Clone(g.Meta),
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, 0, len(g.Head)),
	}
	for i, n := range g.Nodes {
		mg.Nodes[i] = n
		mg.Nodes[i].Attrs = maps.Clone(n.Attrs)
	}
	for u := uint32(0); u < g.NumNodes(); u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			mg.Edges = append(mg.Edges, Edge{
				From:     g.Nodes[u].ID,
				To:       g.Nodes[g.Head[e]].ID,
				EdgeData: g.Edges[e].Clone(),
			})
		}
	}
	return mg
}
