package graph

import "maps"

// UnionFind is a disjoint-set forest over node positions. Roots store the
// negated size of their set, other entries store their parent.
type UnionFind struct {
	parent []int32
}

// NewUnionFind creates a UnionFind of n singleton sets.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]int32, n)
	for i := range parent {
		parent[i] = -1
	}
	return &UnionFind{parent: parent}
}

// Find returns the root of the set containing x.
func (uf *UnionFind) Find(x uint32) uint32 {
	root := x
	for uf.parent[root] >= 0 {
		root = uint32(uf.parent[root])
	}
	for x != root {
		next := uint32(uf.parent[x])
		uf.parent[x] = int32(root)
		x = next
	}
	return root
}

// Size returns the number of elements in the set containing x.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uint32(-uf.parent[uf.Find(x)])
}

// Union merges the sets of x and y, attaching the smaller under the larger.
// It reports whether they were separate.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.parent[rx] > uf.parent[ry] {
		rx, ry = ry, rx
	}
	uf.parent[rx] += uf.parent[ry]
	uf.parent[ry] = int32(rx)
	return true
}

// LargestComponent returns the positions in mg.Nodes of the nodes belonging
// to the largest weakly connected component. On equal sizes the component
// containing the lowest node position wins.
func LargestComponent(mg *Multigraph) []uint32 {
	n := uint32(len(mg.Nodes))
	if n == 0 {
		return nil
	}

	pos := nodePositions(mg)
	uf := NewUnionFind(n)
	for _, e := range mg.Edges {
		u, uok := pos[e.From]
		v, vok := pos[e.To]
		if uok && vok {
			uf.Union(u, v)
		}
	}

	var best, bestSize uint32
	for i := range n {
		if size := uf.Size(i); size > bestSize {
			best, bestSize = uf.Find(i), size
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := range n {
		if uf.Find(i) == best {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent returns a new multigraph holding only the given node
// positions and the edges whose both endpoints are among them.
func FilterToComponent(mg *Multigraph, nodes []uint32) *Multigraph {
	out := &Multigraph{Meta: maps.Clone(mg.Meta)}
	if len(nodes) == 0 {
		return out
	}

	keep := make(map[NodeID]struct{}, len(nodes))
	out.Nodes = make([]Node, 0, len(nodes))
	for _, i := range nodes {
		n := mg.Nodes[i]
		n.Attrs = maps.Clone(n.Attrs)
		out.Nodes = append(out.Nodes, n)
		keep[n.ID] = struct{}{}
	}

	for _, e := range mg.Edges {
		_, fromOK := keep[e.From]
		_, toOK := keep[e.To]
		if fromOK && toOK {
			out.Edges = append(out.Edges, Edge{From: e.From, To: e.To, EdgeData: e.EdgeData.Clone()})
		}
	}
	return out
}

func nodePositions(mg *Multigraph) map[NodeID]uint32 {
	pos := make(map[NodeID]uint32, len(mg.Nodes))
	for i, n := range mg.Nodes {
		pos[n.ID] = uint32(i)
	}
	return pos
}
