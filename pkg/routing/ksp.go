package routing

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"safepath/pkg/graph"
)

var (
	// ErrNodeNotFound is returned when a source or destination is not a node
	// of the graph.
	ErrNodeNotFound = errors.New("node not found in graph")
	// ErrNoPath is returned when the destination is unreachable.
	ErrNoPath = errors.New("no path between source and destination")
	// ErrInsufficientPaths is returned by Next once every simple path has
	// been emitted. It is not a failure when at least one path was produced.
	ErrInsufficientPaths = errors.New("no further simple paths")
)

// Path is a simple path through the graph and its total weight.
type Path struct {
	Nodes  []graph.NodeID
	Weight float64
}

// PathEnumerator lazily produces simple paths from a source to a destination
// in non-decreasing order of weight. Each call to Next computes only the
// deviations of the previously emitted path.
//
// A PathEnumerator is not safe for concurrent use.
type PathEnumerator struct {
	g        *graph.Graph
	src, dst uint32
	qs       *QueryState

	started    bool
	emitted    [][]uint32
	candidates candidateHeap
	seen       map[string]struct{}
	seq        uint64

	// Deviation progress over the last emitted path.
	nextSpur int
}

// NewPathEnumerator prepares enumeration of simple paths from source to
// destination. It fails with ErrNodeNotFound if either is absent from g.
func NewPathEnumerator(g *graph.Graph, source, destination graph.NodeID) (*PathEnumerator, error) {
	src, ok := g.Index(source)
	if !ok {
		return nil, fmt.Errorf("source %d: %w", source, ErrNodeNotFound)
	}
	dst, ok := g.Index(destination)
	if !ok {
		return nil, fmt.Errorf("destination %d: %w", destination, ErrNodeNotFound)
	}
	return &PathEnumerator{
		g:    g,
		src:  src,
		dst:  dst,
		qs:   NewQueryState(g.NumNodes()),
		seen: make(map[string]struct{}),
	}, nil
}

// Next returns the next simple path. The first call returns a shortest path
// or ErrNoPath. Later calls return ErrInsufficientPaths once every simple
// path has been emitted. A cancelled ctx aborts the call with ctx.Err();
// enumeration can resume with a fresh context.
func (pe *PathEnumerator) Next(ctx context.Context) (Path, error) {
	if !pe.started {
		path, _, ok, err := pe.search(ctx, pe.src)
		if err != nil {
			return Path{}, err
		}
		if !ok {
			return Path{}, ErrNoPath
		}
		pe.started = true
		return pe.emit(path), nil
	}

	if err := pe.deviate(ctx); err != nil {
		return Path{}, err
	}
	if pe.candidates.Len() == 0 {
		return Path{}, ErrInsufficientPaths
	}
	c := heap.Pop(&pe.candidates).(*candidate)
	return pe.emit(c.nodes), nil
}

// deviate adds to the candidate set every spur path branching off the last
// emitted path that has not been computed yet.
func (pe *PathEnumerator) deviate(ctx context.Context) error {
	last := pe.emitted[len(pe.emitted)-1]
	for ; pe.nextSpur < len(last)-1; pe.nextSpur++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		i := pe.nextSpur
		spurNode := last[i]
		root := last[:i+1]

		// Edges leaving the root that earlier paths already took.
		for _, p := range pe.emitted {
			if len(p) > i+1 && equalPrefix(p, root) {
				if e := pe.g.FindEdge(p[i], p[i+1]); e != graph.NoEdge {
					pe.qs.BlockEdge(e)
				}
			}
		}
		// Root nodes other than the spur node keep the path simple.
		for _, u := range root[:i] {
			pe.qs.BlockNode(u)
		}

		spur, _, ok, err := pe.search(ctx, spurNode)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		full := make([]uint32, 0, len(root)+len(spur)-1)
		full = append(full, root...)
		full = append(full, spur[1:]...)
		key := pathKey(full)
		if _, dup := pe.seen[key]; dup {
			continue
		}
		pe.seen[key] = struct{}{}
		pe.seq++
		heap.Push(&pe.candidates, &candidate{
			nodes:  full,
			weight: pe.weight(full),
			seq:    pe.seq,
		})
	}
	return nil
}

// search runs a blocked Dijkstra from u to the destination and resets the
// query state afterwards.
func (pe *PathEnumerator) search(ctx context.Context, u uint32) ([]uint32, float64, bool, error) {
	defer pe.qs.Reset()
	return ShortestPath(ctx, pe.g, pe.qs, u, pe.dst)
}

func (pe *PathEnumerator) emit(nodes []uint32) Path {
	pe.emitted = append(pe.emitted, nodes)
	pe.seen[pathKey(nodes)] = struct{}{}
	pe.nextSpur = 0

	ids := make([]graph.NodeID, len(nodes))
	for i, u := range nodes {
		ids[i] = pe.g.Nodes[u].ID
	}
	return Path{Nodes: ids, Weight: pe.weight(nodes)}
}

// weight sums edge lengths along a node-index path from scratch.
func (pe *PathEnumerator) weight(nodes []uint32) float64 {
	var w float64
	for i := 0; i+1 < len(nodes); i++ {
		w += pe.g.Edges[pe.g.FindEdge(nodes[i], nodes[i+1])].Length
	}
	return w
}

// KShortestPaths returns up to k simple paths from source to destination in
// non-decreasing order of weight. Fewer than k paths is not an error; zero
// paths is ErrNoPath.
func KShortestPaths(ctx context.Context, g *graph.Graph, source, destination graph.NodeID, k int) ([]Path, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	pe, err := NewPathEnumerator(g, source, destination)
	if err != nil {
		return nil, err
	}

	paths := make([]Path, 0, k)
	for len(paths) < k {
		p, err := pe.Next(ctx)
		if errors.Is(err, ErrInsufficientPaths) {
			break
		}
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// PathWeight returns the sum of edge lengths along nodes. It fails if two
// consecutive nodes are not joined by an edge.
func PathWeight(g *graph.Graph, nodes []graph.NodeID) (float64, error) {
	var w float64
	for i := 0; i+1 < len(nodes); i++ {
		e, ok := g.Edge(nodes[i], nodes[i+1])
		if !ok {
			return 0, fmt.Errorf("no edge %d->%d", nodes[i], nodes[i+1])
		}
		w += e.Length
	}
	return w, nil
}

func equalPrefix(p, prefix []uint32) bool {
	if len(p) < len(prefix) {
		return false
	}
	for i, u := range prefix {
		if p[i] != u {
			return false
		}
	}
	return true
}

func pathKey(nodes []uint32) string {
	var b strings.Builder
	for i, u := range nodes {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(u), 10))
	}
	return b.String()
}

// candidate is a path awaiting emission. Equal weights are ordered by
// generation sequence.
type candidate struct {
	nodes  []uint32
	weight float64
	seq    uint64
}

type candidateHeap []*candidate

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].seq < h[j].seq
}
func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)   { *h = append(*h, x.(*candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}
