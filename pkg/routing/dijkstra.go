package routing

import (
	"context"
	"math"

	"safepath/pkg/graph"
)

// noNode marks an absent predecessor.
const noNode = ^uint32(0)

// ctxCheckInterval is how many settled nodes pass between context checks.
const ctxCheckInterval = 1024

// MinHeap is a binary min-heap of search frontier entries. Entries with
// equal distance pop in node order so that searches are reproducible.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist float64
}

func (h *MinHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.Node < b.Node
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, PQItem{Node: node, Dist: dist})
	for i := len(h.items) - 1; i > 0; {
		up := (i - 1) / 2
		if !h.less(i, up) {
			break
		}
		h.items[i], h.items[up] = h.items[up], h.items[i]
		i = up
	}
}

func (h *MinHeap) Pop() PQItem {
	top := h.items[0]
	last := len(h.items) - 1
	h.items[0] = h.items[last]
	h.items = h.items[:last]

	for i := 0; ; {
		best := i
		for _, c := range [2]int{2*i + 1, 2*i + 2} {
			if c < last && h.less(c, best) {
				best = c
			}
		}
		if best == i {
			break
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
	return top
}

func (h *MinHeap) Reset() { h.items = h.items[:0] }

// QueryState holds per-search state for Dijkstra, reusable across searches
// on the same graph.
type QueryState struct {
	Dist    []float64
	Pred    []uint32 // predecessor node (noNode = no predecessor)
	Touched []uint32 // nodes touched during this search (for fast reset)
	PQ      MinHeap

	blockedNode []bool
	blockedList []uint32
	blockedEdge map[uint32]struct{}
}

// NewQueryState creates a new QueryState for a graph with n nodes.
func NewQueryState(n uint32) *QueryState {
	dist := make([]float64, n)
	pred := make([]uint32, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = noNode
	}
	return &QueryState{
		Dist:        dist,
		Pred:        pred,
		Touched:     make([]uint32, 0, 1024),
		PQ:          MinHeap{items: make([]PQItem, 0, 256)},
		blockedNode: make([]bool, n),
		blockedEdge: make(map[uint32]struct{}),
	}
}

// Reset clears only the touched entries and all blocks for fast reuse.
func (qs *QueryState) Reset() {
	for _, node := range qs.Touched {
		qs.Dist[node] = math.Inf(1)
		qs.Pred[node] = noNode
	}
	qs.Touched = qs.Touched[:0]
	qs.PQ.Reset()
	for _, node := range qs.blockedList {
		qs.blockedNode[node] = false
	}
	qs.blockedList = qs.blockedList[:0]
	clear(qs.blockedEdge)
}

// BlockNode excludes node u from the next search.
func (qs *QueryState) BlockNode(u uint32) {
	if !qs.blockedNode[u] {
		qs.blockedNode[u] = true
		qs.blockedList = append(qs.blockedList, u)
	}
}

// BlockEdge excludes the edge with index e from the next search.
func (qs *QueryState) BlockEdge(e uint32) {
	qs.blockedEdge[e] = struct{}{}
}

func (qs *QueryState) touch(node uint32, dist float64, pred uint32) {
	if math.IsInf(qs.Dist[node], 1) {
		qs.Touched = append(qs.Touched, node)
	}
	qs.Dist[node] = dist
	qs.Pred[node] = pred
}

// ShortestPath runs Dijkstra from source to target over edge lengths,
// skipping blocked nodes and edges. It returns the node-index path and its
// weight, or ok=false when target is unreachable. The caller resets qs.
func ShortestPath(ctx context.Context, g *graph.Graph, qs *QueryState, source, target uint32) (path []uint32, dist float64, ok bool, err error) {
	if qs.blockedNode[source] || qs.blockedNode[target] {
		return nil, 0, false, nil
	}

	qs.touch(source, 0, noNode)
	qs.PQ.Push(source, 0)

	settled := 0
	for qs.PQ.Len() > 0 {
		item := qs.PQ.Pop()
		u, d := item.Node, item.Dist
		if d > qs.Dist[u] {
			continue // stale entry
		}
		if u == target {
			return reconstruct(qs.Pred, source, target), d, true, nil
		}

		settled++
		if settled%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, 0, false, err
			}
		}

		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			v := g.Head[e]
			if qs.blockedNode[v] {
				continue
			}
			if _, blocked := qs.blockedEdge[e]; blocked {
				continue
			}
			newDist := d + g.Edges[e].Length
			if newDist < qs.Dist[v] {
				qs.touch(v, newDist, u)
				qs.PQ.Push(v, newDist)
			}
		}
	}
	return nil, 0, false, nil
}

// reconstruct follows predecessors from target back to source.
func reconstruct(pred []uint32, source, target uint32) []uint32 {
	var path []uint32
	for node := target; ; node = pred[node] {
		path = append(path, node)
		if node == source {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
