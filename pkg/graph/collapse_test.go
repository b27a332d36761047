package graph

import (
	"reflect"
	"testing"

	"github.com/paulmach/orb"
)

func TestCollapseKeepsShortestParallelEdge(t *testing.T) {
	mg := &Multigraph{
		Nodes: []Node{{ID: 1}, {ID: 2}},
		Edges: []Edge{
			{From: 1, To: 2, EdgeData: EdgeData{Length: 10, Attrs: map[string]string{"osmid": "a"}}},
			{From: 1, To: 2, EdgeData: EdgeData{Length: 5, Attrs: map[string]string{"osmid": "b", "name": "Mount Road"}}},
			{From: 1, To: 2, EdgeData: EdgeData{Length: 7, Attrs: map[string]string{"osmid": "c"}}},
		},
	}

	g := Collapse(mg)

	if g.NumEdges() != 1 {
		t.Fatalf("NumEdges = %d, want 1", g.NumEdges())
	}
	e, ok := g.Edge(1, 2)
	if !ok {
		t.Fatal("edge 1->2 missing")
	}
	if e.Length != 5 {
		t.Errorf("Length = %v, want 5", e.Length)
	}
	want := map[string]string{"osmid": "b", "name": "Mount Road"}
	if !reflect.DeepEqual(e.Attrs, want) {
		t.Errorf("Attrs = %v, want %v (whole attribute set of the winner)", e.Attrs, want)
	}
}

func TestCollapseTieKeepsFirst(t *testing.T) {
	mg := &Multigraph{
		Nodes: []Node{{ID: 1}, {ID: 2}},
		Edges: []Edge{
			{From: 1, To: 2, EdgeData: EdgeData{Length: 4, Attrs: map[string]string{"osmid": "first"}}},
			{From: 1, To: 2, EdgeData: EdgeData{Length: 4, Attrs: map[string]string{"osmid": "second"}}},
		},
	}

	e, _ := Collapse(mg).Edge(1, 2)
	if e.Attrs["osmid"] != "first" {
		t.Errorf("osmid = %q, want first", e.Attrs["osmid"])
	}
}

func TestCollapseMissingLength(t *testing.T) {
	mg := &Multigraph{
		Nodes: []Node{{ID: 1}, {ID: 2}, {ID: 3}},
		Edges: []Edge{
			{From: 1, To: 2, EdgeData: EdgeData{Length: 3, Attrs: map[string]string{"osmid": "long"}}},
			{From: 1, To: 2, EdgeData: EdgeData{Attrs: map[string]string{"osmid": "unknown"}}},
			{From: 2, To: 3, EdgeData: EdgeData{Length: 0.5}},
			{From: 2, To: 3, EdgeData: EdgeData{}},
		},
	}

	g := Collapse(mg)

	e, _ := g.Edge(1, 2)
	if e.Length != 1 || e.Attrs["osmid"] != "unknown" {
		t.Errorf("1->2 = (%v, %q), want (1, unknown)", e.Length, e.Attrs["osmid"])
	}
	e, _ = g.Edge(2, 3)
	if e.Length != 0.5 {
		t.Errorf("2->3 Length = %v, want 0.5", e.Length)
	}
}

func TestCollapseKeepsDirectionAndIsolatedNodes(t *testing.T) {
	mg := &Multigraph{
		Meta: map[string]string{"crs": "epsg:4326", "name": "chennai"},
		Nodes: []Node{
			{ID: 1, Lat: 13.04, Lon: 80.23, Attrs: map[string]string{"highway": "traffic_signals"}},
			{ID: 2, Lat: 13.05, Lon: 80.24},
			{ID: 9, Lat: 13.10, Lon: 80.30},
		},
		Edges: []Edge{
			{From: 1, To: 2, EdgeData: EdgeData{Length: 8}},
			{From: 2, To: 1, EdgeData: EdgeData{Length: 6}},
		},
	}

	g := Collapse(mg)

	if g.NumNodes() != 3 {
		t.Fatalf("NumNodes = %d, want 3", g.NumNodes())
	}
	if !g.HasNode(9) {
		t.Error("isolated node 9 dropped")
	}
	if g.NumEdges() != 2 {
		t.Fatalf("NumEdges = %d, want 2 (opposite directions are distinct)", g.NumEdges())
	}
	if e, _ := g.Edge(2, 1); e.Length != 6 {
		t.Errorf("2->1 Length = %v, want 6", e.Length)
	}
	if g.Nodes[0].Attrs["highway"] != "traffic_signals" {
		t.Error("node attributes not copied")
	}
	if !reflect.DeepEqual(g.Meta, mg.Meta) {
		t.Errorf("Meta = %v, want %v", g.Meta, mg.Meta)
	}

	// Result does not alias the input.
	mg.Meta["name"] = "changed"
	mg.Nodes[0].Attrs["highway"] = "changed"
	if g.Meta["name"] != "chennai" || g.Nodes[0].Attrs["highway"] != "traffic_signals" {
		t.Error("collapsed graph shares maps with its input")
	}
}

func TestCollapseIdempotent(t *testing.T) {
	mg := &Multigraph{
		Meta:  map[string]string{"crs": "epsg:4326"},
		Nodes: []Node{{ID: 3}, {ID: 1}, {ID: 2}},
		Edges: []Edge{
			{From: 2, To: 3, EdgeData: EdgeData{Length: 2, Geometry: orb.LineString{{80.1, 13.0}, {80.2, 13.1}}}},
			{From: 1, To: 2, EdgeData: EdgeData{Length: 9}},
			{From: 1, To: 2, EdgeData: EdgeData{Length: 4, Congestion: CongestionLow}},
			{From: 3, To: 1, EdgeData: EdgeData{Length: 1}},
		},
	}

	once := Collapse(mg)
	twice := Collapse(once.ToMultigraph())

	if !reflect.DeepEqual(once.Nodes, twice.Nodes) {
		t.Errorf("Nodes differ after second collapse")
	}
	if !reflect.DeepEqual(once.FirstOut, twice.FirstOut) || !reflect.DeepEqual(once.Head, twice.Head) {
		t.Errorf("adjacency differs after second collapse")
	}
	if !reflect.DeepEqual(once.Edges, twice.Edges) {
		t.Errorf("edge data differs after second collapse")
	}
}

func TestCollapseEmpty(t *testing.T) {
	g := Collapse(&Multigraph{})
	if g.NumNodes() != 0 || g.NumEdges() != 0 {
		t.Errorf("Collapse(empty) = %d nodes, %d edges, want 0, 0", g.NumNodes(), g.NumEdges())
	}
	if len(g.FirstOut) != 1 {
		t.Errorf("len(FirstOut) = %d, want 1", len(g.FirstOut))
	}
}

func TestCloneIsDeep(t *testing.T) {
	g := Collapse(&Multigraph{
		Nodes: []Node{{ID: 1}, {ID: 2}},
		Edges: []Edge{{From: 1, To: 2, EdgeData: EdgeData{Length: 5, Attrs: map[string]string{"name": "x"}}}},
	})

	c := g.Clone()
	c.Edges[0].Length = 50
	c.Edges[0].Attrs["name"] = "y"
	c.Edges[0].Congestion = CongestionHigh

	e, _ := g.Edge(1, 2)
	if e.Length != 5 || e.Attrs["name"] != "x" || e.Congestion != CongestionUnset {
		t.Errorf("original modified through clone: %+v", e)
	}
	if _, ok := c.Edge(1, 2); !ok {
		t.Error("clone lost its node index")
	}
}
