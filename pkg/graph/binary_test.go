package graph_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/paulmach/orb"

	"safepath/pkg/graph"
)

func testMultigraph() *graph.Multigraph {
	return &graph.Multigraph{
		Meta: map[string]string{"crs": "epsg:4326", "source": "openstreetmap"},
		Nodes: []graph.Node{
			{ID: 10, Lat: 13.04, Lon: 80.23, Attrs: map[string]string{"highway": "traffic_signals"}},
			{ID: 20, Lat: 13.05, Lon: 80.24},
			{ID: 30, Lat: 13.06, Lon: 80.25},
			{ID: 40, Lat: 13.07, Lon: 80.26},
		},
		Edges: []graph.Edge{
			{From: 10, To: 20, EdgeData: graph.EdgeData{Length: 100, Attrs: map[string]string{"osmid": "1", "name": "Anna Salai"}}},
			{From: 10, To: 20, EdgeData: graph.EdgeData{Length: 90, Attrs: map[string]string{"osmid": "2"}}},
			{From: 20, To: 30, EdgeData: graph.EdgeData{
				Length:     200,
				Congestion: graph.CongestionMedium,
				Geometry:   orb.LineString{{80.24, 13.05}, {80.245, 13.055}, {80.25, 13.06}},
			}},
			{From: 30, To: 10, EdgeData: graph.EdgeData{Length: 300}},
		},
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	original := testMultigraph()

	path := filepath.Join(t.TempDir(), "test.graph.bin")
	if err := graph.WriteBinary(path, original); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	loaded, err := graph.ReadBinary(path)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}

	if !reflect.DeepEqual(loaded.Meta, original.Meta) {
		t.Errorf("Meta = %v, want %v", loaded.Meta, original.Meta)
	}
	if !reflect.DeepEqual(loaded.Nodes, original.Nodes) {
		t.Errorf("Nodes = %+v, want %+v", loaded.Nodes, original.Nodes)
	}
	if len(loaded.Edges) != len(original.Edges) {
		t.Fatalf("len(Edges) = %d, want %d", len(loaded.Edges), len(original.Edges))
	}
	for i := range original.Edges {
		if !reflect.DeepEqual(loaded.Edges[i], original.Edges[i]) {
			t.Errorf("Edges[%d] = %+v, want %+v", i, loaded.Edges[i], original.Edges[i])
		}
	}

	// Temp file is renamed away.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestBinaryCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.graph.bin")
	if err := graph.WriteBinary(path, testMultigraph()); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)/2] ^= 0xFF
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := graph.ReadBinary(path); err == nil {
		t.Error("expected error for corrupted file, got nil")
	}
}

func TestBinaryInvalidMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	if err := os.WriteFile(path, []byte("BADMAGIC\x01\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := graph.ReadBinary(path); err == nil {
		t.Error("expected error for invalid magic, got nil")
	}
}

func TestWriteBinaryUnlistedNode(t *testing.T) {
	mg := testMultigraph()
	mg.Edges = append(mg.Edges, graph.Edge{From: 10, To: 99, EdgeData: graph.EdgeData{Length: 1}})

	path := filepath.Join(t.TempDir(), "test.graph.bin")
	if err := graph.WriteBinary(path, mg); err == nil {
		t.Error("expected error for edge to an unlisted node, got nil")
	}
}

func TestBinaryEmptyGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	if err := graph.WriteBinary(path, &graph.Multigraph{}); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	loaded, err := graph.ReadBinary(path)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if len(loaded.Nodes) != 0 || len(loaded.Edges) != 0 {
		t.Errorf("loaded %d nodes, %d edges, want 0, 0", len(loaded.Nodes), len(loaded.Edges))
	}
}
