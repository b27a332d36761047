package graph

import (
	"maps"
	"sort"
	"time"

	"github.com/paulmach/osm"

	osmparser "safepath/pkg/osm"
)

// Build creates a raw Multigraph from parsed OSM edges. Parallel edges
// between the same node pair are kept; Collapse reduces them.
func Build(result *osmparser.ParseResult) *Multigraph {
	mg := &Multigraph{
		Meta: map[string]string{
			"crs":     "epsg:4326",
			"source":  "openstreetmap",
			"created": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if len(result.Edges) == 0 {
		return mg
	}

	// Nodes in ascending OSM ID order so that builds are reproducible.
	seen := make(map[osm.NodeID]struct{})
	var ids []osm.NodeID
	for i := range result.Edges {
		for _, id := range [2]osm.NodeID{result.Edges[i].FromNodeID, result.Edges[i].ToNodeID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	mg.Nodes = make([]Node, len(ids))
	for i, id := range ids {
		mg.Nodes[i] = Node{
			ID:  NodeID(id),
			Lat: result.NodeLat[id],
			Lon: result.NodeLon[id],
		}
		if tags := result.NodeTags[id]; tags != nil {
			mg.Nodes[i].Attrs = maps.Clone(tags)
		}
	}

	mg.Edges = make([]Edge, len(result.Edges))
	for i, e := range result.Edges {
		mg.Edges[i] = Edge{
			From: NodeID(e.FromNodeID),
			To:   NodeID(e.ToNodeID),
			EdgeData: EdgeData{
				Length: e.Length,
				Attrs:  maps.Clone(e.Tags),
			},
		}
	}
	return mg
}
