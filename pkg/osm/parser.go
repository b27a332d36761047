package osm

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"safepath/pkg/geo"
)

// RawEdge represents a directed road segment parsed from OSM data.
// Several RawEdges may connect the same ordered node pair when distinct
// ways share two consecutive nodes.
type RawEdge struct {
	FromNodeID osm.NodeID
	ToNodeID   osm.NodeID
	WayID      osm.WayID
	Length     float64           // great-circle length in meters
	Tags       map[string]string // subset of way tags kept as edge attributes
}

// ParseResult holds the output of parsing an OSM PBF file.
type ParseResult struct {
	Edges    []RawEdge
	NodeLat  map[osm.NodeID]float64
	NodeLon  map[osm.NodeID]float64
	NodeTags map[osm.NodeID]map[string]string // only nodes carrying a kept tag
}

// keptNodeTags lists the node tags copied onto graph nodes.
var keptNodeTags = []string{"highway", "crossing", "junction", "traffic_calming"}

// keptTags lists the way tags copied onto every edge of the way.
var keptTags = []string{"highway", "name", "maxspeed", "lanes", "ref"}

// Drivable highway classes. The major classes also admit their _link ramps.
var (
	majorRoads = []string{"motorway", "trunk", "primary", "secondary", "tertiary"}
	minorRoads = []string{"unclassified", "residential", "living_street", "service"}
)

// isDrivable reports whether a car may use the way.
func isDrivable(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !slices.Contains(minorRoads, hw) && !slices.Contains(majorRoads, strings.TrimSuffix(hw, "_link")) {
		return false
	}
	if tags.Find("area") == "yes" || tags.Find("motor_vehicle") == "no" {
		return false
	}
	access := tags.Find("access")
	return access != "no" && access != "private"
}

// onewayDirections maps oneway tag values to (forward, backward).
// "reversible" is time dependent and yields neither.
var onewayDirections = map[string][2]bool{
	"yes":        {true, false},
	"true":       {true, false},
	"1":          {true, false},
	"-1":         {false, true},
	"reverse":    {false, true},
	"no":         {true, true},
	"reversible": {false, false},
}

// directionFlags returns the directions a car may travel along the way.
// Motorways and roundabouts are implicitly one-way unless tagged otherwise.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	if d, ok := onewayDirections[tags.Find("oneway")]; ok {
		return d[0], d[1]
	}
	switch {
	case tags.Find("junction") == "roundabout":
		return true, false
	case strings.HasPrefix(tags.Find("highway"), "motorway"):
		return true, false
	}
	return true, true
}

// edgeTags builds the attribute map shared by all edges of one way.
func edgeTags(id osm.WayID, tags osm.Tags, oneway bool) map[string]string {
	out := map[string]string{
		"osmid":  strconv.FormatInt(int64(id), 10),
		"oneway": strconv.FormatBool(oneway),
	}
	for _, k := range keptTags {
		if v := tags.Find(k); v != "" {
			out[k] = v
		}
	}
	return out
}

// roadWay is a drivable way kept from the first pass.
type roadWay struct {
	ID       osm.WayID
	NodeIDs  []osm.NodeID
	Tags     map[string]string
	Forward  bool
	Backward bool
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	// Bounds keeps only segments with both endpoints inside it. Points are
	// [lon, lat]. The zero bound disables filtering.
	Bounds orb.Bound
}

// Parse reads an OSM PBF file and returns directed edges for car routing.
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	ways, referenced, err := scanWays(ctx, rs)
	if err != nil {
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	log.Printf("Pass 1 complete: %d ways, %d referenced nodes", len(ways), len(referenced))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}
	result, err := scanNodes(ctx, rs, referenced)
	if err != nil {
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	log.Printf("Pass 2 complete: %d node coordinates, %d tagged nodes", len(result.NodeLat), len(result.NodeTags))

	edges, skipped, filtered := buildEdges(ways, result.NodeLat, result.NodeLon, opt.Bounds)
	if skipped > 0 {
		log.Printf("Warning: skipped %d edges due to missing node coordinates", skipped)
	}
	if filtered > 0 {
		log.Printf("Filtered %d edges outside bounding box", filtered)
	}
	log.Printf("Built %d directed edges", len(edges))

	result.Edges = edges
	return result, nil
}

// scanWays collects drivable ways and the set of nodes they reference.
func scanWays(ctx context.Context, r io.Reader) ([]roadWay, map[osm.NodeID]struct{}, error) {
	scanner := osmpbf.New(ctx, r, 1)
	defer scanner.Close()
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	referenced := make(map[osm.NodeID]struct{})
	var ways []roadWay
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok || len(w.Nodes) < 2 || !isDrivable(w.Tags) {
			continue
		}
		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		nodeIDs := w.Nodes.NodeIDs()
		for _, id := range nodeIDs {
			referenced[id] = struct{}{}
		}
		ways = append(ways, roadWay{
			ID:       w.ID,
			NodeIDs:  nodeIDs,
			Tags:     edgeTags(w.ID, w.Tags, fwd != bwd),
			Forward:  fwd,
			Backward: bwd,
		})
	}
	return ways, referenced, scanner.Err()
}

// scanNodes collects coordinates and kept tags of the referenced nodes.
func scanNodes(ctx context.Context, r io.Reader, referenced map[osm.NodeID]struct{}) (*ParseResult, error) {
	scanner := osmpbf.New(ctx, r, 1)
	defer scanner.Close()
	scanner.SkipWays = true
	scanner.SkipRelations = true

	result := &ParseResult{
		NodeLat:  make(map[osm.NodeID]float64, len(referenced)),
		NodeLon:  make(map[osm.NodeID]float64, len(referenced)),
		NodeTags: make(map[osm.NodeID]map[string]string),
	}
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		result.NodeLat[n.ID] = n.Lat
		result.NodeLon[n.ID] = n.Lon
		if tags := nodeTags(n.Tags); tags != nil {
			result.NodeTags[n.ID] = tags
		}
	}
	return result, scanner.Err()
}

// nodeTags returns the kept tags of a node, or nil if it has none.
func nodeTags(tags osm.Tags) map[string]string {
	var out map[string]string
	for _, k := range keptNodeTags {
		if v := tags.Find(k); v != "" {
			if out == nil {
				out = make(map[string]string)
			}
			out[k] = v
		}
	}
	return out
}

// buildEdges splits every way into consecutive-node segments, one RawEdge per
// allowed direction. Segments touching a node without coordinates are
// counted in skipped, those leaving bounds in filtered.
func buildEdges(ways []roadWay, nodeLat, nodeLon map[osm.NodeID]float64, bounds orb.Bound) (edges []RawEdge, skipped, filtered int) {
	point := func(id osm.NodeID) (orb.Point, bool) {
		lat, ok := nodeLat[id]
		return geo.Point(lat, nodeLon[id]), ok
	}

	for _, w := range ways {
		for i := 1; i < len(w.NodeIDs); i++ {
			a, b := w.NodeIDs[i-1], w.NodeIDs[i]
			pa, aok := point(a)
			pb, bok := point(b)
			if !aok || !bok {
				skipped++
				continue
			}
			if !bounds.IsZero() && !(bounds.Contains(pa) && bounds.Contains(pb)) {
				filtered++
				continue
			}

			// Duplicate consecutive nodes still need a positive weight.
			length := max(geo.Haversine(pa.Lat(), pa.Lon(), pb.Lat(), pb.Lon()), 0.001)
			if w.Forward {
				edges = append(edges, RawEdge{FromNodeID: a, ToNodeID: b, WayID: w.ID, Length: length, Tags: w.Tags})
			}
			if w.Backward {
				edges = append(edges, RawEdge{FromNodeID: b, ToNodeID: a, WayID: w.ID, Length: length, Tags: w.Tags})
			}
		}
	}
	return edges, skipped, filtered
}
