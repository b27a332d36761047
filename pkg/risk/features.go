// Package risk turns a candidate route into a classifier feature vector and
// selects the safest route by the classifier's label ordering.
package risk

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"safepath/pkg/geo"
	"safepath/pkg/graph"
)

// TimeCategory is the part of day a trip takes place in.
type TimeCategory int

const (
	Morning TimeCategory = iota
	Afternoon
	Evening
	Night
)

var timeCategoryNames = [...]string{"Morning", "Afternoon", "Evening", "Night"}

func (tc TimeCategory) String() string {
	if tc < Morning || tc > Night {
		return fmt.Sprintf("TimeCategory(%d)", int(tc))
	}
	return timeCategoryNames[tc]
}

// ParseTimeCategory accepts a category name, case-insensitively.
func ParseTimeCategory(s string) (TimeCategory, error) {
	for i, name := range timeCategoryNames {
		if strings.EqualFold(s, name) {
			return TimeCategory(i), nil
		}
	}
	return 0, fmt.Errorf("unknown time of day %q", s)
}

// TimeCategoryAt classifies a clock time: Morning 05:00-11:59,
// Afternoon 12:00-16:59, Evening 17:00-20:59, Night otherwise.
func TimeCategoryAt(t time.Time) TimeCategory {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 21:
		return Evening
	}
	return Night
}

// CongestionCode maps a congestion level to its feature value. An unset
// level encodes as Low.
func CongestionCode(c graph.Congestion) int {
	switch c {
	case graph.CongestionMedium:
		return 1
	case graph.CongestionHigh:
		return 2
	}
	return 0
}

// Features is the classifier input for one route.
type Features struct {
	DistanceKm float64
	Congestion int
	Incidents  int
	TimeOfDay  int
}

// Vector returns the features in classifier column order:
// distance_km, congestion, incidents, time of day.
func (f Features) Vector() [4]float64 {
	return [4]float64{f.DistanceKm, float64(f.Congestion), float64(f.Incidents), float64(f.TimeOfDay)}
}

// PathDistanceKm sums the great-circle distances between consecutive nodes
// of path. Edge weights are ignored.
func PathDistanceKm(g *graph.Graph, path []graph.NodeID) (float64, error) {
	ls := make(orb.LineString, 0, len(path))
	for _, id := range path {
		i, ok := g.Index(id)
		if !ok {
			return 0, fmt.Errorf("path node %d not in graph", id)
		}
		ls = append(ls, geo.Point(g.Nodes[i].Lat, g.Nodes[i].Lon))
	}
	return geo.LineStringKm(ls), nil
}

// DominantCongestion returns the congestion level covering the greatest
// share of the path's weight. Ties go to the more severe level. A path with
// no simulated edges yields CongestionUnset.
func DominantCongestion(g *graph.Graph, path []graph.NodeID) graph.Congestion {
	var share [4]float64
	for i := 0; i+1 < len(path); i++ {
		e, ok := g.Edge(path[i], path[i+1])
		if !ok || e.Congestion == graph.CongestionUnset {
			continue
		}
		share[e.Congestion] += e.Length
	}

	best := graph.CongestionUnset
	for c := graph.CongestionLow; c <= graph.CongestionHigh; c++ {
		if share[c] > 0 && share[c] >= share[best] {
			best = c
		}
	}
	return best
}
