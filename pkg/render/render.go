// Package render presents a route recommendation as GeoJSON or as a
// plain-text table.
package render

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"safepath/pkg/routing"
)

// Colors cycles over the candidate routes in order.
var Colors = []string{"#ef4444", "#f59e0b", "#10b981"}

// RouteName returns the display name of the i-th route (zero based).
func RouteName(i int) string { return fmt.Sprintf("R%d", i+1) }

// Color returns the display color of the i-th route.
func Color(i int) string { return Colors[i%len(Colors)] }

// FeatureCollection builds one LineString feature per route plus start and
// end Point markers.
func FeatureCollection(rec *routing.Recommendation) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, r := range rec.Routes {
		line := make(orb.LineString, 0, len(r.Geometry))
		for _, p := range r.Geometry {
			line = append(line, orb.Point{p.Lng, p.Lat})
		}
		f := geojson.NewFeature(line)
		f.Properties["route"] = RouteName(i)
		f.Properties["distance_km"] = round2(r.DistanceKm)
		f.Properties["weight"] = round2(r.Path.Weight)
		f.Properties["congestion"] = r.Congestion.String()
		f.Properties["risk"] = string(r.Risk)
		f.Properties["color"] = Color(i)
		f.Properties["safest"] = i == rec.Safest
		fc.Append(f)
	}

	for _, m := range []struct {
		kind string
		loc  routing.ResolvedLocation
	}{
		{"start", rec.Origin},
		{"end", rec.Destination},
	} {
		f := geojson.NewFeature(orb.Point{m.loc.Point.Lng, m.loc.Point.Lat})
		f.Properties["marker"] = m.kind
		f.Properties["name"] = m.loc.Name
		fc.Append(f)
	}
	return fc
}

// GeoJSON encodes the recommendation as a GeoJSON FeatureCollection.
func GeoJSON(rec *routing.Recommendation) ([]byte, error) {
	return FeatureCollection(rec).MarshalJSON()
}

// Table writes one row per route, marking the safest one.
func Table(w io.Writer, rec *routing.Recommendation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUTE\tDISTANCE (km)\tCONGESTION\tRISK\t")
	for i, r := range rec.Routes {
		mark := ""
		if i == rec.Safest {
			mark = "safest"
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\t%s\n", RouteName(i), r.DistanceKm, r.Congestion, r.Risk, mark)
	}
	return tw.Flush()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
