// Command recommend prints the candidate routes between two places, marks
// the safest one and writes them as GeoJSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"safepath/pkg/config"
	"safepath/pkg/geocode"
	"safepath/pkg/graph"
	"safepath/pkg/render"
	"safepath/pkg/risk"
	"safepath/pkg/routing"
	"safepath/pkg/traffic"
)

func main() {
	graphPath := flag.String("graph", "graph.bin", "Path to preprocessed graph binary")
	from := flag.String("from", "", `Origin: place name or "lat,lng"`)
	to := flag.String("to", "", `Destination: place name or "lat,lng"`)
	k := flag.Int("k", routing.DefaultK, "Number of candidate routes")
	timeOfDay := flag.String("time", "", "Morning, Afternoon, Evening or Night (default: from the clock)")
	incidents := flag.Int("incidents", 0, "Reported incidents along the way")
	seed := flag.Uint64("seed", 0, "Traffic simulation seed (0 = random)")
	trafficDist := flag.String("traffic", traffic.DefaultDistribution.String(), "Congestion level weights")
	geojsonOut := flag.String("geojson", "routes.geojson", "Write routes as GeoJSON to this file (empty = skip)")
	offline := flag.Bool("offline", false, "Resolve place names from the built-in gazetteer only")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall time limit")
	flag.Parse()
	env := config.FromEnv()

	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, `Usage: recommend --from <place|"lat,lng"> --to <place|"lat,lng"> [--graph graph.bin] [--k 3] [--time Evening] [--geojson routes.geojson]`)
		fmt.Fprintln(os.Stderr, "\nKnown places:")
		for _, p := range geocode.DefaultPlaces {
			fmt.Fprintf(os.Stderr, "  %s\n", p.Name)
		}
		os.Exit(1)
	}

	if *k < 1 {
		log.Fatalf("Invalid --k %d: at least one route is required", *k)
	}
	dist, err := traffic.ParseDistribution(*trafficDist)
	if err != nil {
		log.Fatalf("Invalid --traffic: %v", err)
	}

	req := routing.Request{
		Origin:      parseLocation(*from),
		Destination: parseLocation(*to),
		K:           *k,
		Incidents:   *incidents,
	}
	if *timeOfDay != "" {
		tc, err := risk.ParseTimeCategory(*timeOfDay)
		if err != nil {
			log.Fatalf("Invalid --time: %v", err)
		}
		req.TimeOfDay = &tc
	}

	log.Printf("Loading graph from %s...", *graphPath)
	mg, err := graph.ReadBinary(*graphPath)
	if err != nil {
		log.Fatalf("Failed to load graph: %v", err)
	}
	g := graph.Collapse(mg)
	log.Printf("Graph: %d nodes, %d edges", g.NumNodes(), g.NumEdges())

	if *seed == 0 {
		*seed = rand.Uint64()
	}
	sim, err := traffic.NewSimulator(*seed, traffic.WithDistribution(dist))
	if err != nil {
		log.Fatalf("Failed to create traffic simulator: %v", err)
	}
	log.Printf("Traffic simulation: seed %d, %s", *seed, sim.Distribution())

	geocoders := geocode.Chain{geocode.NewGazetteer(geocode.DefaultPlaces)}
	if !*offline {
		geocoders = append(geocoders, geocode.NewNominatim(env.NominatimURL, env.UserAgent, 10*time.Second))
	}
	var classifier risk.Classifier = risk.RuleClassifier{}
	if env.ClassifierURL != "" {
		classifier = risk.NewHTTPClassifier(env.ClassifierURL, 5*time.Second)
	}

	engine := routing.NewEngine(g, routing.EngineConfig{
		Geocoder:   geocoders,
		Simulator:  sim,
		Classifier: classifier,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rec, err := engine.Recommend(ctx, req)
	switch {
	case errors.Is(err, routing.ErrLocation):
		log.Fatalf("Could not resolve location: %v", err)
	case errors.Is(err, routing.ErrNoPath):
		log.Fatalf("No route between %s and %s", *from, *to)
	case err != nil:
		log.Fatalf("Recommendation failed: %v", err)
	}

	if len(rec.Routes) < req.K {
		log.Printf("Only %d of %d requested routes exist", len(rec.Routes), req.K)
	}
	fmt.Printf("%s: %s -> %s (seed %d)\n\n", rec.TimeOfDay, *from, *to, *seed)
	if err := render.Table(os.Stdout, rec); err != nil {
		log.Fatalf("Failed to print table: %v", err)
	}
	fmt.Printf("\nSafest route: %s\n", render.RouteName(rec.Safest))

	if *geojsonOut != "" {
		data, err := render.GeoJSON(rec)
		if err != nil {
			log.Fatalf("Failed to encode GeoJSON: %v", err)
		}
		if err := os.WriteFile(*geojsonOut, data, 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", *geojsonOut, err)
		}
		log.Printf("Wrote %s", *geojsonOut)
	}
}

// parseLocation reads "lat,lng" as a coordinate and anything else, including
// out-of-range pairs, as a place name.
func parseLocation(s string) routing.Location {
	if latStr, lngStr, ok := strings.Cut(s, ","); ok {
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		lng, lngErr := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
		if latErr == nil && lngErr == nil && math.Abs(lat) <= 90 && math.Abs(lng) <= 180 {
			return routing.Location{Name: s, Point: &routing.LatLng{Lat: lat, Lng: lng}}
		}
	}
	return routing.Location{Name: s}
}
