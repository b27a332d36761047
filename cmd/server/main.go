// Command server serves safest-route recommendations over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safepath/pkg/api"
	"safepath/pkg/config"
	"safepath/pkg/geocode"
	"safepath/pkg/graph"
	"safepath/pkg/risk"
	"safepath/pkg/routing"
	"safepath/pkg/traffic"
)

// options collects flags and environment settings.
type options struct {
	graphPath string
	seed      uint64
	maxSnap   float64
	offline   bool
	traffic   traffic.Distribution
	env       config.Env
}

func main() {
	var opt options
	flag.StringVar(&opt.graphPath, "graph", "graph.bin", "Path to preprocessed graph binary")
	port := flag.Int("port", 8080, "HTTP port")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (empty = same-origin)")
	flag.Uint64Var(&opt.seed, "seed", 0, "Traffic simulation seed (0 = random)")
	flag.Float64Var(&opt.maxSnap, "max-snap", 2000, "Maximum distance in meters from a location to its nearest road node (0 = unlimited)")
	flag.BoolVar(&opt.offline, "offline", false, "Resolve place names from the built-in gazetteer only")
	trafficDist := flag.String("traffic", traffic.DefaultDistribution.String(), "Congestion level weights")
	drain := flag.Duration("drain", 10*time.Second, "How long to wait for in-flight requests on shutdown")
	flag.Parse()

	var err error
	if opt.traffic, err = traffic.ParseDistribution(*trafficDist); err != nil {
		log.Fatalf("Invalid --traffic: %v", err)
	}
	opt.env = config.FromEnv()

	start := time.Now()
	engine, places, stats, err := load(opt)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Ready in %s", time.Since(start).Round(time.Millisecond))

	cfg := api.DefaultConfig(fmt.Sprintf(":%d", *port))
	cfg.CORSOrigin = *corsOrigin
	srv := api.NewServer(cfg, api.NewHandlers(engine, places, stats))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := api.Serve(ctx, srv, *drain); err != nil {
		log.Printf("Server stopped: %v", err)
		os.Exit(1)
	}
}

// load reads the graph and assembles the recommendation engine with its
// collaborators.
func load(opt options) (*routing.Engine, []geocode.Place, api.StatsResponse, error) {
	mg, err := graph.ReadBinary(opt.graphPath)
	if err != nil {
		return nil, nil, api.StatsResponse{}, fmt.Errorf("load graph %s: %w", opt.graphPath, err)
	}
	g := graph.Collapse(mg)
	log.Printf("Graph: %d nodes, %d edges (%d before collapsing parallel edges)", g.NumNodes(), g.NumEdges(), len(mg.Edges))

	seed := opt.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	sim, err := traffic.NewSimulator(seed, traffic.WithDistribution(opt.traffic))
	if err != nil {
		return nil, nil, api.StatsResponse{}, err
	}
	log.Printf("Traffic simulation: seed %d, %s", seed, sim.Distribution())

	gazetteer := geocode.NewGazetteer(geocode.DefaultPlaces)
	geocoders := geocode.Chain{gazetteer}
	if !opt.offline {
		geocoders = append(geocoders, geocode.NewNominatim(opt.env.NominatimURL, opt.env.UserAgent, 10*time.Second))
	}

	var classifier risk.Classifier = risk.RuleClassifier{}
	if opt.env.ClassifierURL != "" {
		classifier = risk.NewHTTPClassifier(opt.env.ClassifierURL, 5*time.Second)
		log.Printf("Using remote classifier at %s", opt.env.ClassifierURL)
	}

	engine := routing.NewEngine(g, routing.EngineConfig{
		Geocoder:      geocoders,
		Simulator:     sim,
		Classifier:    classifier,
		MaxSnapMeters: opt.maxSnap,
	})
	stats := api.StatsResponse{NumNodes: g.NumNodes(), NumEdges: g.NumEdges(), Meta: g.Meta}
	return engine, gazetteer.Places(), stats, nil
}
