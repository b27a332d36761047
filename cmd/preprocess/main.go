// Command preprocess converts an OpenStreetMap extract into the binary road
// graph loaded by the server and the recommend CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb"

	"safepath/pkg/graph"
	osmparser "safepath/pkg/osm"
)

var chennaiBounds = orb.Bound{Min: orb.Point{80.10, 12.85}, Max: orb.Point{80.35, 13.25}}

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	output := flag.String("output", "graph.bin", "Output binary graph file path")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 12.85,80.10,13.25,80.35)")
	chennai := flag.Bool("chennai", false, "Use the Chennai bounding box")
	allComponents := flag.Bool("all-components", false, "Keep every component instead of only the largest")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --input <file.osm.pbf> [--output graph.bin] [--chennai | --bbox minLat,minLng,maxLat,maxLng] [--all-components]")
		os.Exit(1)
	}

	var opts osmparser.ParseOptions
	switch {
	case *chennai:
		opts.Bounds = chennaiBounds
	case *bbox != "":
		b, err := parseBBox(*bbox)
		if err != nil {
			log.Fatalf("Invalid --bbox: %v", err)
		}
		opts.Bounds = b
	}
	if b := opts.Bounds; !b.IsZero() {
		log.Printf("Bounding box: lat [%.4f, %.4f], lng [%.4f, %.4f]", b.Min.Lat(), b.Max.Lat(), b.Min.Lon(), b.Max.Lon())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	mg, err := buildGraph(ctx, *input, opts, !*allComponents)
	if err != nil {
		log.Fatal(err)
	}

	if err := graph.WriteBinary(*output, mg); err != nil {
		log.Fatalf("Failed to write %s: %v", *output, err)
	}
	info, err := os.Stat(*output)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s (%.1f MB, %d nodes, %d edges) in %s",
		*output, float64(info.Size())/(1<<20), len(mg.Nodes), len(mg.Edges), time.Since(start).Round(time.Second))
}

// buildGraph parses path into a multigraph. Parallel edges are kept; they
// are collapsed when the graph is loaded.
func buildGraph(ctx context.Context, path string, opts osmparser.ParseOptions, largestOnly bool) (*graph.Multigraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	parsed, err := osmparser.Parse(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	mg := graph.Build(parsed)
	log.Printf("Raw graph: %d nodes, %d edges", len(mg.Nodes), len(mg.Edges))
	if len(mg.Nodes) == 0 {
		return nil, fmt.Errorf("no drivable roads found in %s", path)
	}
	if !largestOnly {
		return mg, nil
	}

	keep := graph.LargestComponent(mg)
	log.Printf("Largest component: %d nodes (%.1f%%)", len(keep), float64(len(keep))/float64(len(mg.Nodes))*100)
	return graph.FilterToComponent(mg, keep), nil
}

// parseBBox parses "minLat,minLng,maxLat,maxLng".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("want 4 comma separated values, got %d", len(parts))
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, err
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return orb.Bound{}, fmt.Errorf("min must be below max in %q", s)
	}
	return orb.Bound{Min: orb.Point{v[1], v[0]}, Max: orb.Point{v[3], v[2]}}, nil
}
