// Package geocode resolves place names to coordinates.
package geocode

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a place name matches no location.
	ErrNotFound = errors.New("location not found")
	// ErrUpstream wraps failures of a remote geocoding service.
	ErrUpstream = errors.New("geocoding service failed")
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder maps a free-form place name to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Point, error)
}

// Chain tries each geocoder in order and returns the first match. A
// geocoder answering ErrNotFound passes the query on; any other error
// stops the chain.
type Chain []Geocoder

func (c Chain) Geocode(ctx context.Context, query string) (Point, error) {
	for _, g := range c {
		p, err := g.Geocode(ctx, query)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return p, err
	}
	return Point{}, ErrNotFound
}
