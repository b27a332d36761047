package geocode

import (
	"context"
	"fmt"
	"strings"
)

// Place is a named location of a Gazetteer.
type Place struct {
	Name string `json:"name"`
	Point
}

// DefaultPlaces are the Chennai neighbourhoods offered as route endpoints.
var DefaultPlaces = []Place{
	{"T Nagar, Chennai, India", Point{13.0418, 80.2341}},
	{"Guindy, Chennai, India", Point{13.0067, 80.2206}},
	{"Saidapet, Chennai, India", Point{13.0213, 80.2231}},
	{"Ashok Nagar, Chennai, India", Point{13.0359, 80.2121}},
	{"Adyar, Chennai, India", Point{13.0012, 80.2565}},
	{"Velachery, Chennai, India", Point{12.9815, 80.2180}},
	{"Nungambakkam, Chennai, India", Point{13.0569, 80.2425}},
	{"Anna Nagar, Chennai, India", Point{13.0850, 80.2101}},
	{"Mylapore, Chennai, India", Point{13.0368, 80.2676}},
}

// Gazetteer is an in-memory geocoder over a fixed list of places. A query
// matches a place by its full name or by the part before the first comma,
// ignoring case and surrounding space.
type Gazetteer struct {
	places []Place
	index  map[string]int
}

// NewGazetteer indexes places. Earlier places win on duplicate keys.
func NewGazetteer(places []Place) *Gazetteer {
	g := &Gazetteer{places: places, index: make(map[string]int, 2*len(places))}
	for i, p := range places {
		for _, key := range []string{normalize(p.Name), normalize(shortName(p.Name))} {
			if _, dup := g.index[key]; !dup {
				g.index[key] = i
			}
		}
	}
	return g
}

// Places returns the gazetteer's places in their original order.
func (g *Gazetteer) Places() []Place {
	return g.places
}

func (g *Gazetteer) Geocode(_ context.Context, query string) (Point, error) {
	if i, ok := g.index[normalize(query)]; ok {
		return g.places[i].Point, nil
	}
	return Point{}, fmt.Errorf("%q: %w", query, ErrNotFound)
}

func shortName(name string) string {
	if i := strings.IndexByte(name, ','); i >= 0 {
		return name[:i]
	}
	return name
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
