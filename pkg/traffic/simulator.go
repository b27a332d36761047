// Package traffic assigns simulated congestion levels to road edges and
// scales their weights accordingly.
package traffic

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"safepath/pkg/graph"
)

// ErrInvalidDistribution is returned for a distribution with a negative
// weight or no positive weight at all.
var ErrInvalidDistribution = errors.New("invalid congestion distribution")

// Distribution holds the relative weights of each congestion level.
// Weights need not sum to 1.
type Distribution struct {
	Low    float64
	Medium float64
	High   float64
}

// DefaultDistribution draws Low 60%, Medium 30%, High 10% of the time.
var DefaultDistribution = Distribution{Low: 0.6, Medium: 0.3, High: 0.1}

// Validate checks that all weights are non-negative and at least one is positive.
func (d Distribution) Validate() error {
	if d.Low < 0 || d.Medium < 0 || d.High < 0 {
		return fmt.Errorf("%w: negative weight in %+v", ErrInvalidDistribution, d)
	}
	if d.Low+d.Medium+d.High <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidDistribution)
	}
	return nil
}

// String formats d in the form accepted by ParseDistribution.
func (d Distribution) String() string {
	return fmt.Sprintf("%s=%g,%s=%g,%s=%g",
		graph.CongestionLow, d.Low, graph.CongestionMedium, d.Medium, graph.CongestionHigh, d.High)
}

// ParseDistribution parses weights such as "Low=0.6,Medium=0.3,High=0.1".
// Levels left out get weight 0. The result is validated.
func ParseDistribution(s string) (Distribution, error) {
	var d Distribution
	for part := range strings.SplitSeq(s, ",") {
		label, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return Distribution{}, fmt.Errorf("%w: %q is not level=weight", ErrInvalidDistribution, part)
		}
		c, ok := graph.ParseCongestion(strings.TrimSpace(label))
		if !ok {
			return Distribution{}, fmt.Errorf("%w: unknown level %q", ErrInvalidDistribution, label)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return Distribution{}, fmt.Errorf("%w: weight of %s: %v", ErrInvalidDistribution, c, err)
		}
		switch c {
		case graph.CongestionLow:
			d.Low = w
		case graph.CongestionMedium:
			d.Medium = w
		case graph.CongestionHigh:
			d.High = w
		}
	}
	return d, d.Validate()
}

// Multiplier returns the weight factor applied for congestion level c.
func Multiplier(c graph.Congestion) float64 {
	switch c {
	case graph.CongestionMedium:
		return 1.5
	case graph.CongestionHigh:
		return 2.0
	}
	return 1.0
}

// Option configures a Simulator.
type Option func(*Simulator) error

// WithDistribution replaces the default congestion distribution.
func WithDistribution(d Distribution) Option {
	return func(s *Simulator) error {
		if err := d.Validate(); err != nil {
			return err
		}
		s.dist = d
		return nil
	}
}

// Simulator draws congestion levels from a seedable random source.
// It is safe for concurrent use; draws are serialized.
type Simulator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	dist Distribution
}

// NewSimulator creates a Simulator whose draws are fully determined by seed.
func NewSimulator(seed uint64, opts ...Option) (*Simulator, error) {
	s := &Simulator{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		dist: DefaultDistribution,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Distribution returns the distribution the simulator draws from.
func (s *Simulator) Distribution() Distribution { return s.dist }

// Simulate draws a congestion level for every edge of g, stores it on the
// edge and multiplies the edge's Length by the level's factor.
//
// Simulate mutates g in place. Calling it twice on the same graph compounds
// the multipliers, since the second pass scales the already scaled lengths.
// Use SimulateCopy to leave the input untouched.
func (s *Simulator) Simulate(g *graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range g.Edges {
		c := s.draw()
		g.Edges[i].Congestion = c
		g.Edges[i].Length *= Multiplier(c)
	}
}

// SimulateCopy returns a deep copy of g with traffic simulated on it.
func (s *Simulator) SimulateCopy(g *graph.Graph) *graph.Graph {
	c := g.Clone()
	s.Simulate(c)
	return c
}

// draw must be called with s.mu held.
func (s *Simulator) draw() graph.Congestion {
	d := s.dist
	r := s.rng.Float64() * (d.Low + d.Medium + d.High)
	switch {
	case r < d.Low:
		return graph.CongestionLow
	case r < d.Low+d.Medium:
		return graph.CongestionMedium
	case d.High > 0:
		return graph.CongestionHigh
	case d.Medium > 0:
		return graph.CongestionMedium
	}
	return graph.CongestionLow
}
