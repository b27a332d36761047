package risk

import (
	"context"
	"fmt"

	"safepath/pkg/graph"
)

// Classifier predicts a risk label from route features.
type Classifier interface {
	Predict(ctx context.Context, f Features) (Label, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, f Features) (Label, error)

func (fn ClassifierFunc) Predict(ctx context.Context, f Features) (Label, error) {
	return fn(ctx, f)
}

// RuleClassifier labels a route High Risk with 5 or more incidents or High
// congestion, Medium Risk with 3 or more incidents, and Low Risk otherwise.
type RuleClassifier struct{}

func (RuleClassifier) Predict(_ context.Context, f Features) (Label, error) {
	switch {
	case f.Incidents >= 5 || f.Congestion == CongestionCode(graph.CongestionHigh):
		return HighRisk, nil
	case f.Incidents >= 3:
		return MediumRisk, nil
	}
	return LowRisk, nil
}

// Scorer builds features for a path and asks its classifier for a label.
type Scorer struct {
	Classifier Classifier
}

// NewScorer creates a Scorer backed by c.
func NewScorer(c Classifier) *Scorer {
	return &Scorer{Classifier: c}
}

// Score classifies path. Distance comes from node coordinates, never from
// the (possibly simulated) edge weights. Classifier errors are returned
// unchanged.
func (s *Scorer) Score(ctx context.Context, g *graph.Graph, path []graph.NodeID, tc TimeCategory, c graph.Congestion, incidents int) (Label, Features, error) {
	km, err := PathDistanceKm(g, path)
	if err != nil {
		return "", Features{}, fmt.Errorf("path distance: %w", err)
	}
	f := Features{
		DistanceKm: km,
		Congestion: CongestionCode(c),
		Incidents:  incidents,
		TimeOfDay:  int(tc),
	}
	label, err := s.Classifier.Predict(ctx, f)
	if err != nil {
		return "", f, err
	}
	return label, f, nil
}
