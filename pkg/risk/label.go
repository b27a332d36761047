package risk

import (
	"cmp"
	"strconv"
	"strings"
)

// Label is a classifier prediction: a category name or a numeric score
// rendered as text.
type Label string

// Labels produced by RuleClassifier.
const (
	LowRisk    Label = "Low Risk"
	MediumRisk Label = "Medium Risk"
	HighRisk   Label = "High Risk"
)

// Compare orders two labels from safest to riskiest, returning a negative
// number when a is safer than b.
type Compare func(a, b Label) int

// RankCompare returns a Compare that orders labels by their position in
// ranks, safest first. Labels missing from ranks sort after every ranked
// label, and among themselves by text.
func RankCompare(ranks ...Label) Compare {
	pos := make(map[Label]int, len(ranks))
	for i, l := range ranks {
		pos[l] = i
	}
	return func(a, b Label) int {
		pa, aok := pos[a]
		pb, bok := pos[b]
		switch {
		case aok && bok:
			return cmp.Compare(pa, pb)
		case aok:
			return -1
		case bok:
			return 1
		}
		return strings.Compare(string(a), string(b))
	}
}

// DefaultCompare ranks the RuleClassifier label space.
var DefaultCompare = RankCompare(LowRisk, MediumRisk, HighRisk)

// NumericCompare orders labels holding numeric scores, lower first.
// Non-numeric labels sort after numeric ones.
func NumericCompare(a, b Label) int {
	fa, aerr := strconv.ParseFloat(strings.TrimSpace(string(a)), 64)
	fb, berr := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	switch {
	case aerr == nil && berr == nil:
		return cmp.Compare(fa, fb)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(string(a), string(b))
}

// Safest returns the index of the minimum label under compare, or -1 for
// an empty slice. The first of several equal minima wins.
func Safest(labels []Label, compare Compare) int {
	best := -1
	for i, l := range labels {
		if best < 0 || compare(l, labels[best]) < 0 {
			best = i
		}
	}
	return best
}
