// Package aggregate merges aligned member rating vectors into one consensus
// rating per candidate and derives the party ranking from it.
package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/partyrank/internal/domain/model"
)

// Policy names a combining function over the per-member ratings of one item.
type Policy string

// Supported aggregation policies. Both are symmetric in the members and
// monotonic: if every member rates X above Y, so does the consensus.
const (
	PolicyMean   Policy = "mean"
	PolicyMedian Policy = "median"
)

// Aggregator combines normalized member vectors into a consensus.
type Aggregator interface {
	// Aggregate expects every vector to list the same titles in the same
	// order. It returns one rating per title; no vectors yield an empty
	// consensus.
	Aggregate(vectors []model.OrderedVector) (model.Consensus, error)

	// Policy reports the combining function in use.
	Policy() Policy
}

// combineFunc reduces the ratings of one item, sorted ascending, to one value.
type combineFunc func(sorted []float64) float64

type aggregator struct {
	policy  Policy
	combine combineFunc
}

var _ Aggregator = (*aggregator)(nil)

// New returns the aggregator for a policy name (case-insensitive).
func New(policy string) (Aggregator, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(policy))) {
	case PolicyMean, "":
		return NewMean(), nil
	case PolicyMedian:
		return NewMedian(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// NewMean returns the arithmetic-mean aggregator.
func NewMean() Aggregator {
	return &aggregator{policy: PolicyMean, combine: mean}
}

// NewMedian returns the median aggregator.
func NewMedian() Aggregator {
	return &aggregator{policy: PolicyMedian, combine: median}
}

func (a *aggregator) Policy() Policy { return a.policy }

// Aggregate implements Aggregator. The ratings of each item are sorted before
// they are combined, so the result is bit-identical for any permutation of
// vectors.
func (a *aggregator) Aggregate(vectors []model.OrderedVector) (model.Consensus, error) {
	if len(vectors) == 0 {
		return model.Consensus{}, nil
	}
	if err := checkAligned(vectors); err != nil {
		return nil, err
	}

	ref := vectors[0]
	column := make([]float64, len(vectors))
	out := make(model.Consensus, len(ref))
	for j := range ref {
		for i, v := range vectors {
			r := v[j].Rating
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return nil, fmt.Errorf("%w: member %d rated %q as %v", ErrNonFinite, i, ref[j].Title, r)
			}
			column[i] = r
		}
		sort.Float64s(column)
		out[ref[j].Title] = a.combine(column)
	}
	return out, nil
}

// checkAligned verifies that all vectors share the first vector's title
// sequence and that the sequence is strictly ascending.
func checkAligned(vectors []model.OrderedVector) error {
	ref := vectors[0]
	for j := 1; j < len(ref); j++ {
		if ref[j-1].Title >= ref[j].Title {
			return fmt.Errorf("%w: titles %q and %q out of order", ErrMisaligned, ref[j-1].Title, ref[j].Title)
		}
	}
	for i, v := range vectors[1:] {
		if len(v) != len(ref) {
			return fmt.Errorf("%w: vector %d has %d titles, want %d", ErrMisaligned, i+1, len(v), len(ref))
		}
		for j := range v {
			if v[j].Title != ref[j].Title {
				return fmt.Errorf("%w: vector %d position %d is %q, want %q", ErrMisaligned, i+1, j, v[j].Title, ref[j].Title)
			}
		}
	}
	return nil
}

func mean(sorted []float64) float64 {
	var sum float64
	for _, r := range sorted {
		sum += r
	}
	return sum / float64(len(sorted))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
