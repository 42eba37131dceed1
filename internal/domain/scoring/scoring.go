// Package scoring turns one member's swipes into a per-candidate Elo rating vector.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/partyrank/internal/domain/model"
)

// Default scoring configuration constants.
const (
	BaseRating = 1200.0 // rating of every candidate before any swipe
	KFactor    = 32.0   // Elo step size
)

// Option applies a configuration option to the MemberScorer.
type Option func(*MemberScorer)

// WithBaseRating sets the starting (and imputed) rating. Non-finite values are ignored.
func WithBaseRating(rating float64) Option {
	return func(s *MemberScorer) {
		if !math.IsNaN(rating) && !math.IsInf(rating, 0) {
			s.baseRating = rating
		}
	}
}

// WithKFactor sets the Elo step size. Only positive finite values are accepted.
func WithKFactor(k float64) Option {
	return func(s *MemberScorer) {
		if k > 0 && !math.IsInf(k, 1) {
			s.kFactor = k
		}
	}
}

// Scorer computes one member's rating vector over a fixed candidate set.
type Scorer interface {
	// Score replays swipes in the given order and returns a vector keyed by
	// candidate title with exactly one entry per candidate.
	Score(candidates []model.Candidate, swipes []model.Swipe) (model.RatingVector, error)
}

// Stats describes how a member's swipe log was consumed.
type Stats struct {
	Applied int // swipes that moved a rating
	Ignored int // swipes referencing candidates outside the set
}

// tally counts decisions per candidate. The Elo update uses a fixed prior, so
// a candidate's final rating only depends on these counts.
type tally struct {
	accepts int
	rejects int
}

// MemberScorer implements Scorer with a fixed-prior Elo update:
//
//	rating += K * (actual - expected)
//
// where expected is the candidate's prior acceptance probability, never the
// candidate's current rating. MemberScorer holds no mutable state and is safe
// for concurrent use.
type MemberScorer struct {
	baseRating float64
	kFactor    float64
}

// NewMemberScorer creates a scorer with configuration options.
func NewMemberScorer(opts ...Option) *MemberScorer {
	s := &MemberScorer{
		baseRating: BaseRating,
		kFactor:    KFactor,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// BaseRating returns the rating assigned to candidates without evidence.
func (s *MemberScorer) BaseRating() float64 { return s.baseRating }

// Score implements Scorer.
func (s *MemberScorer) Score(candidates []model.Candidate, swipes []model.Swipe) (model.RatingVector, error) {
	v, _, err := s.ScoreWithStats(candidates, swipes)
	return v, err
}

// ScoreWithStats is Score that also reports how many swipes were applied or ignored.
func (s *MemberScorer) ScoreWithStats(candidates []model.Candidate, swipes []model.Swipe) (model.RatingVector, Stats, error) {
	if err := model.ValidateCandidates(candidates); err != nil {
		return nil, Stats{}, fmt.Errorf("score member: %w", err)
	}

	index := make(map[string]int, len(candidates))
	for i := range candidates {
		index[candidates[i].ID] = i
	}

	var stats Stats
	tallies := make([]tally, len(candidates))
	for i := range swipes {
		sw := &swipes[i]
		idx, ok := index[sw.CandidateID]
		if !ok {
			// stale or out-of-scope swipe
			stats.Ignored++
			continue
		}
		outcome, ok := sw.Direction.Outcome()
		if !ok {
			verr := model.NewValidationError("swipe", nil)
			verr.AddError("swipe %d by member %q on %q has unknown direction %q", i, sw.MemberID, sw.CandidateID, sw.Direction)
			return nil, stats, fmt.Errorf("score member: %w", verr)
		}
		if outcome == 1 {
			tallies[idx].accepts++
		} else {
			tallies[idx].rejects++
		}
		stats.Applied++
	}

	out := make(model.RatingVector, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		r := s.rating(c.ExpectedScore, tallies[i])
		if math.IsNaN(r) || math.IsInf(r, 0) {
			verr := model.NewValidationError("rating", model.ErrNonFinite)
			verr.AddError("candidate %q produced rating %v", c.ID, r)
			return nil, stats, fmt.Errorf("score member: %w", verr)
		}
		out[c.Title] = r
	}

	return out, stats, nil
}

// rating applies every accumulated delta to the base rating. Accept and
// reject deltas are each applied once, scaled by their count, so the result
// is identical for every ordering of the same swipes.
func (s *MemberScorer) rating(expected float64, t tally) float64 {
	r := s.baseRating
	if t.accepts > 0 {
		r += s.kFactor * float64(t.accepts) * (1 - expected)
	}
	if t.rejects > 0 {
		r += s.kFactor * float64(t.rejects) * (0 - expected)
	}
	return r
}
