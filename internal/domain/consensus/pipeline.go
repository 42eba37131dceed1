// Package consensus runs the full party computation: per-member scoring,
// vector normalization, aggregation and ranking. It performs no I/O.
package consensus

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/partyrank/internal/domain/aggregate"
	"github.com/okian/partyrank/internal/domain/model"
	"github.com/okian/partyrank/internal/domain/normalize"
	"github.com/okian/partyrank/internal/domain/scoring"
	"github.com/okian/partyrank/internal/domain/types"
)

// Scorer is the part of scoring.MemberScorer the pipeline depends on.
type Scorer interface {
	ScoreWithStats(candidates []model.Candidate, swipes []model.Swipe) (model.RatingVector, scoring.Stats, error)
	BaseRating() float64
}

// Stats summarizes one pipeline run.
type Stats struct {
	Members       int
	Candidates    int
	SwipesApplied int
	SwipesIgnored int

	ScoringTime     time.Duration
	AggregationTime time.Duration
}

// Result is the outcome of one party computation.
type Result struct {
	// MemberIDs lists members in the order their vectors appear in Vectors.
	MemberIDs []string
	// Vectors holds the normalized member vectors.
	Vectors []model.OrderedVector
	// Consensus is keyed by title.
	Consensus model.Consensus
	// Ranking is ordered best first.
	Ranking []types.Entry
	// ByCandidateID re-keys Consensus by candidate id for persistence.
	ByCandidateID map[string]float64
	Stats         Stats
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithScorer sets the member scorer.
func WithScorer(s Scorer) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.scorer = s
		}
	}
}

// WithAggregator sets the aggregation policy.
func WithAggregator(a aggregate.Aggregator) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.aggregator = a
		}
	}
}

// WithConcurrency bounds how many members are scored at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// Pipeline computes a party's consensus. It is safe for concurrent use.
type Pipeline struct {
	scorer      Scorer
	aggregator  aggregate.Aggregator
	concurrency int
}

// New creates a pipeline with a default scorer, the mean aggregator and
// GOMAXPROCS-bounded member scoring.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		scorer:      scoring.NewMemberScorer(),
		aggregator:  aggregate.NewMean(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy reports the aggregation policy in use.
func (p *Pipeline) Policy() aggregate.Policy { return p.aggregator.Policy() }

// Run scores every member of logs over candidates and merges the results.
// Each member's swipes must be in recorded order. A member present in logs
// with no swipes contributes an all-baseline vector. With no members at all
// the consensus is the baseline for every candidate; with no candidates the
// result is empty.
func (p *Pipeline) Run(candidates []model.Candidate, logs map[string][]model.Swipe) (Result, error) {
	if err := model.ValidateCandidates(candidates); err != nil {
		return Result{}, fmt.Errorf("consensus: %w", err)
	}

	memberIDs := make([]string, 0, len(logs))
	for id := range logs {
		memberIDs = append(memberIDs, id)
	}
	sort.Strings(memberIDs)

	res := Result{
		MemberIDs: memberIDs,
		Stats:     Stats{Members: len(memberIDs), Candidates: len(candidates)},
	}
	if len(candidates) == 0 {
		res.Consensus = model.Consensus{}
		res.Ranking = []types.Entry{}
		res.ByCandidateID = map[string]float64{}
		return res, nil
	}

	scoreStart := time.Now()
	vectors := make([]model.RatingVector, len(memberIDs))
	memberStats := make([]scoring.Stats, len(memberIDs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, id := range memberIDs {
		g.Go(func() error {
			v, st, err := p.scorer.ScoreWithStats(candidates, logs[id])
			if err != nil {
				return fmt.Errorf("consensus: member %q: %w", id, err)
			}
			vectors[i] = v
			memberStats[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	res.Stats.ScoringTime = time.Since(scoreStart)
	for _, st := range memberStats {
		res.Stats.SwipesApplied += st.Applied
		res.Stats.SwipesIgnored += st.Ignored
	}

	titles := make([]string, len(candidates))
	idByTitle := make(map[string]string, len(candidates))
	for i := range candidates {
		titles[i] = candidates[i].Title
		idByTitle[candidates[i].Title] = candidates[i].ID
	}

	aggStart := time.Now()
	base := p.scorer.BaseRating()
	if len(memberIDs) == 0 {
		// no members: one all-baseline contribution
		vectors = []model.RatingVector{{}}
	}
	res.Vectors = normalize.Vectors(vectors, titles, base)

	c, err := p.aggregator.Aggregate(res.Vectors)
	if err != nil {
		return Result{}, fmt.Errorf("consensus: %w", err)
	}
	res.Consensus = c
	res.Ranking = aggregate.Rank(c, idByTitle)

	res.ByCandidateID = make(map[string]float64, len(c))
	for title, rating := range c {
		res.ByCandidateID[idByTitle[title]] = rating
	}
	if len(memberIDs) == 0 {
		res.Vectors = nil
	}
	res.Stats.AggregationTime = time.Since(aggStart)
	return res, nil
}

// GroupByMember splits a party's swipe log into per-member logs, keeping
// each member's swipes in their original order. Members listed in extra get
// an empty log when they have no swipes.
func GroupByMember(swipes []model.Swipe, extra ...string) map[string][]model.Swipe {
	logs := make(map[string][]model.Swipe)
	for _, id := range extra {
		logs[id] = nil
	}
	for _, sw := range swipes {
		logs[sw.MemberID] = append(logs[sw.MemberID], sw)
	}
	return logs
}
