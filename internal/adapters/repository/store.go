// Package repository persists parties (candidate sets, swipe logs and
// computed consensus) and indexes consensus rankings for fast reads.
package repository

import (
	"context"
	"time"

	"github.com/okian/partyrank/internal/domain/model"
)

// Party is a party's registered state.
type Party struct {
	ID         string            `json:"id"`
	Candidates []model.Candidate `json:"candidates"`
	SwipeCount int               `json:"swipe_count"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// StoredConsensus is the last consensus computed for a party, keyed by
// candidate id.
type StoredConsensus struct {
	Ratings  map[string]float64
	RankedAt time.Time
}

// PartyStore provides read/write access to party state.
type PartyStore interface {
	// PutCandidates creates the party if needed and replaces its candidate
	// set. Recorded swipes are kept; any stored consensus is discarded.
	PutCandidates(ctx context.Context, partyID string, candidates []model.Candidate) error

	// Party returns the party's candidates and counters.
	// Returns ErrNotFound if the party is unknown.
	Party(ctx context.Context, partyID string) (Party, error)

	// AppendSwipe adds a swipe to the end of the party's log.
	// Returns ErrNotFound if the party is unknown.
	AppendSwipe(ctx context.Context, partyID string, s model.Swipe) error

	// Swipes returns the party's swipes in recorded order.
	Swipes(ctx context.Context, partyID string) ([]model.Swipe, error)

	// SaveConsensus stores ratings keyed by candidate id.
	SaveConsensus(ctx context.Context, partyID string, ratings map[string]float64, rankedAt time.Time) error

	// Consensus returns the stored consensus.
	// Returns ErrNotFound for unknown parties and ErrNotRanked when none was saved.
	Consensus(ctx context.Context, partyID string) (StoredConsensus, error)

	// DeleteParty removes a party and everything recorded for it.
	DeleteParty(ctx context.Context, partyID string) error

	// Count returns the number of parties.
	Count(ctx context.Context) (int, error)

	Close() error
}

func cloneCandidates(in []model.Candidate) []model.Candidate {
	out := make([]model.Candidate, len(in))
	for i, c := range in {
		c.Genres = append([]string(nil), c.Genres...)
		out[i] = c
	}
	return out
}
