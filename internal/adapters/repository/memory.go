package repository

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/okian/partyrank/internal/domain/model"
)

type memParty struct {
	candidates []model.Candidate
	swipes     []model.Swipe
	consensus  map[string]float64
	rankedAt   time.Time
	createdAt  time.Time
	updatedAt  time.Time
}

// MemoryStore is an in-memory PartyStore.
type MemoryStore struct {
	mu      sync.RWMutex
	parties map[string]*memParty
	now     func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		parties: make(map[string]*memParty),
		now:     time.Now,
	}
}

func (s *MemoryStore) PutCandidates(_ context.Context, partyID string, candidates []model.Candidate) error {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		p = &memParty{createdAt: now}
		s.parties[partyID] = p
	}
	p.candidates = cloneCandidates(candidates)
	p.consensus = nil
	p.rankedAt = time.Time{}
	p.updatedAt = now
	return nil
}

func (s *MemoryStore) Party(_ context.Context, partyID string) (Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parties[partyID]
	if !ok {
		return Party{}, fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	return Party{
		ID:         partyID,
		Candidates: cloneCandidates(p.candidates),
		SwipeCount: len(p.swipes),
		CreatedAt:  p.createdAt,
		UpdatedAt:  p.updatedAt,
	}, nil
}

func (s *MemoryStore) AppendSwipe(_ context.Context, partyID string, sw model.Swipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	p.swipes = append(p.swipes, sw)
	p.updatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) Swipes(_ context.Context, partyID string) ([]model.Swipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parties[partyID]
	if !ok {
		return nil, fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	return append([]model.Swipe(nil), p.swipes...), nil
}

func (s *MemoryStore) SaveConsensus(_ context.Context, partyID string, ratings map[string]float64, rankedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parties[partyID]
	if !ok {
		return fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	p.consensus = maps.Clone(ratings)
	if p.consensus == nil {
		p.consensus = map[string]float64{}
	}
	p.rankedAt = rankedAt.UTC()
	return nil
}

func (s *MemoryStore) Consensus(_ context.Context, partyID string) (StoredConsensus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.parties[partyID]
	if !ok {
		return StoredConsensus{}, fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	if p.consensus == nil {
		return StoredConsensus{}, fmt.Errorf("party %q: %w", partyID, ErrNotRanked)
	}
	return StoredConsensus{Ratings: maps.Clone(p.consensus), RankedAt: p.rankedAt}, nil
}

func (s *MemoryStore) DeleteParty(_ context.Context, partyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.parties[partyID]; !ok {
		return fmt.Errorf("party %q: %w", partyID, ErrNotFound)
	}
	delete(s.parties, partyID)
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.parties), nil
}

func (s *MemoryStore) Close() error { return nil }
