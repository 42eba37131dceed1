package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/partyrank/internal/domain/aggregate"
	"github.com/okian/partyrank/internal/domain/types"
	"github.com/okian/partyrank/pkg/metrics"
)

// Treap-based, in-memory ranking index, one treap per party.
//
// Ordering: rating DESC, then title ASC (byte-wise). "less" means ranks
// earlier, so in-order traversal yields the ranking from best to worst.

// record stores what the index knows about one title.
type record struct {
	candidateID string
	rating      float64
	rank        int
}

type node struct {
	title  string
	rating float64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aRating float64, aTitle string, bRating float64, bTitle string) bool {
	return aggregate.Less(aRating, aTitle, bRating, bTitle)
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, title string, rating float64) *node {
	if n == nil {
		return &node{title: title, rating: rating, prio: rand.Uint64(), size: 1}
	}
	if less(rating, title, n.rating, n.title) {
		n.left = insert(n.left, title, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, title, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, title string, rating float64) *node {
	if n == nil {
		return nil
	}
	if rating == n.rating && title == n.title {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, title, rating)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, title, rating)
		}
	} else if less(rating, title, n.rating, n.title) {
		n.left = deleteNode(n.left, title, rating)
	} else {
		n.right = deleteNode(n.right, title, rating)
	}
	fix(n)
	return n
}

// position returns the 0-based in-order index of (title, rating).
func position(n *node, title string, rating float64) int {
	pos := 0
	for n != nil {
		switch {
		case rating == n.rating && title == n.title:
			return pos + nsize(n.left)
		case less(rating, title, n.rating, n.title):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return -1
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, records map[string]record, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, records, out)
	if len(*out) < limit {
		if rec, ok := records[n.title]; ok {
			*out = append(*out, types.Entry{Rank: rec.rank, CandidateID: rec.candidateID, Title: n.title, Rating: rec.rating})
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

type board struct {
	root    *node
	byTitle map[string]record
}

// TreapIndex serves ranked reads of each party's consensus.
type TreapIndex struct {
	mu                    sync.RWMutex
	boards                map[string]*board
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapIndex constructs an empty index and starts its metrics updater.
func NewTreapIndex(ctx context.Context, opts ...Option) *TreapIndex {
	s := &TreapIndex{
		boards:                make(map[string]*board),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Replace swaps in a party's ranking. entries need not be ordered; ranks
// are recomputed from the index order.
func (s *TreapIndex) Replace(_ context.Context, partyID string, entries []types.Entry) {
	b := &board{byTitle: make(map[string]record, len(entries))}
	for _, e := range entries {
		if old, ok := b.byTitle[e.Title]; ok {
			b.root = deleteNode(b.root, e.Title, old.rating)
		}
		b.byTitle[e.Title] = record{candidateID: e.CandidateID, rating: e.Rating}
		b.root = insert(b.root, e.Title, e.Rating)
	}

	ordered := make([]types.Entry, 0, len(b.byTitle))
	collectTopN(b.root, len(b.byTitle), b.byTitle, &ordered)
	aggregate.AssignRanks(ordered)
	for _, e := range ordered {
		rec := b.byTitle[e.Title]
		rec.rank = e.Rank
		b.byTitle[e.Title] = rec
	}

	s.mu.Lock()
	s.boards[partyID] = b
	s.mu.Unlock()
}

// Remove drops a party's ranking.
func (s *TreapIndex) Remove(_ context.Context, partyID string) {
	s.mu.Lock()
	delete(s.boards, partyID)
	s.mu.Unlock()
}

// Has reports whether a ranking is indexed for partyID.
func (s *TreapIndex) Has(_ context.Context, partyID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.boards[partyID]
	return ok
}

// TopN returns up to n entries of the party's ranking, best first.
func (s *TreapIndex) TopN(_ context.Context, partyID string, n int) ([]types.Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[partyID]
	if !ok {
		return nil, fmt.Errorf("ranking for party %q: %w", partyID, ErrNotFound)
	}
	out := make([]types.Entry, 0, min(n, len(b.byTitle)))
	collectTopN(b.root, n, b.byTitle, &out)
	return out, nil
}

// Rank returns one title's entry in the party's ranking.
func (s *TreapIndex) Rank(_ context.Context, partyID, title string) (types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[partyID]
	if !ok {
		return types.Entry{}, fmt.Errorf("ranking for party %q: %w", partyID, ErrNotFound)
	}
	rec, ok := b.byTitle[title]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, fmt.Errorf("title %q in party %q: %w", title, partyID, ErrNotFound)
	}
	return types.Entry{Rank: rec.rank, CandidateID: rec.candidateID, Title: title, Rating: rec.rating}, nil
}

// Position returns the 0-based ordinal of title in the party's ranking,
// ignoring shared ranks.
func (s *TreapIndex) Position(_ context.Context, partyID, title string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.boards[partyID]
	if !ok {
		return 0, fmt.Errorf("ranking for party %q: %w", partyID, ErrNotFound)
	}
	rec, ok := b.byTitle[title]
	if !ok {
		return 0, fmt.Errorf("title %q in party %q: %w", title, partyID, ErrNotFound)
	}
	return position(b.root, title, rec.rating), nil
}

// Count returns the number of indexed parties.
func (s *TreapIndex) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.boards)
}

// Close stops the metrics updater.
func (s *TreapIndex) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *TreapIndex) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateRankedParties(s.Count(ctx))
			}
		}
	}()
}
