package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okian/partyrank/internal/domain/types"
)

func newIndex(t *testing.T) *TreapIndex {
	t.Helper()
	idx := NewTreapIndex(context.Background(), WithMetricsUpdateInterval(10*time.Millisecond))
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestTreapIndex_BasicOperations(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	if idx.Has(ctx, "p1") {
		t.Fatal("expected empty index")
	}

	idx.Replace(ctx, "p1", []types.Entry{
		{CandidateID: "b", Title: "B", Rating: 1187.2},
		{CandidateID: "a", Title: "A", Rating: 1200},
	})

	if c := idx.Count(ctx); c != 1 {
		t.Errorf("expected count 1, got %d", c)
	}

	top, err := idx.TopN(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Title != "A" || top[0].Rank != 1 || top[0].CandidateID != "a" {
		t.Errorf("unexpected first entry %+v", top[0])
	}
	if top[1].Title != "B" || top[1].Rank != 2 {
		t.Errorf("unexpected second entry %+v", top[1])
	}

	e, err := idx.Rank(ctx, "p1", "B")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Rank != 2 || e.Rating != 1187.2 {
		t.Errorf("unexpected rank entry %+v", e)
	}
}

func TestTreapIndex_Ties(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	idx.Replace(ctx, "p1", []types.Entry{
		{Title: "Gamma", Rating: 1190},
		{Title: "Beta", Rating: 1200},
		{Title: "Alpha", Rating: 1200},
		{Title: "Delta", Rating: 1180},
	})

	top, err := idx.TopN(ctx, "p1", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantTitles := []string{"Alpha", "Beta", "Gamma", "Delta"}
	wantRanks := []int{1, 1, 2, 3}
	for i := range top {
		if top[i].Title != wantTitles[i] {
			t.Errorf("position %d: expected %s, got %s", i, wantTitles[i], top[i].Title)
		}
		if top[i].Rank != wantRanks[i] {
			t.Errorf("position %d: expected rank %d, got %d", i, wantRanks[i], top[i].Rank)
		}
	}

	pos, err := idx.Position(ctx, "p1", "Beta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos != 1 {
		t.Errorf("expected Beta at position 1, got %d", pos)
	}
}

func TestTreapIndex_ReplaceAndRemove(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	idx.Replace(ctx, "p1", []types.Entry{{Title: "A", Rating: 1}, {Title: "B", Rating: 2}})
	idx.Replace(ctx, "p1", []types.Entry{{Title: "C", Rating: 3}})

	top, _ := idx.TopN(ctx, "p1", 10)
	if len(top) != 1 || top[0].Title != "C" {
		t.Errorf("expected replaced ranking, got %+v", top)
	}
	if _, err := idx.Rank(ctx, "p1", "A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for replaced title, got %v", err)
	}

	// a repeated title keeps the last rating
	idx.Replace(ctx, "p2", []types.Entry{{Title: "X", Rating: 1}, {Title: "X", Rating: 5}})
	e, err := idx.Rank(ctx, "p2", "X")
	if err != nil || e.Rating != 5 {
		t.Errorf("expected X at 5, got %+v (%v)", e, err)
	}
	if top, _ := idx.TopN(ctx, "p2", 10); len(top) != 1 {
		t.Errorf("expected a single X entry, got %+v", top)
	}

	idx.Remove(ctx, "p1")
	if idx.Has(ctx, "p1") {
		t.Error("expected p1 to be removed")
	}
}

func TestTreapIndex_Errors(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	if _, err := idx.TopN(ctx, "missing", 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := idx.Rank(ctx, "missing", "A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := idx.Position(ctx, "missing", "A"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	for _, n := range []int{0, -1} {
		if _, err := idx.TopN(ctx, "missing", n); !errors.Is(err, ErrInvalidLimit) {
			t.Errorf("limit %d: expected ErrInvalidLimit, got %v", n, err)
		}
	}

	idx.Replace(ctx, "empty", nil)
	top, err := idx.TopN(ctx, "empty", 3)
	if err != nil || len(top) != 0 {
		t.Errorf("expected empty ranking, got %+v (%v)", top, err)
	}
}

func TestTreapIndex_RandomizedOrdering(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	rng := rand.New(rand.NewSource(7))

	entries := make([]types.Entry, 500)
	for i := range entries {
		entries[i] = types.Entry{
			CandidateID: fmt.Sprintf("c%d", i),
			Title:       fmt.Sprintf("title-%03d", i),
			Rating:      float64(1100 + rng.Intn(200)),
		}
	}
	idx.Replace(ctx, "p", entries)

	want := append([]types.Entry(nil), entries...)
	sort.Slice(want, func(i, j int) bool {
		return less(want[i].Rating, want[i].Title, want[j].Rating, want[j].Title)
	})

	got, err := idx.TopN(ctx, "p", len(entries))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range want {
		if got[i].Title != want[i].Title {
			t.Fatalf("position %d: expected %s, got %s", i, want[i].Title, got[i].Title)
		}
		pos, _ := idx.Position(ctx, "p", want[i].Title)
		if pos != i {
			t.Fatalf("position of %s: expected %d, got %d", want[i].Title, i, pos)
		}
		if i > 0 && got[i].Rating == got[i-1].Rating && got[i].Rank != got[i-1].Rank {
			t.Fatalf("equal ratings at %d should share a rank", i)
		}
	}
}

func TestTreapIndex_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			party := fmt.Sprintf("p%d", w%3)
			for i := 0; i < 50; i++ {
				idx.Replace(ctx, party, []types.Entry{
					{Title: "A", Rating: float64(i)},
					{Title: "B", Rating: float64(50 - i)},
				})
				if _, err := idx.TopN(ctx, party, 2); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	if c := idx.Count(ctx); c != 3 {
		t.Errorf("expected 3 parties, got %d", c)
	}
}

func BenchmarkTreapIndex_Replace(b *testing.B) {
	ctx := context.Background()
	idx := NewTreapIndex(ctx)
	defer idx.Close()

	entries := make([]types.Entry, 200)
	for i := range entries {
		entries[i] = types.Entry{Title: fmt.Sprintf("t%d", i), Rating: float64(i % 37)}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Replace(ctx, "bench", entries)
	}
}

func BenchmarkTreapIndex_TopN(b *testing.B) {
	ctx := context.Background()
	idx := NewTreapIndex(ctx)
	defer idx.Close()

	entries := make([]types.Entry, 1000)
	for i := range entries {
		entries[i] = types.Entry{Title: fmt.Sprintf("t%d", i), Rating: float64(i)}
	}
	idx.Replace(ctx, "bench", entries)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.TopN(ctx, "bench", 10)
	}
}
