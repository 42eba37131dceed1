// Package dedupe tracks which (party, member, candidate) swipes have been
// recorded so a member's repeated swipe on the same candidate is dropped.
package dedupe

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Deduper records seen swipe keys to ensure at-most-once recording.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key so the swipe may be recorded again. Used when a
	// swipe was marked as seen but the store rejected it.
	Unrecord(ctx context.Context, key string)

	// ForgetParty drops every key belonging to partyID.
	ForgetParty(ctx context.Context, partyID string)

	Size() int64
}

const sep = "\x00"

// Key builds the dedupe key for one member's swipe on one candidate.
func Key(partyID, memberID, candidateID string) string {
	return partyID + sep + memberID + sep + candidateID
}

// inMemoryDeduper keeps keys in insertion order. When bounded (maxSize > 0)
// the oldest key is evicted once the set is full; otherwise it grows freely.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 100000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushBack(key)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remove(key)
}

func (d *inMemoryDeduper) ForgetParty(_ context.Context, partyID string) {
	prefix := partyID + sep
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.seen {
		if strings.HasPrefix(key, prefix) {
			d.remove(key)
		}
	}
}

// remove must be called with d.mu held.
func (d *inMemoryDeduper) remove(key string) {
	el, ok := d.seen[key]
	if !ok {
		return
	}
	d.order.Remove(el)
	delete(d.seen, key)
	d.size.Add(-1)
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.remove(front.Value.(string))
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
