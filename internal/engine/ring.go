package engine

import (
	"sync"

	"solana-autopilot/internal/domain"
)

// dedupCap bounds how many (profile, event) pairs the engine remembers
// for dispatch deduplication.
const dedupCap = 4096

// dedupSet is a fixed-capacity seen-set that evicts its oldest entry
// once full.
type dedupSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
}

func newDedupSet(capacity int) *dedupSet {
	return &dedupSet{
		seen: make(map[string]struct{}, capacity),
		ring: make([]string, capacity),
	}
}

// add records the key and reports whether it was unseen.
func (d *dedupSet) add(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return false
	}
	if old := d.ring[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.ring[d.next] = key
	d.next = (d.next + 1) % len(d.ring)
	d.seen[key] = struct{}{}
	return true
}

// eventRing keeps the last N normalized events for the recents view.
type eventRing struct {
	mu   sync.Mutex
	buf  []*domain.StreamEvent
	next int
	full bool
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]*domain.StreamEvent, capacity)}
}

func (r *eventRing) add(ev *domain.StreamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// list returns retained events newest first. limit <= 0 returns all.
func (r *eventRing) list(limit int) []*domain.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*domain.StreamEvent, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
