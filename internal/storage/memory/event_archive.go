package memory

import (
	"context"
	"sync"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
)

// defaultArchiveCap bounds the in-memory archive so a long-running engine
// does not grow without limit.
const defaultArchiveCap = 10_000

// EventArchive is an in-memory implementation of storage.EventArchive.
type EventArchive struct {
	mu     sync.RWMutex
	events []*domain.StreamEvent // oldest first
	cap    int
}

// NewEventArchive creates an in-memory archive retaining at most maxEvents
// entries. maxEvents <= 0 uses the default cap.
func NewEventArchive(maxEvents int) *EventArchive {
	if maxEvents <= 0 {
		maxEvents = defaultArchiveCap
	}
	return &EventArchive{cap: maxEvents}
}

// ArchiveEvent appends one event, evicting the oldest past the cap.
func (a *EventArchive) ArchiveEvent(_ context.Context, ev *domain.StreamEvent) error {
	if ev == nil || ev.ID == "" {
		return storage.ErrInvalidInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cp := *ev
	a.events = append(a.events, &cp)
	if len(a.events) > a.cap {
		a.events = a.events[len(a.events)-a.cap:]
	}
	return nil
}

// RecentEvents retrieves the most recent events, newest first.
func (a *EventArchive) RecentEvents(_ context.Context, limit int) ([]*domain.StreamEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := len(a.events)
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]*domain.StreamEvent, 0, n)
	for i := len(a.events) - 1; i >= 0 && len(result) < n; i-- {
		cp := *a.events[i]
		result = append(result, &cp)
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.EventArchive = (*EventArchive)(nil)
