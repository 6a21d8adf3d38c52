package memory

import (
	"context"
	"sync"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
)

// ExecutionLogStore is an in-memory implementation of
// storage.ExecutionLogStore. Each profile keeps a rolling window of the
// most recent domain.ExecutionLogCap records.
type ExecutionLogStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.ExecutionRecord // keyed by profile ID, oldest first
}

// NewExecutionLogStore creates a new in-memory execution log store.
func NewExecutionLogStore() *ExecutionLogStore {
	return &ExecutionLogStore{
		data: make(map[string][]*domain.ExecutionRecord),
	}
}

// Append adds a record, evicting the oldest once the per-profile cap is
// reached.
func (s *ExecutionLogStore) Append(_ context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ID == "" || r.ProfileID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	log := append(s.data[r.ProfileID], &cp)
	if len(log) > domain.ExecutionLogCap {
		log = log[len(log)-domain.ExecutionLogCap:]
	}
	s.data[r.ProfileID] = log
	return nil
}

// ListByProfile retrieves records for a profile, newest first.
// limit <= 0 returns all retained records.
func (s *ExecutionLogStore) ListByProfile(_ context.Context, profileID string, limit int) ([]*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.data[profileID]
	n := len(log)
	if limit > 0 && limit < n {
		n = limit
	}

	result := make([]*domain.ExecutionRecord, 0, n)
	for i := len(log) - 1; i >= 0 && len(result) < n; i-- {
		cp := *log[i]
		result = append(result, &cp)
	}
	return result, nil
}

// CountByProfile returns the number of retained records for a profile.
func (s *ExecutionLogStore) CountByProfile(_ context.Context, profileID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[profileID]), nil
}

// Verify interface compliance at compile time.
var _ storage.ExecutionLogStore = (*ExecutionLogStore)(nil)
