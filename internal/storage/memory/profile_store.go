package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
)

// ProfileStore is an in-memory implementation of storage.ProfileStore.
type ProfileStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradingProfile // keyed by profile ID
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		data: make(map[string]*domain.TradingProfile),
	}
}

func validateProfile(p *domain.TradingProfile) error {
	if p == nil || p.ID == "" {
		return storage.ErrInvalidInput
	}
	if !p.Kind.IsValid() {
		return storage.ErrInvalidInput
	}
	if p.Kind == domain.ProfileSniper && p.Sniper == nil {
		return storage.ErrInvalidInput
	}
	if p.Kind == domain.ProfileCopy && p.Copy == nil {
		return storage.ErrInvalidInput
	}
	return nil
}

// Create adds a new profile. Returns ErrDuplicateKey if the ID exists.
func (s *ProfileStore) Create(_ context.Context, p *domain.TradingProfile) error {
	if err := validateProfile(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[p.ID] = p.Clone()
	return nil
}

// Get retrieves a profile by ID. Returns ErrNotFound if not exists.
func (s *ProfileStore) Get(_ context.Context, id string) (*domain.TradingProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// List retrieves all profiles ordered by created_at then ID.
func (s *ProfileStore) List(_ context.Context) ([]*domain.TradingProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradingProfile, 0, len(s.data))
	for _, p := range s.data {
		result = append(result, p.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Update replaces a profile and bumps UpdatedAt. Last write wins.
func (s *ProfileStore) Update(_ context.Context, p *domain.TradingProfile) error {
	if err := validateProfile(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; !exists {
		return storage.ErrNotFound
	}

	cp := p.Clone()
	cp.UpdatedAt = time.Now().UnixMilli()
	s.data[p.ID] = cp
	p.UpdatedAt = cp.UpdatedAt
	return nil
}

// Delete removes a profile. Returns ErrNotFound if not exists.
func (s *ProfileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.ProfileStore = (*ProfileStore)(nil)
