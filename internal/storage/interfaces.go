package storage

import (
	"context"

	"solana-autopilot/internal/domain"
)

// ProfileStore provides access to trading_profiles storage.
// Update semantics are last-write-wins; concurrent writers reload before
// writing back.
type ProfileStore interface {
	// Create adds a new profile. Returns ErrDuplicateKey if the ID exists,
	// ErrInvalidInput on a malformed profile.
	Create(ctx context.Context, p *domain.TradingProfile) error

	// Get retrieves a profile by ID. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.TradingProfile, error)

	// List retrieves all profiles ordered by created_at then ID.
	List(ctx context.Context) ([]*domain.TradingProfile, error)

	// Update replaces a profile and bumps UpdatedAt. Returns ErrNotFound
	// if not exists.
	Update(ctx context.Context, p *domain.TradingProfile) error

	// Delete removes a profile. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, id string) error
}

// ExecutionLogStore keeps the rolling execution history.
// Implementations retain at most domain.ExecutionLogCap records per
// profile and discard the oldest beyond that.
type ExecutionLogStore interface {
	// Append adds a record. Returns ErrInvalidInput when required fields
	// are missing.
	Append(ctx context.Context, r *domain.ExecutionRecord) error

	// ListByProfile retrieves records for a profile, newest first.
	// limit <= 0 means all retained records.
	ListByProfile(ctx context.Context, profileID string, limit int) ([]*domain.ExecutionRecord, error)

	// CountByProfile returns the number of retained records for a profile.
	CountByProfile(ctx context.Context, profileID string) (int, error)
}

// EventArchive is an append-only archive of normalized stream events for
// offline analysis. Archival is best-effort; the engine never blocks the
// hot path on it.
type EventArchive interface {
	// ArchiveEvent appends one event.
	ArchiveEvent(ctx context.Context, ev *domain.StreamEvent) error

	// RecentEvents retrieves the most recently observed events, newest
	// first.
	RecentEvents(ctx context.Context, limit int) ([]*domain.StreamEvent, error)
}

// ExecutionArchive keeps the unpruned execution history. Unlike
// ExecutionLogStore it never evicts.
type ExecutionArchive interface {
	// ArchiveExecution appends one record.
	ArchiveExecution(ctx context.Context, r *domain.ExecutionRecord) error
}
