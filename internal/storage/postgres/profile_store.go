package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
)

// ProfileStore implements storage.ProfileStore using PostgreSQL.
// Strategy configs are stored as JSONB so new filter fields never need a
// schema change.
type ProfileStore struct {
	pool *Pool
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(pool *Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProfileStore = (*ProfileStore)(nil)

const profileColumns = `
	id, name, kind, active, sniper_config, copy_config,
	cooldown_seconds, cooldown_minutes, max_executions,
	execution_count, last_executed_at, dex, wallet_ids,
	created_at, updated_at
`

// Create adds a new profile. Returns ErrDuplicateKey if the ID exists.
func (s *ProfileStore) Create(ctx context.Context, p *domain.TradingProfile) error {
	sniperJSON, copyJSON, err := marshalConfigs(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trading_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = s.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		string(p.Kind),
		p.Active,
		sniperJSON,
		copyJSON,
		p.CooldownSeconds,
		p.CooldownMinutes,
		p.MaxExecutions,
		p.ExecutionCount,
		p.LastExecutedAt,
		p.Dex,
		p.WalletIDs,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Get retrieves a profile by ID. Returns ErrNotFound if not exists.
func (s *ProfileStore) Get(ctx context.Context, id string) (*domain.TradingProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM trading_profiles WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanProfile(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get profile by id: %w", err)
	}
	return p, nil
}

// List retrieves all profiles ordered by created_at then ID.
func (s *ProfileStore) List(ctx context.Context) ([]*domain.TradingProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM trading_profiles ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*domain.TradingProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}
	return profiles, nil
}

// Update replaces a profile and bumps updated_at. Last write wins.
func (s *ProfileStore) Update(ctx context.Context, p *domain.TradingProfile) error {
	sniperJSON, copyJSON, err := marshalConfigs(p)
	if err != nil {
		return err
	}

	query := `
		UPDATE trading_profiles SET
			name = $2, kind = $3, active = $4, sniper_config = $5,
			copy_config = $6, cooldown_seconds = $7, cooldown_minutes = $8,
			max_executions = $9, execution_count = $10, last_executed_at = $11,
			dex = $12, wallet_ids = $13, updated_at = $14
		WHERE id = $1
	`

	updatedAt := time.Now().UnixMilli()
	tag, err := s.pool.Exec(ctx, query,
		p.ID,
		p.Name,
		string(p.Kind),
		p.Active,
		sniperJSON,
		copyJSON,
		p.CooldownSeconds,
		p.CooldownMinutes,
		p.MaxExecutions,
		p.ExecutionCount,
		p.LastExecutedAt,
		p.Dex,
		p.WalletIDs,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	p.UpdatedAt = updatedAt
	return nil
}

// Delete removes a profile. Returns ErrNotFound if not exists.
func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trading_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func marshalConfigs(p *domain.TradingProfile) (sniperJSON, copyJSON []byte, err error) {
	if p == nil || p.ID == "" || !p.Kind.IsValid() {
		return nil, nil, storage.ErrInvalidInput
	}
	if p.Kind == domain.ProfileSniper && p.Sniper == nil {
		return nil, nil, storage.ErrInvalidInput
	}
	if p.Kind == domain.ProfileCopy && p.Copy == nil {
		return nil, nil, storage.ErrInvalidInput
	}

	if p.Sniper != nil {
		sniperJSON, err = json.Marshal(p.Sniper)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal sniper config: %w", err)
		}
	}
	if p.Copy != nil {
		copyJSON, err = json.Marshal(p.Copy)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal copy config: %w", err)
		}
	}
	return sniperJSON, copyJSON, nil
}

// scanProfile scans a single row into a TradingProfile.
func scanProfile(row pgx.Row) (*domain.TradingProfile, error) {
	var p domain.TradingProfile
	var kindStr string
	var sniperJSON, copyJSON []byte

	err := row.Scan(
		&p.ID,
		&p.Name,
		&kindStr,
		&p.Active,
		&sniperJSON,
		&copyJSON,
		&p.CooldownSeconds,
		&p.CooldownMinutes,
		&p.MaxExecutions,
		&p.ExecutionCount,
		&p.LastExecutedAt,
		&p.Dex,
		&p.WalletIDs,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Kind = domain.ProfileKind(kindStr)
	if len(sniperJSON) > 0 {
		p.Sniper = &domain.SniperConfig{}
		if err := json.Unmarshal(sniperJSON, p.Sniper); err != nil {
			return nil, fmt.Errorf("unmarshal sniper config: %w", err)
		}
	}
	if len(copyJSON) > 0 {
		p.Copy = &domain.CopyConfig{}
		if err := json.Unmarshal(copyJSON, p.Copy); err != nil {
			return nil, fmt.Errorf("unmarshal copy config: %w", err)
		}
	}
	return &p, nil
}
