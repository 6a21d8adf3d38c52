package postgres

import (
	"context"
	"fmt"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
)

// ExecutionLogStore implements storage.ExecutionLogStore using PostgreSQL.
// Append prunes each profile's history down to domain.ExecutionLogCap rows
// so the table stays a rolling window rather than an unbounded audit trail;
// the ClickHouse archive keeps everything.
type ExecutionLogStore struct {
	pool *Pool
}

// NewExecutionLogStore creates a new ExecutionLogStore.
func NewExecutionLogStore(pool *Pool) *ExecutionLogStore {
	return &ExecutionLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionLogStore = (*ExecutionLogStore)(nil)

// Append adds a record and prunes rows beyond the per-profile cap.
func (s *ExecutionLogStore) Append(ctx context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ID == "" || r.ProfileID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO execution_log (
			id, profile_id, event_id, token_mint, direction,
			sol_amount, sell_percent, success, error, signature, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ID,
		r.ProfileID,
		r.EventID,
		r.TokenMint,
		string(r.Direction),
		r.SolAmount,
		r.SellPercent,
		r.Success,
		r.Error,
		r.Signature,
		r.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert execution record: %w", err)
	}

	prune := `
		DELETE FROM execution_log
		WHERE profile_id = $1 AND id NOT IN (
			SELECT id FROM execution_log
			WHERE profile_id = $1
			ORDER BY executed_at DESC, id DESC
			LIMIT $2
		)
	`
	if _, err := s.pool.Exec(ctx, prune, r.ProfileID, domain.ExecutionLogCap); err != nil {
		return fmt.Errorf("prune execution log: %w", err)
	}
	return nil
}

// ListByProfile retrieves records for a profile, newest first.
// limit <= 0 returns all retained records.
func (s *ExecutionLogStore) ListByProfile(ctx context.Context, profileID string, limit int) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT id, profile_id, event_id, token_mint, direction,
		       sol_amount, sell_percent, success, error, signature, executed_at
		FROM execution_log
		WHERE profile_id = $1
		ORDER BY executed_at DESC, id DESC
	`
	args := []any{profileID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list execution records: %w", err)
	}
	defer rows.Close()

	var records []*domain.ExecutionRecord
	for rows.Next() {
		var r domain.ExecutionRecord
		var dirStr string
		if err := rows.Scan(
			&r.ID,
			&r.ProfileID,
			&r.EventID,
			&r.TokenMint,
			&dirStr,
			&r.SolAmount,
			&r.SellPercent,
			&r.Success,
			&r.Error,
			&r.Signature,
			&r.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan execution record row: %w", err)
		}
		r.Direction = domain.TradeDirection(dirStr)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution record rows: %w", err)
	}
	return records, nil
}

// CountByProfile returns the number of retained records for a profile.
func (s *ExecutionLogStore) CountByProfile(ctx context.Context, profileID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM execution_log WHERE profile_id = $1`, profileID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count execution records: %w", err)
	}
	return count, nil
}
