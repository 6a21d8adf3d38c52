package clickhouse

import (
	"context"
	"fmt"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
)

// ExecutionArchive implements storage.ExecutionArchive using ClickHouse.
// It is the unpruned counterpart of the Postgres execution log.
type ExecutionArchive struct {
	conn *Conn
}

// NewExecutionArchive creates a new ExecutionArchive.
func NewExecutionArchive(conn *Conn) *ExecutionArchive {
	return &ExecutionArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.ExecutionArchive = (*ExecutionArchive)(nil)

// ArchiveExecution appends one record.
func (a *ExecutionArchive) ArchiveExecution(ctx context.Context, r *domain.ExecutionRecord) error {
	if r == nil || r.ID == "" || r.ProfileID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO execution_archive (
			id, profile_id, event_id, token_mint, direction,
			sol_amount, sell_percent, success, error, signature, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var success uint8
	if r.Success {
		success = 1
	}

	err := a.conn.Exec(ctx, query,
		r.ID,
		r.ProfileID,
		r.EventID,
		r.TokenMint,
		string(r.Direction),
		r.SolAmount,
		r.SellPercent,
		success,
		r.Error,
		r.Signature,
		r.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution record: %w", err)
	}
	return nil
}
