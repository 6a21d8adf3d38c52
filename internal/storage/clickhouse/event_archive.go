package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
)

// EventArchive implements storage.EventArchive using ClickHouse.
// Inserts are plain appends; MergeTree does not enforce uniqueness and
// duplicate event IDs are acceptable in the archive.
type EventArchive struct {
	conn *Conn
}

// NewEventArchive creates a new EventArchive.
func NewEventArchive(conn *Conn) *EventArchive {
	return &EventArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.EventArchive = (*EventArchive)(nil)

// ArchiveEvent appends one event.
func (a *EventArchive) ArchiveEvent(ctx context.Context, ev *domain.StreamEvent) error {
	if ev == nil || ev.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO stream_events (
			event_id, kind, token_mint, signer, platform, direction,
			sol_amount, token_amount, avg_price_sol, sell_percent,
			market_cap_usd, slot, signature, observed_at, raw
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := a.conn.Exec(ctx, query,
		ev.ID,
		string(ev.Kind),
		ev.TokenMint,
		ev.Signer,
		ev.Platform,
		string(ev.Direction),
		ev.SolAmount,
		ev.TokenAmount,
		ev.AvgPriceSOL,
		ev.SellPercent,
		ev.MarketCapUSD,
		ev.Slot,
		ev.Signature,
		ev.ObservedAt,
		string(ev.Raw),
	)
	if err != nil {
		return fmt.Errorf("insert stream event: %w", err)
	}
	return nil
}

// RecentEvents retrieves the most recently observed events, newest first.
func (a *EventArchive) RecentEvents(ctx context.Context, limit int) ([]*domain.StreamEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT event_id, kind, token_mint, signer, platform, direction,
		       sol_amount, token_amount, avg_price_sol, sell_percent,
		       market_cap_usd, slot, signature, observed_at, raw
		FROM stream_events
		ORDER BY observed_at DESC, event_id DESC
		LIMIT ?
	`

	rows, err := a.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var events []*domain.StreamEvent
	for rows.Next() {
		var ev domain.StreamEvent
		var kindStr, dirStr, raw string
		if err := rows.Scan(
			&ev.ID,
			&kindStr,
			&ev.TokenMint,
			&ev.Signer,
			&ev.Platform,
			&dirStr,
			&ev.SolAmount,
			&ev.TokenAmount,
			&ev.AvgPriceSOL,
			&ev.SellPercent,
			&ev.MarketCapUSD,
			&ev.Slot,
			&ev.Signature,
			&ev.ObservedAt,
			&raw,
		); err != nil {
			return nil, fmt.Errorf("scan stream event row: %w", err)
		}
		ev.Kind = domain.EventKind(kindStr)
		ev.Direction = domain.TradeDirection(dirStr)
		if raw != "" {
			ev.Raw = json.RawMessage(raw)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream event rows: %w", err)
	}
	return events, nil
}
