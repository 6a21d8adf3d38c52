// Package dispatch turns match decisions into sized trade orders, hands
// them to an execution boundary, and records the outcome.
package dispatch

import (
	"context"
	"sync"
	"time"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/idhash"
)

// TradeOrder describes a single trade handed to the execution boundary.
type TradeOrder struct {
	ProfileID   string                // profile that produced the order
	EventID     string                // stream event that triggered it
	TokenMint   string                // token being traded
	Direction   domain.TradeDirection // buy or sell
	SolAmount   float64               // order size in SOL
	SellPercent float64               // portion of holdings to sell, 0-100 (sells only)
	Dex         string                // venue hint from the originating event
	WalletIDs   []string              // wallets eligible to fund the order
}

// TradeReceipt is returned by an Executor when an order fills.
type TradeReceipt struct {
	Signature  string // transaction signature
	ExecutedAt int64  // fill time in Unix milliseconds
}

// Executor submits trade orders. Transaction construction, signing and
// key custody live behind this boundary.
type Executor interface {
	Execute(ctx context.Context, order TradeOrder) (*TradeReceipt, error)
}

// DryRunExecutor fills every order synthetically without touching the
// chain. The signature is derived from the order identity, so replaying
// the same stream produces the same fills.
type DryRunExecutor struct {
	Latency  time.Duration // artificial delay before each fill
	FailWith error         // when set, every order fails with this error
	Clock    func() int64  // Unix ms clock, defaults to time.Now

	mu    sync.Mutex
	fills []TradeOrder
}

var _ Executor = (*DryRunExecutor)(nil)

// Execute simulates a fill.
func (e *DryRunExecutor) Execute(ctx context.Context, order TradeOrder) (*TradeReceipt, error) {
	if e.Latency > 0 {
		timer := time.NewTimer(e.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if e.FailWith != nil {
		return nil, e.FailWith
	}

	now := e.now()
	e.mu.Lock()
	e.fills = append(e.fills, order)
	e.mu.Unlock()

	return &TradeReceipt{
		Signature:  idhash.ComputeExecutionID(order.ProfileID, order.EventID, now),
		ExecutedAt: now,
	}, nil
}

// Fills returns a copy of every simulated fill so far.
func (e *DryRunExecutor) Fills() []TradeOrder {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]TradeOrder, len(e.fills))
	copy(out, e.fills)
	return out
}

func (e *DryRunExecutor) now() int64 {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UnixMilli()
}
