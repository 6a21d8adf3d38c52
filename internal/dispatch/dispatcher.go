package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/logging"
	"solana-autopilot/internal/match"
	"solana-autopilot/internal/observability"
	"solana-autopilot/internal/storage"
)

// Notifier receives human-readable execution updates. Implementations
// must not block the caller; nil disables notifications.
type Notifier interface {
	Notify(msg string)
}

// DispatcherOptions contains configuration for creating a Dispatcher.
type DispatcherOptions struct {
	Executor     Executor
	Balances     BalanceSource // optional, defaults to empty StaticBalances
	ProfileStore storage.ProfileStore
	LogStore     storage.ExecutionLogStore
	Archive      storage.ExecutionArchive // optional, best-effort
	Notifier     Notifier                 // optional
	Limiter      *rate.Limiter            // default 5 orders/s, burst 10
	Logger       *logging.Log
	Clock        func() int64 // Unix ms, defaults to time.Now
}

// Dispatcher sizes eligible decisions into trade orders, hands them to
// the executor, and performs the success-side bookkeeping: execution log
// append plus profile counter and cooldown timestamp updates. Failed
// executions are recorded but advance neither counter nor cooldown.
type Dispatcher struct {
	executor Executor
	balances BalanceSource
	profiles storage.ProfileStore
	logStore storage.ExecutionLogStore
	archive  storage.ExecutionArchive
	notifier Notifier
	limiter  *rate.Limiter
	logger   *logging.Entry
	clock    func() int64
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	balances := opts.Balances
	if balances == nil {
		balances = StaticBalances{}
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(5), 10)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}

	return &Dispatcher{
		executor: opts.Executor,
		balances: balances,
		profiles: opts.ProfileStore,
		logStore: opts.LogStore,
		archive:  opts.Archive,
		notifier: opts.Notifier,
		limiter:  limiter,
		logger:   logger.WithComponent("dispatch"),
		clock:    clock,
	}
}

// Dispatch executes one eligible match decision. Ineligible decisions
// are a no-op. Execution failures are recorded and reported through logs
// and metrics, not through the error return; the error covers only
// dispatch machinery problems such as context cancellation or a failed
// balance lookup.
//
// The decision may have been computed against a cached profile snapshot,
// so the profile is reloaded and its gates re-checked before any order
// reaches the executor. A capped or cooling-down profile never trades on
// a stale decision.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *domain.StreamEvent, dec match.Decision) error {
	if !dec.Eligible || dec.Profile == nil {
		return nil
	}

	if !d.limiter.Allow() {
		observability.RecordRateLimitWait()
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	p, skip, err := d.reverify(ctx, dec.Profile.ID)
	if err != nil {
		return err
	}
	if skip == "" {
		var order TradeOrder
		order, skip, err = d.buildOrder(ctx, ev, p)
		if err != nil {
			return err
		}
		if skip == "" {
			return d.execute(ctx, ev, p, order)
		}
	}

	d.logger.WithFields(logging.Fields{
		"profile_id": dec.Profile.ID,
		"event_id":   ev.ID,
		"reason":     skip,
	}).Warn("order skipped")
	observability.RecordExecutionOutcome("skipped", 0)
	return nil
}

// reverify reloads the profile and re-runs the bookkeeping gates against
// fresh values. A non-empty skip reason means the decision went stale.
func (d *Dispatcher) reverify(ctx context.Context, profileID string) (*domain.TradingProfile, string, error) {
	p, err := d.profiles.Get(ctx, profileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "profile deleted", nil
		}
		return nil, "", fmt.Errorf("reload profile: %w", err)
	}

	switch {
	case !p.Active:
		return nil, "profile deactivated", nil
	case p.AtExecutionCap():
		return nil, "execution cap reached", nil
	case p.InCooldown(d.clock()):
		return nil, "profile in cooldown", nil
	}
	return p, "", nil
}

// execute submits the order and performs outcome bookkeeping.
func (d *Dispatcher) execute(ctx context.Context, ev *domain.StreamEvent, p *domain.TradingProfile, order TradeOrder) error {
	observability.RecordOrderDispatched(string(p.Kind), order.Direction.String(), order.SolAmount)

	started := time.Now()
	receipt, execErr := d.executor.Execute(ctx, order)
	elapsed := time.Since(started).Seconds()

	record := &domain.ExecutionRecord{
		ID:          uuid.New().String(),
		ProfileID:   p.ID,
		EventID:     ev.ID,
		TokenMint:   order.TokenMint,
		Direction:   order.Direction,
		SolAmount:   order.SolAmount,
		SellPercent: order.SellPercent,
		ExecutedAt:  d.clock(),
	}

	if execErr != nil {
		record.Error = execErr.Error()
		d.persistRecord(ctx, record)
		observability.RecordExecutionOutcome("failure", elapsed)
		d.logger.WithError(execErr).WithFields(logging.Fields{
			"profile_id": p.ID,
			"event_id":   ev.ID,
			"token_mint": order.TokenMint,
			"direction":  order.Direction.String(),
		}).Error("execution failed")
		d.notify(fmt.Sprintf("FAILED %s %s %.4f SOL (%s): %v",
			order.Direction, order.TokenMint, order.SolAmount, p.Name, execErr))
		return nil
	}

	record.Success = true
	record.Signature = receipt.Signature
	if receipt.ExecutedAt > 0 {
		record.ExecutedAt = receipt.ExecutedAt
	}

	if raced := d.advanceBookkeeping(ctx, p.ID, record.ExecutedAt); raced {
		record.Error = "raced"
	}
	d.persistRecord(ctx, record)

	observability.RecordExecutionOutcome("success", elapsed)
	d.logger.WithFields(logging.Fields{
		"profile_id": p.ID,
		"event_id":   ev.ID,
		"token_mint": order.TokenMint,
		"direction":  order.Direction.String(),
		"sol_amount": order.SolAmount,
		"signature":  record.Signature,
	}).Info("execution complete")
	d.notify(fmt.Sprintf("%s %s %.4f SOL (%s)",
		order.Direction, order.TokenMint, order.SolAmount, p.Name))
	return nil
}

// buildOrder sizes the order for the profile kind. A non-empty skip
// reason means no order should be placed for this decision.
func (d *Dispatcher) buildOrder(ctx context.Context, ev *domain.StreamEvent, p *domain.TradingProfile) (TradeOrder, string, error) {
	order := TradeOrder{
		ProfileID: p.ID,
		EventID:   ev.ID,
		TokenMint: ev.TokenMint,
		Dex:       p.Dex,
		WalletIDs: append([]string(nil), p.WalletIDs...),
	}
	if order.Dex == "" {
		order.Dex = ev.Platform
	}

	switch p.Kind {
	case domain.ProfileSniper:
		order.Direction = domain.DirectionBuy
		var balance float64
		if p.Sniper != nil && p.Sniper.SizeMode == domain.SizePercentage {
			var err error
			balance, err = d.balances.FirstWalletBalance(ctx, p.WalletIDs)
			if err != nil {
				return order, "", fmt.Errorf("first wallet balance: %w", err)
			}
		}
		order.SolAmount = SniperSize(p, balance)
	case domain.ProfileCopy:
		if p.Copy == nil {
			return order, "missing copy config", nil
		}
		order.SolAmount, order.SellPercent, order.Direction = CopySize(p.Copy, ev)
	default:
		return order, "unknown profile kind", nil
	}

	if order.SolAmount <= 0 {
		return order, "zero order size", nil
	}
	return order, "", nil
}

// advanceBookkeeping reloads the profile and advances ExecutionCount and
// LastExecutedAt. The reload re-checks cap and cooldown against fresh
// values: a concurrent dispatch may have advanced the profile after this
// order was matched. Returns true when the fresh profile no longer
// permits the execution, in which case the counters are left alone.
func (d *Dispatcher) advanceBookkeeping(ctx context.Context, profileID string, executedAt int64) bool {
	fresh, err := d.profiles.Get(ctx, profileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			d.logger.WithField("profile_id", profileID).Warn("profile deleted mid-dispatch, bookkeeping dropped")
			return true
		}
		d.logger.WithError(err).WithField("profile_id", profileID).Error("profile reload failed")
		return true
	}

	if fresh.AtExecutionCap() || fresh.InCooldown(executedAt) {
		d.logger.WithFields(logging.Fields{
			"profile_id":      profileID,
			"execution_count": fresh.ExecutionCount,
		}).Warn("profile advanced by concurrent dispatch")
		return true
	}

	fresh.ExecutionCount++
	fresh.LastExecutedAt = &executedAt
	if err := d.profiles.Update(ctx, fresh); err != nil {
		d.logger.WithError(err).WithField("profile_id", profileID).Error("bookkeeping update failed")
		return true
	}
	return false
}

// persistRecord appends to the rolling log and the archive. Both writes
// are best-effort: a storage failure never fails the dispatch.
func (d *Dispatcher) persistRecord(ctx context.Context, r *domain.ExecutionRecord) {
	if err := d.logStore.Append(ctx, r); err != nil {
		d.logger.WithError(err).WithField("record_id", r.ID).Error("execution log append failed")
	}
	if d.archive != nil {
		if err := d.archive.ArchiveExecution(ctx, r); err != nil {
			d.logger.WithError(err).WithField("record_id", r.ID).Warn("execution archive failed")
		}
	}
}

func (d *Dispatcher) notify(msg string) {
	if d.notifier == nil {
		return
	}
	d.notifier.Notify(msg)
}
