// Package engine wires the provider streams, the matcher and the
// dispatcher into one running trading loop.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"solana-autopilot/internal/dispatch"
	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/logging"
	"solana-autopilot/internal/match"
	"solana-autopilot/internal/observability"
	"solana-autopilot/internal/protocol"
	"solana-autopilot/internal/storage"
	"solana-autopilot/internal/stream"
)

// Connection names, also used as metric labels.
const (
	connEvents = "events"
	connCopy   = "copy"
	connTokens = "tokens"
)

// lifecycleChannels are the provider channels the events feed always
// subscribes to.
var lifecycleChannels = []string{"deploy", "migration"}

// Config holds the engine-level knobs.
type Config struct {
	BaseURL         string        // provider base URL, converted to the stream endpoint
	APIKey          string        // provider API key
	SolPriceHint    float64       // market cap estimation input, 0 disables
	TokenSupplyHint float64       // market cap estimation input, 0 disables
	RefreshInterval time.Duration // profile reload cadence, default 15s
	Workers         int           // concurrent dispatches, default 4
	RecentEventsCap int           // in-memory recents ring, default 250

	Supervisor stream.SupervisorConfig
	Transport  stream.TransportConfig
}

// EngineOptions contains the engine dependencies.
type EngineOptions struct {
	Config     Config
	Profiles   storage.ProfileStore
	Dispatcher *dispatch.Dispatcher
	Archive    storage.EventArchive // optional, best-effort
	Dial       stream.Dialer        // optional, defaults to the websocket dialer
	Notifier   dispatch.Notifier    // optional, receives fatal stream notices
	Logger     *logging.Log
	Clock      func() int64 // Unix ms
}

// Engine owns the three provider connections and routes every
// normalized event through matching into dispatch. Profiles are matched
// against a snapshot reloaded on a ticker; the dispatcher re-verifies
// against the store before executing, so a stale snapshot can delay an
// order but never break a cap or cooldown.
type Engine struct {
	cfg        Config
	profiles   storage.ProfileStore
	dispatcher *dispatch.Dispatcher
	archive    storage.EventArchive
	notifier   dispatch.Notifier
	logger     *logging.Entry
	clock      func() int64

	events   chan *domain.StreamEvent
	eventSup *stream.Supervisor
	copySup  *stream.Supervisor
	tokenSup *stream.Supervisor

	snapMu   sync.RWMutex
	snapshot []*domain.TradingProfile

	recent  *eventRing
	dedup   *dedupSet
	workers chan struct{}
	wg      sync.WaitGroup

	eventsSeen atomic.Int64
	matched    atomic.Int64
	dispatched atomic.Int64
	duplicates atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
}

// EngineStats is a point-in-time snapshot for health reporting.
type EngineStats struct {
	EventsSeen     int64
	Matched        int64
	Dispatched     int64
	Duplicates     int64
	ProfilesLoaded int
	Streams        []stream.SupervisorStats
}

// NewEngine builds the engine and its stream supervisors. It does not
// dial; call Run.
func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 15 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RecentEventsCap <= 0 {
		cfg.RecentEventsCap = 250
	}

	url, err := stream.Endpoint(cfg.BaseURL, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("stream endpoint: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixMilli() }
	}

	dial := opts.Dial
	if dial == nil {
		dial = stream.NewDialer(cfg.Transport)
	}

	e := &Engine{
		cfg:        cfg,
		profiles:   opts.Profiles,
		dispatcher: opts.Dispatcher,
		archive:    opts.Archive,
		notifier:   opts.Notifier,
		logger:     logger.WithComponent("engine"),
		clock:      clock,
		events:     make(chan *domain.StreamEvent, 1024),
		recent:     newEventRing(cfg.RecentEventsCap),
		dedup:      newDedupSet(dedupCap),
		workers:    make(chan struct{}, cfg.Workers),
		closed:     make(chan struct{}),
	}

	// One codec for all feeds; hints and the drift counter are global.
	codec := protocol.NewCodec(protocol.CodecOptions{
		SolPriceHint:    cfg.SolPriceHint,
		TokenSupplyHint: cfg.TokenSupplyHint,
		DirectionDrift:  observability.RecordDirectionDrift,
	})

	eventSubs := stream.NewSubscriptionSet(stream.SubEvents)
	eventSubs.Want(lifecycleChannels...)

	e.eventSup = stream.NewSupervisor(stream.SupervisorOptions{
		Name:    connEvents,
		URL:     url,
		Dial:    dial,
		Codec:   codec,
		Subs:    eventSubs,
		Events:  e.events,
		Config:  cfg.Supervisor,
		Logger:  logger,
		OnFatal: e.onStreamFatal,
	})
	e.copySup = stream.NewSupervisor(stream.SupervisorOptions{
		Name:    connCopy,
		URL:     url,
		Dial:    dial,
		Codec:   codec,
		Subs:    stream.NewSubscriptionSet(stream.SubSigners),
		Events:  e.events,
		Config:  cfg.Supervisor,
		Logger:  logger,
		OnFatal: e.onStreamFatal,
	})
	e.tokenSup = stream.NewSupervisor(stream.SupervisorOptions{
		Name:    connTokens,
		URL:     url,
		Dial:    dial,
		Codec:   codec,
		Subs:    stream.NewSubscriptionSet(stream.SubTokens),
		Events:  e.events,
		Config:  cfg.Supervisor,
		Logger:  logger,
		OnFatal: e.onStreamFatal,
	})

	return e, nil
}

// Run loads profiles, connects the three feeds and processes events
// until the context is cancelled or Close is called. A fatal stream
// close stops that feed only; the loop keeps serving the others.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.refreshProfiles(ctx); err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	sups := []*stream.Supervisor{e.eventSup, e.copySup, e.tokenSup}
	for i, sup := range sups {
		if err := sup.Connect(ctx); err != nil {
			for _, up := range sups[:i] {
				up.Disconnect()
			}
			return err
		}
	}

	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	e.logger.WithFields(logging.Fields{
		"workers":          e.cfg.Workers,
		"refresh_interval": e.cfg.RefreshInterval.String(),
	}).Info("engine started")

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return ctx.Err()
		case <-e.closed:
			e.shutdown()
			return nil
		case ev := <-e.events:
			e.handleEvent(ctx, ev)
		case <-ticker.C:
			if err := e.refreshProfiles(ctx); err != nil {
				e.logger.WithError(err).Error("profile refresh failed")
			}
		}
	}
}

// Close stops Run. Safe to call more than once; Run drains in-flight
// dispatches and returns nil.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.closed) })
}

func (e *Engine) shutdown() {
	e.eventSup.Disconnect()
	e.copySup.Disconnect()
	e.tokenSup.Disconnect()
	e.wg.Wait()

	e.logger.WithFields(logging.Fields{
		"events_seen": e.eventsSeen.Load(),
		"matched":     e.matched.Load(),
		"dispatched":  e.dispatched.Load(),
	}).Info("engine stopped")
}

func (e *Engine) handleEvent(ctx context.Context, ev *domain.StreamEvent) {
	e.eventsSeen.Add(1)
	e.recent.add(ev)

	if e.archive != nil {
		if err := e.archive.ArchiveEvent(ctx, ev); err != nil {
			e.logger.WithError(err).Debug("event archive append failed")
		}
	}

	snapshot := e.profilesSnapshot()
	if len(snapshot) == 0 {
		return
	}

	start := time.Now()
	decisions := match.Match(ev, snapshot, e.clock())
	observability.ObserveMatchEvaluation(time.Since(start).Seconds())

	for _, dec := range decisions {
		if !dec.Eligible {
			observability.RecordMatchDecision(dec.Reason)
			continue
		}
		observability.RecordMatchDecision("eligible")
		e.matched.Add(1)

		if !e.dedup.add(dec.Profile.ID + "|" + dedupKey(ev)) {
			e.duplicates.Add(1)
			e.logger.WithFields(logging.Fields{
				"profile_id": dec.Profile.ID,
				"event_id":   ev.ID,
			}).Debug("duplicate decision suppressed")
			continue
		}
		e.dispatchAsync(ctx, ev, dec)
	}
}

// dedupKey is the event identity used for dispatch dedup. A signed
// transaction can arrive on more than one feed with different receive
// timestamps, so the signature wins over the timestamped event ID.
func dedupKey(ev *domain.StreamEvent) string {
	if ev.Signature != "" {
		return string(ev.Kind) + "|" + ev.Signature
	}
	return ev.ID
}

// dispatchAsync hands the decision to the bounded worker pool. When all
// workers are busy the event loop blocks here; the stream buffers
// absorb the backpressure.
func (e *Engine) dispatchAsync(ctx context.Context, ev *domain.StreamEvent, dec match.Decision) {
	select {
	case e.workers <- struct{}{}:
	case <-ctx.Done():
		return
	case <-e.closed:
		return
	}

	e.dispatched.Add(1)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() { <-e.workers }()

		if err := e.dispatcher.Dispatch(ctx, ev, dec); err != nil {
			e.logger.WithError(err).WithFields(logging.Fields{
				"profile_id": dec.Profile.ID,
				"event_id":   ev.ID,
			}).Error("dispatch failed")
		}
	}()
}

// refreshProfiles reloads the store into the match snapshot and
// converges the copy feed onto the signers of active copy profiles.
func (e *Engine) refreshProfiles(ctx context.Context) error {
	profiles, err := e.profiles.List(ctx)
	if err != nil {
		return err
	}

	e.snapMu.Lock()
	e.snapshot = profiles
	e.snapMu.Unlock()
	observability.SetProfilesLoaded(len(profiles))

	return e.UpdateCopySigners(copySigners(profiles))
}

func (e *Engine) profilesSnapshot() []*domain.TradingProfile {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snapshot
}

// copySigners collects the deduplicated wallet addresses followed by
// active copy profiles.
func copySigners(profiles []*domain.TradingProfile) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range profiles {
		if p.Kind != domain.ProfileCopy || !p.Active || p.Copy == nil {
			continue
		}
		for _, w := range p.Copy.WalletAddresses {
			if w == "" {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

// UpdateCopySigners converges the copy feed subscriptions onto next.
// Signers added while the link is down buffer and replay on reconnect.
func (e *Engine) UpdateCopySigners(next []string) error {
	subs := e.copySup.Subscriptions()
	add, remove := subs.Diff(next)
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	msgs := subs.Drop(remove...)
	msgs = append(msgs, subs.Want(add...)...)
	observability.SetActiveSubscriptions(connCopy, subs.Size())

	e.logger.WithFields(logging.Fields{
		"added":   len(add),
		"removed": len(remove),
		"total":   subs.Size(),
	}).Info("copy signers updated")

	if len(msgs) == 0 {
		return nil
	}
	if err := e.copySup.Send(msgs...); err != nil {
		return fmt.Errorf("sync copy signers: %w", err)
	}
	return nil
}

// SubscribeToken opens the per-token trade feed for a mint. While the
// link is down the mint buffers and replays on reconnect.
func (e *Engine) SubscribeToken(mint string) error {
	subs := e.tokenSup.Subscriptions()
	msgs := subs.Want(mint)
	observability.SetActiveSubscriptions(connTokens, subs.Size())
	if len(msgs) == 0 {
		return nil
	}
	if err := e.tokenSup.Send(msgs...); err != nil {
		return fmt.Errorf("subscribe token %s: %w", mint, err)
	}
	return nil
}

// UnsubscribeToken drops the per-token trade feed for a mint.
func (e *Engine) UnsubscribeToken(mint string) error {
	subs := e.tokenSup.Subscriptions()
	msgs := subs.Drop(mint)
	observability.SetActiveSubscriptions(connTokens, subs.Size())
	if len(msgs) == 0 {
		return nil
	}
	if err := e.tokenSup.Send(msgs...); err != nil {
		return fmt.Errorf("unsubscribe token %s: %w", mint, err)
	}
	return nil
}

// RecentEvents returns the most recently observed events, newest first.
// limit <= 0 returns everything retained.
func (e *Engine) RecentEvents(limit int) []*domain.StreamEvent {
	return e.recent.list(limit)
}

// Stats reports engine counters and per-connection stream state.
func (e *Engine) Stats() EngineStats {
	e.snapMu.RLock()
	loaded := len(e.snapshot)
	e.snapMu.RUnlock()

	return EngineStats{
		EventsSeen:     e.eventsSeen.Load(),
		Matched:        e.matched.Load(),
		Dispatched:     e.dispatched.Load(),
		Duplicates:     e.duplicates.Load(),
		ProfilesLoaded: loaded,
		Streams: []stream.SupervisorStats{
			e.eventSup.Stats(),
			e.copySup.Stats(),
			e.tokenSup.Stats(),
		},
	}
}

func (e *Engine) onStreamFatal(reason string) {
	if e.notifier != nil {
		e.notifier.Notify(reason)
	}
}
