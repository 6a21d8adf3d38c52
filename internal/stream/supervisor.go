package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/logging"
	"solana-autopilot/internal/observability"
	"solana-autopilot/internal/protocol"
)

// State is the supervisor connection state.
type State string

const (
	StateDisconnected    State = "disconnected"
	StateConnecting      State = "connecting"
	StateOpen            State = "open"             // dialed, subscriptions not yet replayed
	StateSubscribed      State = "subscribed"       // full subscription set on the wire
	StateClosedTransient State = "closed_transient" // lost, reconnect in progress
	StateClosedFatal     State = "closed_fatal"     // auth rejection or attempts exhausted
)

// String returns the string representation of State.
func (s State) String() string {
	return string(s)
}

func stateGauge(s State) int {
	switch s {
	case StateConnecting:
		return 1
	case StateOpen:
		return 2
	case StateSubscribed:
		return 3
	case StateClosedTransient:
		return 4
	case StateClosedFatal:
		return 5
	default:
		return 0
	}
}

// SupervisorConfig tunes connection supervision behavior.
type SupervisorConfig struct {
	// ReconnectDelay is the fixed wait before each reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts is the number of consecutive failed attempts
	// after which the supervisor gives up. The counter resets to zero on
	// every successful reconnect.
	MaxReconnectAttempts int
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration
	// WriteTimeout bounds every outbound write.
	WriteTimeout time.Duration
}

// DefaultSupervisorConfig returns the default supervision parameters.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 10,
		PingInterval:         30 * time.Second,
		WriteTimeout:         10 * time.Second,
	}
}

// SupervisorOptions contains configuration for creating a Supervisor.
type SupervisorOptions struct {
	Name    string // connection label for logs and metrics
	URL     string // stream endpoint from Endpoint()
	Dial    Dialer
	Codec   *protocol.Codec
	Subs    *SubscriptionSet
	Events  chan<- *domain.StreamEvent
	Config  SupervisorConfig
	Logger  *logging.Log
	Clock   func() time.Time
	Sleep   func(ctx context.Context, d time.Duration) error
	OnFatal func(reason string) // invoked once when the supervisor stops for good
}

// SupervisorStats is a point-in-time snapshot for health reporting.
type SupervisorStats struct {
	Name            string
	State           State
	Attempts        int   // consecutive failed reconnect attempts
	FramesIn        int64 // raw frames read
	EventsOut       int64 // normalized events published
	LastCloseCode   int
	LastCloseReason string
}

// Supervisor owns one provider connection: dialing, the read pump,
// keepalive pings, and the reconnect policy. Reconnects wait a fixed
// delay between attempts and give up after a bounded number of
// consecutive failures; an authentication rejection stops the
// supervisor immediately with no retry. Every successful (re)connect
// replays the full subscription set before the state reads subscribed.
type Supervisor struct {
	name    string
	url     string
	dial    Dialer
	codec   *protocol.Codec
	subs    *SubscriptionSet
	events  chan<- *domain.StreamEvent
	cfg     SupervisorConfig
	logger  *logging.Entry
	clock   func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	onFatal func(reason string)

	lifecycleMu sync.Mutex // serializes Connect and Disconnect

	mu              sync.Mutex // guards transport, state, last close
	transport       Transport
	state           State
	lastCloseCode   int
	lastCloseReason string

	runCtx    context.Context
	runCancel context.CancelFunc

	manualClose atomic.Bool
	authFlagged atomic.Bool
	attempts    atomic.Int64
	framesIn    atomic.Int64
	eventsOut   atomic.Int64

	wg sync.WaitGroup
}

// NewSupervisor creates a supervisor. It does not dial; call Connect.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	cfg := opts.Config
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	dial := opts.Dial
	if dial == nil {
		dial = NewDialer(TransportConfig{})
	}

	codec := opts.Codec
	if codec == nil {
		codec = protocol.NewCodec(protocol.CodecOptions{})
	}

	subs := opts.Subs
	if subs == nil {
		subs = NewSubscriptionSet(SubEvents)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	slp := opts.Sleep
	if slp == nil {
		slp = sleepCtx
	}

	return &Supervisor{
		name:    opts.Name,
		url:     opts.URL,
		dial:    dial,
		codec:   codec,
		subs:    subs,
		events:  opts.Events,
		cfg:     cfg,
		logger:  logger.WithComponent("stream").WithField("connection", opts.Name),
		clock:   clock,
		sleep:   slp,
		onFatal: opts.OnFatal,
		state:   StateDisconnected,
	}
}

// Connect dials the endpoint, replays the subscription set, and starts
// the read pump and keepalive loops. Calling Connect while the
// connection is open or subscribed is a no-op. A supervisor stopped by
// a fatal close may be reconnected; Connect resets the fatal flags.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	switch s.State() {
	case StateOpen, StateSubscribed, StateConnecting, StateClosedTransient:
		return nil
	}

	// Let goroutines from a previous session drain before reusing state.
	s.wg.Wait()

	s.manualClose.Store(false)
	s.authFlagged.Store(false)
	s.attempts.Store(0)
	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	s.setState(StateConnecting)
	t, err := s.dial(ctx, s.url)
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("connect %s: %w", s.name, err)
	}

	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
	s.setState(StateOpen)

	if err := s.resubscribe(); err != nil {
		s.closeTransport(websocket.CloseNormalClosure, "subscribe failed")
		s.subs.MarkClosed()
		s.setState(StateDisconnected)
		return err
	}
	s.setState(StateSubscribed)
	s.logger.Info("connected")

	s.wg.Add(2)
	go s.readPump()
	go s.pingLoop()
	return nil
}

// Disconnect stops the supervisor: best-effort unsubscribe, close
// frame, and goroutine shutdown. Safe from any state and idempotent.
// A reconnect timer pending at the time of the call is cancelled.
func (s *Supervisor) Disconnect() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.manualClose.Store(true)
	if s.runCancel != nil {
		s.runCancel()
	}

	if msgs := s.subs.UnsubscribeAll(); len(msgs) > 0 {
		if err := s.Send(msgs...); err != nil {
			s.logger.WithError(err).Debug("unsubscribe on shutdown failed")
		}
	}
	s.closeTransport(websocket.CloseNormalClosure, "client shutdown")

	s.wg.Wait()
	s.subs.MarkClosed()
	s.setState(StateDisconnected)
	s.logger.Info("disconnected")
}

// Send writes outbound messages on the live transport.
func (s *Supervisor) Send(msgs ...OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil {
		return errors.New("not connected")
	}

	deadline := s.clock().Add(s.cfg.WriteTimeout)
	for _, m := range msgs {
		if err := s.transport.WriteJSON(m, deadline); err != nil {
			return fmt.Errorf("write %s: %w", m.Action, err)
		}
	}
	return nil
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscriptions returns the subscription set this supervisor drives.
func (s *Supervisor) Subscriptions() *SubscriptionSet {
	return s.subs
}

// Stats returns a snapshot of the supervisor counters.
func (s *Supervisor) Stats() SupervisorStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SupervisorStats{
		Name:            s.name,
		State:           s.state,
		Attempts:        int(s.attempts.Load()),
		FramesIn:        s.framesIn.Load(),
		EventsOut:       s.eventsOut.Load(),
		LastCloseCode:   s.lastCloseCode,
		LastCloseReason: s.lastCloseReason,
	}
}

// readPump reads frames until the connection is closed for good.
func (s *Supervisor) readPump() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		t := s.transport
		s.mu.Unlock()
		if t == nil {
			return
		}

		payload, err := t.ReadMessage()
		if err != nil {
			if s.manualClose.Load() || s.runCtx.Err() != nil {
				return
			}
			if !s.handleReadError(err) {
				return
			}
			continue
		}

		s.framesIn.Add(1)
		s.handleFrame(payload)
	}
}

// handleFrame decodes and routes one frame. Malformed frames are logged
// and dropped; the connection stays open.
func (s *Supervisor) handleFrame(payload []byte) {
	frame, err := protocol.DecodeFrame(payload)
	if err != nil {
		observability.RecordParseError()
		s.logger.WithError(err).Debug("frame dropped")
		return
	}
	observability.RecordFrame(s.name, string(frame.Type))

	if ctrl, ok := protocol.ClassifyControl(frame); ok {
		s.handleControl(ctrl)
		return
	}

	ev, ok := s.codec.Normalize(frame, s.clock().UnixMilli())
	if !ok {
		return
	}

	// The token feed keeps receiving briefly after an unsubscribe;
	// trades for mints the set no longer tracks are dropped.
	if s.subs.kind == SubTokens && ev.Kind.IsTrade() && !s.subs.Has(ev.TokenMint) {
		return
	}

	observability.RecordEventNormalized(string(ev.Kind), ev.ObservedAt)
	s.eventsOut.Add(1)

	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	case <-s.runCtx.Done():
	}
}

func (s *Supervisor) handleControl(ctrl protocol.ControlEvent) {
	switch ctrl.Kind {
	case protocol.ControlError:
		if ctrl.AuthFailure {
			s.authFlagged.Store(true)
		}
		s.logger.WithField("message", ctrl.Message).Warn("provider error frame")
	case protocol.ControlReady:
		s.logger.Debug("provider ready")
	case protocol.ControlSubConfirmed:
		s.logger.Debug("subscription confirmed")
	}
}

// handleReadError classifies the failure and either reconnects (true)
// or stops the supervisor (false).
func (s *Supervisor) handleReadError(err error) bool {
	code, reason := closeDetails(err)
	s.mu.Lock()
	s.lastCloseCode = code
	s.lastCloseReason = reason
	s.mu.Unlock()

	if ClassifyClose(code, reason, s.authFlagged.Load()) == CloseFatalAuth {
		s.logger.WithFields(logging.Fields{
			"code":   code,
			"reason": reason,
		}).Error("authentication rejected, not reconnecting")
		s.failPermanently("authentication rejected: " + reason)
		return false
	}

	s.logger.WithFields(logging.Fields{
		"code":   code,
		"reason": reason,
	}).Warn("connection lost")
	return s.reconnect()
}

// reconnect runs the bounded fixed-delay retry loop. Returns true once
// a dial succeeds and the subscription set is replayed.
func (s *Supervisor) reconnect() bool {
	s.subs.MarkClosed()
	s.closeTransport(websocket.CloseAbnormalClosure, "")
	s.setState(StateClosedTransient)

	for s.attempts.Load() < int64(s.cfg.MaxReconnectAttempts) {
		s.attempts.Add(1)
		observability.RecordReconnectAttempt(s.name)

		if err := s.sleep(s.runCtx, s.cfg.ReconnectDelay); err != nil {
			return false
		}
		if s.manualClose.Load() {
			return false
		}

		s.setState(StateConnecting)
		t, err := s.dial(s.runCtx, s.url)
		if err != nil {
			s.logger.WithError(err).WithField("attempt", s.attempts.Load()).Warn("reconnect failed")
			s.setState(StateClosedTransient)
			continue
		}

		s.mu.Lock()
		s.transport = t
		s.mu.Unlock()
		s.setState(StateOpen)

		if err := s.resubscribe(); err != nil {
			s.logger.WithError(err).Warn("resubscribe failed")
			s.subs.MarkClosed()
			s.closeTransport(websocket.CloseNormalClosure, "subscribe failed")
			s.setState(StateClosedTransient)
			continue
		}

		s.attempts.Store(0)
		s.setState(StateSubscribed)
		s.logger.Info("reconnected")
		return true
	}

	s.logger.WithField("max_attempts", s.cfg.MaxReconnectAttempts).Error("reconnect attempts exhausted")
	s.failPermanently("reconnect attempts exhausted")
	return false
}

// resubscribe replays the full subscription set on the live transport.
func (s *Supervisor) resubscribe() error {
	msgs := s.subs.MarkOpen()
	if len(msgs) == 0 {
		return nil
	}
	if err := s.Send(msgs...); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}
	observability.SetActiveSubscriptions(s.name, s.subs.Size())
	return nil
}

// failPermanently moves the supervisor to its terminal state. No dial
// is ever scheduled from here.
func (s *Supervisor) failPermanently(reason string) {
	s.manualClose.Store(true)
	if s.runCancel != nil {
		s.runCancel()
	}
	s.closeTransport(websocket.CloseNormalClosure, "")
	s.subs.MarkClosed()
	s.setState(StateClosedFatal)
	observability.RecordFatalClose()

	if s.onFatal != nil {
		s.onFatal(fmt.Sprintf("%s stream stopped: %s", s.name, reason))
	}
}

// pingLoop keeps the connection alive. Write failures surface on the
// read side and are handled there.
func (s *Supervisor) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.runCtx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			t := s.transport
			s.mu.Unlock()
			if t != nil {
				t.Ping(s.clock().Add(s.cfg.WriteTimeout))
			}
		}
	}
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	observability.SetConnectionState(s.name, stateGauge(st))
}

func (s *Supervisor) closeTransport(code int, reason string) {
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	s.mu.Unlock()

	if t != nil {
		t.Close(code, reason)
	}
}

// closeDetails extracts the close code and reason from a read error.
func closeDetails(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return 0, err.Error()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
