package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/protocol"
)

// fakeTransport is a scriptable in-memory Transport. Tests deliver
// frames and read errors; writes are recorded for assertions.
type fakeTransport struct {
	in   chan []byte
	errs chan error

	mu     sync.Mutex
	writes []OutboundMessage
	closed bool
	done   chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:   make(chan []byte, 32),
		errs: make(chan error, 1),
		done: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() ([]byte, error) {
	select {
	case p := <-f.in:
		return p, nil
	case err := <-f.errs:
		return nil, err
	case <-f.done:
		return nil, errors.New("use of closed network connection")
	}
}

func (f *fakeTransport) WriteJSON(v any, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := v.(OutboundMessage); ok {
		f.writes = append(f.writes, m)
	}
	return nil
}

func (f *fakeTransport) Ping(_ time.Time) error { return nil }

func (f *fakeTransport) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

func (f *fakeTransport) deliver(frame string) { f.in <- []byte(frame) }
func (f *fakeTransport) fail(err error)       { f.errs <- err }

func (f *fakeTransport) sent() []OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]OutboundMessage, len(f.writes))
	copy(out, f.writes)
	return out
}

// scriptDialer hands out transports in order; nil entries and an empty
// queue dial errors. Every call is counted.
type scriptDialer struct {
	mu    sync.Mutex
	calls int
	queue []*fakeTransport
}

func (d *scriptDialer) dial(_ context.Context, _ string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if len(d.queue) == 0 {
		return nil, errors.New("dial refused")
	}
	t := d.queue[0]
	d.queue = d.queue[1:]
	if t == nil {
		return nil, errors.New("dial refused")
	}
	return t, nil
}

func (d *scriptDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// instantSleep skips reconnect delays while honoring cancellation.
func instantSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

type supervisorFixture struct {
	sup    *Supervisor
	dialer *scriptDialer
	events chan *domain.StreamEvent
	fatals chan string
}

func newSupervisorFixture(kind SubKind, transports ...*fakeTransport) *supervisorFixture {
	f := &supervisorFixture{
		dialer: &scriptDialer{queue: transports},
		events: make(chan *domain.StreamEvent, 32),
		fatals: make(chan string, 4),
	}
	f.sup = NewSupervisor(SupervisorOptions{
		Name:   "test",
		URL:    "wss://provider.example/api/data-stream?api-key=k",
		Dial:   f.dialer.dial,
		Subs:   NewSubscriptionSet(kind),
		Events: f.events,
		Config: SupervisorConfig{
			ReconnectDelay:       time.Millisecond,
			MaxReconnectAttempts: 3,
			PingInterval:         time.Hour,
			WriteTimeout:         time.Second,
		},
		Sleep:   instantSleep,
		OnFatal: func(reason string) { f.fatals <- reason },
	})
	return f
}

func TestSupervisor_ConnectReplaysSubscriptions(t *testing.T) {
	t1 := newFakeTransport()
	f := newSupervisorFixture(SubEvents, t1)
	f.sup.Subscriptions().Want("deploy", "migration")

	if err := f.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer f.sup.Disconnect()

	if got := f.sup.State(); got != StateSubscribed {
		t.Fatalf("state = %v, want %v", got, StateSubscribed)
	}

	sent := t1.sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 outbound message, got %d", len(sent))
	}
	if sent[0].Action != "subscribe" || len(sent[0].Subscriptions) != 2 {
		t.Errorf("unexpected payload: %+v", sent[0])
	}
}

func TestSupervisor_ReconnectAttemptsBounded(t *testing.T) {
	t1 := newFakeTransport()
	// Only the initial dial succeeds; every reconnect is refused.
	f := newSupervisorFixture(SubEvents, t1)

	if err := f.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	t1.fail(errors.New("connection reset"))

	select {
	case reason := <-f.fatals:
		if !strings.Contains(reason, "exhausted") {
			t.Errorf("unexpected fatal reason: %q", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for give-up")
	}

	if got := f.sup.State(); got != StateClosedFatal {
		t.Errorf("state = %v, want %v", got, StateClosedFatal)
	}
	// Initial dial plus exactly MaxReconnectAttempts retries.
	if got := f.dialer.count(); got != 4 {
		t.Errorf("dial count = %d, want 4", got)
	}
}

func TestSupervisor_FatalAuthCloseNeverReconnects(t *testing.T) {
	t1 := newFakeTransport()
	t2 := newFakeTransport() // must never be dialed
	f := newSupervisorFixture(SubEvents, t1, t2)

	if err := f.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	t1.fail(&websocket.CloseError{
		Code: websocket.ClosePolicyViolation,
		Text: "policy violation",
	})

	select {
	case reason := <-f.fatals:
		if !strings.Contains(reason, "authentication rejected") {
			t.Errorf("unexpected fatal reason: %q", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for fatal close")
	}

	if got := f.sup.State(); got != StateClosedFatal {
		t.Errorf("state = %v, want %v", got, StateClosedFatal)
	}
	if got := f.dialer.count(); got != 1 {
		t.Errorf("dial count = %d, want 1 (no reconnect after auth close)", got)
	}

	stats := f.sup.Stats()
	if stats.LastCloseCode != websocket.ClosePolicyViolation {
		t.Errorf("last close code = %d, want %d", stats.LastCloseCode, websocket.ClosePolicyViolation)
	}
}

func TestSupervisor_AuthErrorFramePoisonsNextClose(t *testing.T) {
	t1 := newFakeTransport()
	t2 := newFakeTransport()
	f := newSupervisorFixture(SubEvents, t1, t2)

	if err := f.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// The provider reports the key is bad, then drops the link with a
	// code that would otherwise be transient.
	t1.deliver(`{"type":"error","message":"invalid api key provided"}`)
	waitFor(t, 2*time.Second, func() bool { return f.sup.Stats().FramesIn == 1 })

	t1.fail(&websocket.CloseError{
		Code: websocket.CloseAbnormalClosure,
		Text: "server closed connection",
	})

	select {
	case <-f.fatals:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for fatal close")
	}

	if got := f.dialer.count(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
}

func TestSupervisor_ReconnectResubscribesInFull(t *testing.T) {
	t1 := newFakeTransport()
	t2 := newFakeTransport()
	f := newSupervisorFixture(SubSigners, t1, t2)
	f.sup.Subscriptions().Want("S1", "S2")

	if err := f.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer f.sup.Disconnect()

	t1.fail(errors.New("connection reset"))

	waitFor(t, 2*time.Second, func() bool { return f.sup.State() == StateSubscribed && f.dialer.count() == 2 })

	sent := t2.sent()
	if len(sent) != 1 {
		t.Fatalf("expected full resubscription on new transport, got %d messages", len(sent))
	}
	if len(sent[0].Signers) != 2 {
		t.Errorf("resubscription payload = %+v, want both signers", sent[0])
	}

	// A successful reconnect resets the attempt budget.
	if got := f.sup.Stats().Attempts; got != 0 {
		t.Errorf("attempts after reconnect = %d, want 0", got)
	}
}

func TestSupervisor_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	t1 := newFakeTransport()
	f := newSupervisorFixture(SubEvents, t1)

	if err := f.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer f.sup.Disconnect()

	t1.deliver(`{broken json!!`)
	t1.deliver(`{"type":"deploy","mint":"MintA","traderPublicKey":"Dev1"}`)

	select {
	case ev := <-f.events:
		if ev.Kind != domain.EventDeploy || ev.TokenMint != "MintA" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event after malformed frame")
	}

	if got := f.sup.State(); got != StateSubscribed {
		t.Errorf("state = %v, want %v (malformed frame must not drop the link)", got, StateSubscribed)
	}
	if got := f.dialer.count(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
}

func TestSupervisor_TokenFeedDropsUnsubscribedMints(t *testing.T) {
	t1 := newFakeTransport()
	f := newSupervisorFixture(SubTokens, t1)
	f.sup.Subscriptions().Want("MintA")

	if err := f.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer f.sup.Disconnect()

	t1.deliver(`{"type":"trade","mint":"MintB","txType":"buy","solAmount":1}`)
	t1.deliver(`{"type":"trade","mint":"MintA","txType":"buy","solAmount":2}`)

	select {
	case ev := <-f.events:
		if ev.TokenMint != "MintA" {
			t.Errorf("event for unsubscribed mint leaked: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for subscribed-mint event")
	}

	select {
	case ev := <-f.events:
		t.Errorf("unexpected second event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSupervisor_DisconnectCancelsPendingReconnect(t *testing.T) {
	t1 := newFakeTransport()
	f := newSupervisorFixture(SubEvents, t1)
	// Reconnect sleeps park on the context until cancelled.
	f.sup.sleep = func(ctx context.Context, _ time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}

	if err := f.sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	t1.fail(errors.New("connection reset"))
	waitFor(t, 2*time.Second, func() bool { return f.sup.Stats().Attempts == 1 })

	done := make(chan struct{})
	go func() {
		f.sup.Disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not cancel the pending reconnect")
	}

	if got := f.sup.State(); got != StateDisconnected {
		t.Errorf("state = %v, want %v", got, StateDisconnected)
	}
	if got := f.dialer.count(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestSupervisor_GorillaLoopback(t *testing.T) {
	received := make(chan OutboundMessage, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub OutboundMessage
		if err := json.Unmarshal(msg, &sub); err != nil {
			t.Errorf("unmarshal subscribe: %v", err)
			return
		}
		received <- sub

		deploy := `{"type":"deploy","mint":"MintLoop","traderPublicKey":"Dev1","signature":"sig1"}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(deploy)); err != nil {
			t.Errorf("write deploy: %v", err)
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	events := make(chan *domain.StreamEvent, 4)

	sup := NewSupervisor(SupervisorOptions{
		Name:   "loopback",
		URL:    wsURL,
		Dial:   NewDialer(TransportConfig{}),
		Codec:  protocol.NewCodec(protocol.CodecOptions{}),
		Subs:   NewSubscriptionSet(SubEvents),
		Events: events,
	})
	sup.Subscriptions().Want("deploy", "migration")

	if err := sup.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer sup.Disconnect()

	select {
	case sub := <-received:
		if sub.Action != "subscribe" || len(sub.Subscriptions) != 2 {
			t.Errorf("server saw %+v", sub)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the subscribe payload")
	}

	select {
	case ev := <-events:
		if ev.Kind != domain.EventDeploy || ev.TokenMint != "MintLoop" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for deploy event")
	}
}
