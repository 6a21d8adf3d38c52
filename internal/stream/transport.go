package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the wire half the supervisor drives. Production wraps a
// gorilla connection; tests substitute fakes or loopback servers.
type Transport interface {
	// ReadMessage blocks for the next message payload.
	ReadMessage() ([]byte, error)

	// WriteJSON marshals v and writes it within deadline.
	WriteJSON(v any, deadline time.Time) error

	// Ping writes a ping control frame within deadline.
	Ping(deadline time.Time) error

	// Close writes a close frame with the given code and closes the
	// underlying connection.
	Close(code int, reason string) error
}

// Dialer opens a Transport. The supervisor never dials on its own, so
// tests can inject failures and fakes.
type Dialer func(ctx context.Context, url string) (Transport, error)

// maxFrameSize bounds a single provider frame.
const maxFrameSize = 1 << 20

// TransportConfig tunes the production dialer.
type TransportConfig struct {
	HandshakeTimeout time.Duration // default 10s
	ReadTimeout      time.Duration // refreshed per read and per pong, default 60s
}

// NewDialer returns the production gorilla dialer.
func NewDialer(cfg TransportConfig) Dialer {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}

	return func(ctx context.Context, url string) (Transport, error) {
		dialer := websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		}

		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, fmt.Errorf("websocket dial: %w", err)
		}

		conn.SetReadLimit(maxFrameSize)
		conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		})

		return &wsTransport{conn: conn, readTimeout: cfg.ReadTimeout}, nil
	}
}

// wsTransport adapts a gorilla connection to Transport.
type wsTransport struct {
	conn        *websocket.Conn
	readTimeout time.Duration
}

var _ Transport = (*wsTransport)(nil)

func (t *wsTransport) ReadMessage() ([]byte, error) {
	t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	_, payload, err := t.conn.ReadMessage()
	return payload, err
}

func (t *wsTransport) WriteJSON(v any, deadline time.Time) error {
	t.conn.SetWriteDeadline(deadline)
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Ping(deadline time.Time) error {
	return t.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	return t.conn.Close()
}
