package stream

import (
	"github.com/gorilla/websocket"

	"solana-autopilot/internal/protocol"
)

// CloseClass partitions connection closes into the two recovery paths.
type CloseClass string

const (
	// CloseTransient closes are retried with a fixed delay.
	CloseTransient CloseClass = "transient"
	// CloseFatalAuth closes mean the credentials were rejected.
	// Reconnecting would fail the same way, so the supervisor stops.
	CloseFatalAuth CloseClass = "fatal_auth"
)

// ClassifyClose decides whether a close ends the connection for good.
// Policy-violation and unsupported-data close codes are how the provider
// rejects bad API keys; an auth-flavored reason string or a prior
// auth-error frame on the same connection mean the same thing.
func ClassifyClose(code int, reason string, authFlagged bool) CloseClass {
	if authFlagged {
		return CloseFatalAuth
	}
	switch code {
	case websocket.ClosePolicyViolation, websocket.CloseUnsupportedData:
		return CloseFatalAuth
	}
	if protocol.IsAuthFailureText(reason) {
		return CloseFatalAuth
	}
	return CloseTransient
}
