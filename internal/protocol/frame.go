package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FrameType is the wire-level "type" tag on provider frames.
type FrameType string

const (
	FrameWelcome           FrameType = "welcome"
	FrameConnection        FrameType = "connection"
	FrameSubConfirmed      FrameType = "subscription_confirmed"
	FrameEventSubConfirmed FrameType = "event_subscription_confirmed"
	FrameTrade             FrameType = "trade"
	FrameTransaction       FrameType = "transaction"
	FrameDeploy            FrameType = "deploy"
	FrameMigration         FrameType = "migration"
	FrameError             FrameType = "error"
)

// Frame is a decoded provider frame. Payload holds the full envelope;
// Raw is the original bytes for archival.
type Frame struct {
	Type    FrameType
	Payload map[string]any
	Raw     json.RawMessage
}

// IsControl reports whether the frame is a session control message rather
// than a data event.
func (f *Frame) IsControl() bool {
	switch f.Type {
	case FrameWelcome, FrameConnection, FrameSubConfirmed, FrameEventSubConfirmed, FrameError:
		return true
	}
	return false
}

var errMissingType = errors.New("frame has no type tag")

// ParseError wraps a frame that could not be decoded. Callers log it and
// keep the connection open; a bad frame is never a reason to drop the link.
type ParseError struct {
	Cause error
	Data  []byte
}

func (e *ParseError) Error() string {
	snippet := e.Data
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}
	return fmt.Sprintf("parse frame %q: %v", snippet, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// DecodeFrame decodes raw bytes into a Frame. The input must be a JSON
// object with a non-empty string "type"; unknown type values decode fine
// and are left to the caller to classify.
func DecodeFrame(data []byte) (*Frame, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ParseError{Cause: err, Data: data}
	}
	typ, _ := payload["type"].(string)
	if typ == "" {
		return nil, &ParseError{Cause: errMissingType, Data: data}
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return &Frame{Type: FrameType(typ), Payload: payload, Raw: raw}, nil
}

// ControlKind classifies session control frames.
type ControlKind string

const (
	ControlReady        ControlKind = "ready"         // welcome / connection
	ControlSubConfirmed ControlKind = "sub_confirmed" // subscription acks
	ControlError        ControlKind = "error"
)

// ControlEvent is the supervisor-facing view of a control frame.
type ControlEvent struct {
	Kind        ControlKind
	Message     string // provider-supplied text, empty when absent
	AuthFailure bool   // error text matched the auth heuristics
}

// ClassifyControl maps a control frame to a ControlEvent. Returns false for
// data frames.
func ClassifyControl(f *Frame) (ControlEvent, bool) {
	switch f.Type {
	case FrameWelcome, FrameConnection:
		return ControlEvent{Kind: ControlReady}, true
	case FrameSubConfirmed, FrameEventSubConfirmed:
		return ControlEvent{Kind: ControlSubConfirmed}, true
	case FrameError:
		msg := firstString(f.Payload, errorMessagePaths)
		return ControlEvent{
			Kind:        ControlError,
			Message:     msg,
			AuthFailure: IsAuthFailureText(msg),
		}, true
	}
	return ControlEvent{}, false
}

// authFailureMarkers are the substrings that mark a provider message or a
// close reason as an authentication rejection. Matching is case-insensitive.
var authFailureMarkers = []string{
	"authentication",
	"api key",
	"unauthorized",
	"forbidden",
}

// IsAuthFailureText reports whether provider text describes an auth
// rejection. The stream supervisor treats a close that follows such text
// as fatal and never reconnects.
func IsAuthFailureText(s string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, marker := range authFailureMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
