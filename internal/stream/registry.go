package stream

import (
	"sort"
	"sync"
)

// SubKind selects the wire shape a subscription set speaks.
type SubKind string

const (
	SubEvents  SubKind = "events"  // deploy/migration lifecycle channels
	SubSigners SubKind = "signers" // followed wallet addresses
	SubTokens  SubKind = "tokens"  // per-token trade feeds
)

// Subscribe/unsubscribe actions on the provider protocol.
const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)

// OutboundMessage is one provider-bound control payload. Exactly one of
// Subscriptions, Signers or TokenMint is set, depending on the SubKind.
type OutboundMessage struct {
	Action        string   `json:"action"`
	Subscriptions []string `json:"subscriptions,omitempty"`
	Signers       []string `json:"signers,omitempty"`
	TokenMint     string   `json:"tokenMint,omitempty"`
}

// SubscriptionSet tracks which keys a connection should be subscribed
// to. Keys wanted while the link is down buffer as pending and flush on
// MarkOpen, so a reconnect always replays the complete set. Transitions
// return the wire messages to send; callers do the I/O.
type SubscriptionSet struct {
	mu      sync.Mutex
	kind    SubKind
	open    bool
	active  map[string]struct{}
	pending map[string]struct{}
}

// NewSubscriptionSet creates an empty set for one connection.
func NewSubscriptionSet(kind SubKind) *SubscriptionSet {
	return &SubscriptionSet{
		kind:    kind,
		active:  make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
}

// Want registers keys. On an open link the new keys become active and
// their subscribe messages are returned; on a closed link they buffer as
// pending. Already-known keys are deduplicated.
func (s *SubscriptionSet) Want(keys ...string) []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := s.active[k]; ok {
			continue
		}
		if _, ok := s.pending[k]; ok {
			continue
		}
		if s.open {
			s.active[k] = struct{}{}
		} else {
			s.pending[k] = struct{}{}
		}
		fresh = append(fresh, k)
	}

	if !s.open || len(fresh) == 0 {
		return nil
	}
	return s.messages(actionSubscribe, fresh)
}

// Drop removes keys. Unknown keys are a no-op. Unsubscribe messages are
// returned only for keys that were active on an open link.
func (s *SubscriptionSet) Drop(keys ...string) []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := s.active[k]; ok {
			delete(s.active, k)
			dropped = append(dropped, k)
			continue
		}
		delete(s.pending, k)
	}

	if !s.open || len(dropped) == 0 {
		return nil
	}
	return s.messages(actionUnsubscribe, dropped)
}

// Diff compares the tracked keys against next and returns what to Want
// and what to Drop to converge. The intersection is untouched. Diff does
// not mutate the set.
func (s *SubscriptionSet) Diff(next []string) (add, remove []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]struct{}, len(next))
	for _, k := range next {
		if k == "" {
			continue
		}
		want[k] = struct{}{}
		if _, ok := s.active[k]; ok {
			continue
		}
		if _, ok := s.pending[k]; ok {
			continue
		}
		add = append(add, k)
	}

	for k := range s.active {
		if _, ok := want[k]; !ok {
			remove = append(remove, k)
		}
	}
	for k := range s.pending {
		if _, ok := want[k]; !ok {
			remove = append(remove, k)
		}
	}

	sort.Strings(add)
	sort.Strings(remove)
	return add, remove
}

// MarkOpen transitions the link to open, promotes every pending key to
// active, and returns the full resubscription payload. Everything the
// set knows is replayed, never a partial list.
func (s *SubscriptionSet) MarkOpen() []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = true
	for k := range s.pending {
		s.active[k] = struct{}{}
		delete(s.pending, k)
	}

	if len(s.active) == 0 {
		return nil
	}

	all := make([]string, 0, len(s.active))
	for k := range s.active {
		all = append(all, k)
	}
	return s.messages(actionSubscribe, all)
}

// MarkClosed transitions the link to closed and demotes every active
// key to pending so the next MarkOpen replays them.
func (s *SubscriptionSet) MarkClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	for k := range s.active {
		s.pending[k] = struct{}{}
		delete(s.active, k)
	}
}

// UnsubscribeAll returns unsubscribe payloads for every active key
// without forgetting them; a following MarkClosed parks them as pending
// for the next connect.
func (s *SubscriptionSet) UnsubscribeAll() []OutboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open || len(s.active) == 0 {
		return nil
	}

	keys := make([]string, 0, len(s.active))
	for k := range s.active {
		keys = append(keys, k)
	}
	return s.messages(actionUnsubscribe, keys)
}

// Has reports whether the key is tracked, active or pending.
func (s *SubscriptionSet) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[key]; ok {
		return true
	}
	_, ok := s.pending[key]
	return ok
}

// Active returns a sorted snapshot of the active keys.
func (s *SubscriptionSet) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.active))
	for k := range s.active {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of tracked keys.
func (s *SubscriptionSet) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) + len(s.pending)
}

// messages builds the wire payloads for keys under this set's kind.
// Caller holds the mutex.
func (s *SubscriptionSet) messages(action string, keys []string) []OutboundMessage {
	sort.Strings(keys)

	switch s.kind {
	case SubSigners:
		return []OutboundMessage{{Action: action, Signers: keys}}
	case SubTokens:
		out := make([]OutboundMessage, 0, len(keys))
		for _, k := range keys {
			out = append(out, OutboundMessage{Action: action, TokenMint: k})
		}
		return out
	default:
		return []OutboundMessage{{Action: action, Subscriptions: keys}}
	}
}
