package stream

import (
	"reflect"
	"testing"
)

func TestSubscriptionSet_WantBuffersUntilOpen(t *testing.T) {
	s := NewSubscriptionSet(SubEvents)

	if msgs := s.Want("deploy", "migration"); msgs != nil {
		t.Fatalf("Want on closed link should buffer, got %v", msgs)
	}
	if !s.Has("deploy") || !s.Has("migration") {
		t.Fatal("buffered keys should be tracked")
	}

	msgs := s.MarkOpen()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	want := OutboundMessage{Action: "subscribe", Subscriptions: []string{"deploy", "migration"}}
	if !reflect.DeepEqual(msgs[0], want) {
		t.Errorf("MarkOpen() = %+v, want %+v", msgs[0], want)
	}
}

func TestSubscriptionSet_WantOnOpenLinkSendsImmediately(t *testing.T) {
	s := NewSubscriptionSet(SubTokens)
	s.MarkOpen()

	msgs := s.Want("MintA")
	if len(msgs) != 1 || msgs[0].TokenMint != "MintA" || msgs[0].Action != "subscribe" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	// Duplicates are silent.
	if msgs := s.Want("MintA"); msgs != nil {
		t.Errorf("duplicate Want should be a no-op, got %v", msgs)
	}
}

func TestSubscriptionSet_DropSemantics(t *testing.T) {
	s := NewSubscriptionSet(SubTokens)
	s.MarkOpen()
	s.Want("MintA", "MintB")

	msgs := s.Drop("MintA")
	if len(msgs) != 1 || msgs[0].Action != "unsubscribe" || msgs[0].TokenMint != "MintA" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if s.Has("MintA") {
		t.Error("dropped key should be forgotten")
	}

	// Unknown keys are a no-op.
	if msgs := s.Drop("MintZ"); msgs != nil {
		t.Errorf("unknown Drop should be a no-op, got %v", msgs)
	}

	// Pending keys drop without wire traffic.
	s.MarkClosed()
	if msgs := s.Drop("MintB"); msgs != nil {
		t.Errorf("closed-link Drop should be silent, got %v", msgs)
	}
	if s.Has("MintB") {
		t.Error("pending key should be forgotten after Drop")
	}
}

func TestSubscriptionSet_Diff(t *testing.T) {
	s := NewSubscriptionSet(SubSigners)
	s.MarkOpen()
	s.Want("S1", "S2", "S3")

	add, remove := s.Diff([]string{"S2", "S3", "S4"})
	if !reflect.DeepEqual(add, []string{"S4"}) {
		t.Errorf("add = %v, want [S4]", add)
	}
	if !reflect.DeepEqual(remove, []string{"S1"}) {
		t.Errorf("remove = %v, want [S1]", remove)
	}

	// Diff never mutates.
	if !s.Has("S1") || s.Has("S4") {
		t.Error("Diff must not change the set")
	}
}

func TestSubscriptionSet_ReconnectReplaysEverything(t *testing.T) {
	s := NewSubscriptionSet(SubSigners)
	s.MarkOpen()
	s.Want("S1", "S2")

	// Link drops; one more signer arrives while down.
	s.MarkClosed()
	if msgs := s.Want("S3"); msgs != nil {
		t.Fatalf("Want on closed link should buffer, got %v", msgs)
	}

	msgs := s.MarkOpen()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	want := []string{"S1", "S2", "S3"}
	if !reflect.DeepEqual(msgs[0].Signers, want) {
		t.Errorf("resubscription = %v, want %v", msgs[0].Signers, want)
	}
	if !reflect.DeepEqual(s.Active(), want) {
		t.Errorf("Active() = %v, want %v", s.Active(), want)
	}
}

func TestSubscriptionSet_TokensEmitOneFramePerMint(t *testing.T) {
	s := NewSubscriptionSet(SubTokens)
	s.Want("MintB", "MintA")

	msgs := s.MarkOpen()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].TokenMint != "MintA" || msgs[1].TokenMint != "MintB" {
		t.Errorf("unexpected order: %+v", msgs)
	}
	for _, m := range msgs {
		if m.Subscriptions != nil || m.Signers != nil {
			t.Errorf("token message should carry only tokenMint: %+v", m)
		}
	}
}

func TestSubscriptionSet_UnsubscribeAllKeepsKeys(t *testing.T) {
	s := NewSubscriptionSet(SubSigners)
	s.MarkOpen()
	s.Want("S1", "S2")

	msgs := s.UnsubscribeAll()
	if len(msgs) != 1 || msgs[0].Action != "unsubscribe" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if !reflect.DeepEqual(msgs[0].Signers, []string{"S1", "S2"}) {
		t.Errorf("signers = %v", msgs[0].Signers)
	}

	// Keys survive for the next connect.
	s.MarkClosed()
	replay := s.MarkOpen()
	if len(replay) != 1 || !reflect.DeepEqual(replay[0].Signers, []string{"S1", "S2"}) {
		t.Errorf("keys should replay after UnsubscribeAll, got %+v", replay)
	}
}
