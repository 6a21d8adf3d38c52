package engine

import (
	"fmt"
	"testing"

	"solana-autopilot/internal/domain"
)

func TestDedupSetEvictsOldest(t *testing.T) {
	d := newDedupSet(2)

	if !d.add("a") {
		t.Fatal("first add of a should be unseen")
	}
	if !d.add("b") {
		t.Fatal("first add of b should be unseen")
	}
	if d.add("a") {
		t.Fatal("second add of a should be seen")
	}

	// c evicts a, the oldest entry.
	if !d.add("c") {
		t.Fatal("first add of c should be unseen")
	}
	if !d.add("a") {
		t.Fatal("a should have been evicted")
	}
	if d.add("c") {
		t.Fatal("c should still be seen")
	}
}

func TestEventRingWrapsAndListsNewestFirst(t *testing.T) {
	r := newEventRing(3)

	if got := r.list(0); len(got) != 0 {
		t.Fatalf("empty ring returned %d events", len(got))
	}

	for i := 1; i <= 5; i++ {
		r.add(&domain.StreamEvent{TokenMint: fmt.Sprintf("Mint%d", i)})
	}

	all := r.list(0)
	if len(all) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(all))
	}
	for i, want := range []string{"Mint5", "Mint4", "Mint3"} {
		if all[i].TokenMint != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, all[i].TokenMint)
		}
	}

	top := r.list(2)
	if len(top) != 2 || top[0].TokenMint != "Mint5" || top[1].TokenMint != "Mint4" {
		t.Fatalf("limited list wrong: %+v", top)
	}

	// A limit beyond the retained count returns what is there.
	if got := r.list(10); len(got) != 3 {
		t.Fatalf("over-limit list returned %d events", len(got))
	}
}
