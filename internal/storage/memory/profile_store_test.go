package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
)

func sniperProfile(id string) *domain.TradingProfile {
	return &domain.TradingProfile{
		ID:     id,
		Name:   "test sniper",
		Kind:   domain.ProfileSniper,
		Active: true,
		Sniper: &domain.SniperConfig{
			EventScope:   domain.ScopeBoth,
			BuyAmountSOL: 0.05,
			SizeMode:     domain.SizeFixed,
		},
		Dex:       "pumpfun",
		WalletIDs: []string{"w1"},
		CreatedAt: 1704067200000,
		UpdatedAt: 1704067200000,
	}
}

func TestProfileStore_CreateAndGet(t *testing.T) {
	store := NewProfileStore()
	ctx := context.Background()

	p := sniperProfile("p1")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != p.Name {
		t.Errorf("Name mismatch: got %s, want %s", got.Name, p.Name)
	}
	if got.Sniper == nil || got.Sniper.BuyAmountSOL != 0.05 {
		t.Errorf("Sniper config not preserved: %+v", got.Sniper)
	}
}

func TestProfileStore_DuplicateKey(t *testing.T) {
	store := NewProfileStore()
	ctx := context.Background()

	if err := store.Create(ctx, sniperProfile("p1")); err != nil {
		t.Fatalf("First create failed: %v", err)
	}
	err := store.Create(ctx, sniperProfile("p1"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestProfileStore_NotFound(t *testing.T) {
	store := NewProfileStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := store.Update(ctx, sniperProfile("missing")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete: expected ErrNotFound, got %v", err)
	}
}

func TestProfileStore_InvalidInput(t *testing.T) {
	store := NewProfileStore()
	ctx := context.Background()

	tests := []struct {
		name string
		p    *domain.TradingProfile
	}{
		{"nil profile", nil},
		{"empty id", &domain.TradingProfile{Kind: domain.ProfileSniper, Sniper: &domain.SniperConfig{}}},
		{"bad kind", &domain.TradingProfile{ID: "x", Kind: "martingale"}},
		{"sniper without config", &domain.TradingProfile{ID: "x", Kind: domain.ProfileSniper}},
		{"copy without config", &domain.TradingProfile{ID: "x", Kind: domain.ProfileCopy}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Create(ctx, tt.p); !errors.Is(err, storage.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestProfileStore_UpdateLastWriteWins(t *testing.T) {
	store := NewProfileStore()
	ctx := context.Background()

	p := sniperProfile("p1")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	upd := sniperProfile("p1")
	upd.ExecutionCount = 3
	last := int64(1704067300000)
	upd.LastExecutedAt = &last
	if err := store.Update(ctx, upd); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ExecutionCount != 3 {
		t.Errorf("ExecutionCount = %d, want 3", got.ExecutionCount)
	}
	if got.LastExecutedAt == nil || *got.LastExecutedAt != last {
		t.Errorf("LastExecutedAt = %v, want %d", got.LastExecutedAt, last)
	}
	if got.UpdatedAt <= 1704067200000 {
		t.Errorf("UpdatedAt not bumped: %d", got.UpdatedAt)
	}
}

func TestProfileStore_ListOrdering(t *testing.T) {
	store := NewProfileStore()
	ctx := context.Background()

	p1 := sniperProfile("b")
	p1.CreatedAt = 2000
	p2 := sniperProfile("a")
	p2.CreatedAt = 1000
	p3 := sniperProfile("c")
	p3.CreatedAt = 2000

	for _, p := range []*domain.TradingProfile{p1, p2, p3} {
		if err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) failed: %v", p.ID, err)
		}
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List returned %d profiles, want 3", len(list))
	}
	wantOrder := []string{"a", "b", "c"}
	for i, want := range wantOrder {
		if list[i].ID != want {
			t.Errorf("list[%d].ID = %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestProfileStore_ClonesOnReadAndWrite(t *testing.T) {
	store := NewProfileStore()
	ctx := context.Background()

	p := sniperProfile("p1")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Mutating the original after Create must not leak into the store.
	p.Sniper.BuyAmountSOL = 99

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Sniper.BuyAmountSOL != 0.05 {
		t.Errorf("store leaked caller mutation: BuyAmountSOL = %v", got.Sniper.BuyAmountSOL)
	}

	// Mutating a returned profile must not change stored state.
	got.Name = "changed"
	again, _ := store.Get(ctx, "p1")
	if again.Name != "test sniper" {
		t.Errorf("store leaked reader mutation: Name = %s", again.Name)
	}
}

func TestProfileStore_ConcurrentAccess(t *testing.T) {
	store := NewProfileStore()
	ctx := context.Background()

	if err := store.Create(ctx, sniperProfile("p1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p, err := store.Get(ctx, "p1")
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			p.ExecutionCount++
			_ = store.Update(ctx, p)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.List(ctx)
		}()
	}
	wg.Wait()
}
