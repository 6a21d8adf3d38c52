package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/storage"
	pgstore "solana-autopilot/internal/storage/postgres"
)

func testSniperProfile(id string) *domain.TradingProfile {
	return &domain.TradingProfile{
		ID:     id,
		Name:   "pump deploys",
		Kind:   domain.ProfileSniper,
		Active: true,
		Sniper: &domain.SniperConfig{
			EventScope:   domain.ScopeDeploy,
			BuyAmountSOL: 0.05,
			SizeMode:     domain.SizeFixed,
			Filters: []domain.FilterGroup{
				{Platform: ptr("pump")},
			},
		},
		CooldownSeconds: 60,
		MaxExecutions:   3,
		Dex:             "pumpfun",
		WalletIDs:       []string{"w1", "w2"},
		CreatedAt:       1704067200000,
		UpdatedAt:       1704067200000,
	}
}

func testCopyProfile(id string) *domain.TradingProfile {
	mirror := domain.DirectionSell
	return &domain.TradingProfile{
		ID:     id,
		Name:   "follow whale",
		Kind:   domain.ProfileCopy,
		Active: true,
		Copy: &domain.CopyConfig{
			WalletAddresses: []string{"WhaleWallet1"},
			SizeMode:        domain.CopyMultiplier,
			Multiplier:      0.1,
			MirrorTradeType: &mirror,
			TokenFilterMode: domain.TokensSpecific,
			AllowedTokens:   []string{"MintA"},
			DeniedTokens:    []string{"MintBad"},
		},
		Dex:       "raydium",
		WalletIDs: []string{"w1"},
		CreatedAt: 1704067200001,
		UpdatedAt: 1704067200001,
	}
}

func TestProfileStore_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewProfileStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSniperProfile("p1")))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "pump deploys", got.Name)
	assert.Equal(t, domain.ProfileSniper, got.Kind)
	require.NotNil(t, got.Sniper)
	assert.Equal(t, 0.05, got.Sniper.BuyAmountSOL)
	require.Len(t, got.Sniper.Filters, 1)
	require.NotNil(t, got.Sniper.Filters[0].Platform)
	assert.Equal(t, "pump", *got.Sniper.Filters[0].Platform)
	assert.Equal(t, []string{"w1", "w2"}, got.WalletIDs)
	assert.Nil(t, got.Copy)
}

func TestProfileStore_CopyConfigRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewProfileStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testCopyProfile("c1")))

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got.Copy)
	assert.Equal(t, []string{"WhaleWallet1"}, got.Copy.WalletAddresses)
	assert.Equal(t, domain.CopyMultiplier, got.Copy.SizeMode)
	assert.Equal(t, 0.1, got.Copy.Multiplier)
	require.NotNil(t, got.Copy.MirrorTradeType)
	assert.Equal(t, domain.DirectionSell, *got.Copy.MirrorTradeType)
	assert.Equal(t, domain.TokensSpecific, got.Copy.TokenFilterMode)
	assert.Equal(t, []string{"MintBad"}, got.Copy.DeniedTokens)
	assert.Nil(t, got.Sniper)
}

func TestProfileStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewProfileStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSniperProfile("p1")))
	err := store.Create(ctx, testSniperProfile("p1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestProfileStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewProfileStore(pool)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.Update(ctx, testSniperProfile("missing")), storage.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), storage.ErrNotFound)
}

func TestProfileStore_UpdateBookkeeping(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewProfileStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSniperProfile("p1")))

	upd := testSniperProfile("p1")
	upd.ExecutionCount = 2
	upd.LastExecutedAt = ptr(int64(1704067260000))
	require.NoError(t, store.Update(ctx, upd))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExecutionCount)
	require.NotNil(t, got.LastExecutedAt)
	assert.Equal(t, int64(1704067260000), *got.LastExecutedAt)
	assert.Greater(t, got.UpdatedAt, int64(1704067200000))
}

func TestProfileStore_ListOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewProfileStore(pool)
	ctx := context.Background()

	p1 := testSniperProfile("b")
	p1.CreatedAt = 2000
	p2 := testCopyProfile("a")
	p2.CreatedAt = 1000
	p3 := testSniperProfile("c")
	p3.CreatedAt = 2000

	for _, p := range []*domain.TradingProfile{p1, p2, p3} {
		require.NoError(t, store.Create(ctx, p))
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestProfileStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewProfileStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSniperProfile("p1")))
	require.NoError(t, store.Delete(ctx, "p1"))

	_, err := store.Get(ctx, "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
