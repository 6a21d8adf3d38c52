package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-autopilot/internal/domain"
)

// Well-known mainnet addresses standing in for followed wallets.
const (
	seedWalletA = "So11111111111111111111111111111111111111112"
	seedWalletB = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

const seedYAML = `
profiles:
  - name: pump sniper
    kind: sniper
    dex: pumpfun
    wallet_ids: [wallet-1]
    cooldown_seconds: 30
    max_executions: 10
    sniper:
      event_scope: deploy
      buy_amount_sol: 0.05
      filters:
        - platform: pump
  - name: follow whale
    kind: copy
    active: false
    copy:
      wallet_addresses: ["` + seedWalletA + `", "` + seedWalletB + `"]
      size_mode: multiplier
      multiplier: 0.1
      mirror_trade_type: sell
`

func TestParseProfilesMapsFields(t *testing.T) {
	profiles, err := ParseProfiles([]byte(seedYAML), 1000)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	sniper := profiles[0]
	assert.NotEmpty(t, sniper.ID, "missing id should be generated")
	assert.Equal(t, "pump sniper", sniper.Name)
	assert.Equal(t, domain.ProfileSniper, sniper.Kind)
	assert.True(t, sniper.Active, "active defaults to true")
	assert.Equal(t, "pumpfun", sniper.Dex)
	assert.Equal(t, []string{"wallet-1"}, sniper.WalletIDs)
	assert.Equal(t, 30, sniper.CooldownSeconds)
	assert.Equal(t, 10, sniper.MaxExecutions)
	assert.Equal(t, int64(1000), sniper.CreatedAt)
	assert.Equal(t, int64(1000), sniper.UpdatedAt)

	require.NotNil(t, sniper.Sniper)
	assert.Equal(t, domain.ScopeDeploy, sniper.Sniper.EventScope)
	assert.Equal(t, domain.SizeFixed, sniper.Sniper.SizeMode, "size mode defaults to fixed")
	assert.Equal(t, 0.05, sniper.Sniper.BuyAmountSOL)
	require.Len(t, sniper.Sniper.Filters, 1)
	require.NotNil(t, sniper.Sniper.Filters[0].Platform)
	assert.Equal(t, "pump", *sniper.Sniper.Filters[0].Platform)
	assert.Nil(t, sniper.Sniper.Filters[0].TokenMint)

	follower := profiles[1]
	assert.Equal(t, domain.ProfileCopy, follower.Kind)
	assert.False(t, follower.Active)
	require.NotNil(t, follower.Copy)
	assert.Equal(t, []string{seedWalletA, seedWalletB}, follower.Copy.WalletAddresses)
	assert.Equal(t, domain.CopyMultiplier, follower.Copy.SizeMode)
	assert.Equal(t, 0.1, follower.Copy.Multiplier)
	assert.Equal(t, domain.TokensAll, follower.Copy.TokenFilterMode, "filter mode defaults to all")
	require.NotNil(t, follower.Copy.MirrorTradeType)
	assert.Equal(t, domain.DirectionSell, *follower.Copy.MirrorTradeType)
}

func TestParseProfilesSniperDefaults(t *testing.T) {
	profiles, err := ParseProfiles([]byte(`
profiles:
  - name: bare sniper
    kind: sniper
    sniper:
      buy_amount_sol: 1
`), 1)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, domain.ScopeBoth, profiles[0].Sniper.EventScope)
	assert.Equal(t, domain.SizeFixed, profiles[0].Sniper.SizeMode)
}

func TestParseProfilesValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "profiles:\n  - kind: sniper\n    sniper: {buy_amount_sol: 1}\n",
			wantErr: "name is required",
		},
		{
			name:    "bad kind",
			yaml:    "profiles:\n  - name: x\n    kind: grid\n",
			wantErr: "kind must be sniper or copy",
		},
		{
			name:    "sniper without block",
			yaml:    "profiles:\n  - name: x\n    kind: sniper\n",
			wantErr: "sniper block is required",
		},
		{
			name:    "fixed sizing without amount",
			yaml:    "profiles:\n  - name: x\n    kind: sniper\n    sniper: {size_mode: fixed}\n",
			wantErr: "buy_amount_sol must be positive",
		},
		{
			name:    "percentage out of range",
			yaml:    "profiles:\n  - name: x\n    kind: sniper\n    sniper: {size_mode: percentage, percentage_of_balance: 150}\n",
			wantErr: "percentage_of_balance must be in (0, 100]",
		},
		{
			name:    "empty filter group",
			yaml:    "profiles:\n  - name: x\n    kind: sniper\n    sniper:\n      buy_amount_sol: 1\n      filters:\n        - {}\n",
			wantErr: "empty group",
		},
		{
			name:    "copy without wallets",
			yaml:    "profiles:\n  - name: x\n    kind: copy\n    copy: {size_mode: mirror}\n",
			wantErr: "at least one signer",
		},
		{
			name:    "copy with malformed wallet",
			yaml:    "profiles:\n  - name: x\n    kind: copy\n    copy:\n      wallet_addresses: [\"not-base58!!\"]\n",
			wantErr: "wallet_addresses",
		},
		{
			name:    "multiplier sizing without multiplier",
			yaml:    "profiles:\n  - name: x\n    kind: copy\n    copy:\n      wallet_addresses: [\"" + seedWalletA + "\"]\n      size_mode: multiplier\n",
			wantErr: "multiplier must be positive",
		},
		{
			name:    "specific tokens without allow list",
			yaml:    "profiles:\n  - name: x\n    kind: copy\n    copy:\n      wallet_addresses: [\"" + seedWalletA + "\"]\n      token_filter_mode: specific\n",
			wantErr: "allowed_tokens is required",
		},
		{
			name:    "bad mirror trade type",
			yaml:    "profiles:\n  - name: x\n    kind: copy\n    copy:\n      wallet_addresses: [\"" + seedWalletA + "\"]\n      mirror_trade_type: hold\n",
			wantErr: "mirror_trade_type must be buy or sell",
		},
		{
			name:    "negative cooldown",
			yaml:    "profiles:\n  - name: x\n    kind: sniper\n    cooldown_seconds: -1\n    sniper: {buy_amount_sol: 1}\n",
			wantErr: "cooldown components",
		},
		{
			name: "duplicate ids",
			yaml: "profiles:\n" +
				"  - {name: a, id: p-1, kind: sniper, sniper: {buy_amount_sol: 1}}\n" +
				"  - {name: b, id: p-1, kind: sniper, sniper: {buy_amount_sol: 1}}\n",
			wantErr: "duplicate id",
		},
		{
			name:    "empty file",
			yaml:    "profiles: []\n",
			wantErr: "no profiles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfiles([]byte(tt.yaml), 1)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadProfilesMissingFile(t *testing.T) {
	_, err := LoadProfiles("/nonexistent/profiles.yaml", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read seed file")
}
