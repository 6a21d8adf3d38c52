package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/solana"
)

// SeedFile is the YAML schema for profile seed files, used by the
// profilectl seed action and the replay tool.
type SeedFile struct {
	Profiles []SeedProfile `yaml:"profiles"`
}

// SeedProfile describes one profile. Zero values fall back to safe
// defaults; the kind-specific block matching Kind is required.
type SeedProfile struct {
	ID              string      `yaml:"id"`     // generated when empty
	Name            string      `yaml:"name"`   // required
	Kind            string      `yaml:"kind"`   // sniper | copy
	Active          *bool       `yaml:"active"` // default true
	Dex             string      `yaml:"dex"`
	WalletIDs       []string    `yaml:"wallet_ids"`
	CooldownSeconds int         `yaml:"cooldown_seconds"`
	CooldownMinutes int         `yaml:"cooldown_minutes"`
	MaxExecutions   int         `yaml:"max_executions"`
	Sniper          *SeedSniper `yaml:"sniper"`
	Copy            *SeedCopy   `yaml:"copy"`
}

// SeedSniper is the sniper block of a seed entry.
type SeedSniper struct {
	EventScope          string       `yaml:"event_scope"` // deploy | migration | both (default both)
	SizeMode            string       `yaml:"size_mode"`   // fixed | percentage (default fixed)
	BuyAmountSOL        float64      `yaml:"buy_amount_sol"`
	PercentageOfBalance float64      `yaml:"percentage_of_balance"`
	Filters             []SeedFilter `yaml:"filters"`
}

// SeedFilter is one filter group; empty fields impose no constraint.
type SeedFilter struct {
	Platform  string `yaml:"platform"`
	TokenMint string `yaml:"token_mint"`
	Signer    string `yaml:"signer"`
}

// SeedCopy is the copy-trade block of a seed entry.
type SeedCopy struct {
	WalletAddresses []string `yaml:"wallet_addresses"`
	SizeMode        string   `yaml:"size_mode"` // mirror | multiplier (default mirror)
	Multiplier      float64  `yaml:"multiplier"`
	MirrorTradeType string   `yaml:"mirror_trade_type"` // buy | sell, empty follows the trade
	TokenFilterMode string   `yaml:"token_filter_mode"` // all | specific (default all)
	AllowedTokens   []string `yaml:"allowed_tokens"`
	DeniedTokens    []string `yaml:"denied_tokens"`
}

// LoadProfiles reads and validates a YAML seed file. now stamps the
// created/updated timestamps so replays can use a virtual clock.
func LoadProfiles(path string, now int64) ([]*domain.TradingProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseProfiles(data, now)
}

// ParseProfiles validates seed YAML and maps it onto domain profiles.
func ParseProfiles(data []byte, now int64) ([]*domain.TradingProfile, error) {
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(sf.Profiles) == 0 {
		return nil, fmt.Errorf("seed file has no profiles")
	}

	profiles := make([]*domain.TradingProfile, 0, len(sf.Profiles))
	seen := make(map[string]struct{}, len(sf.Profiles))
	for i, sp := range sf.Profiles {
		p, err := buildProfile(sp, now)
		if err != nil {
			return nil, fmt.Errorf("profile %d (%s): %w", i+1, sp.Name, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("profile %d (%s): duplicate id %s", i+1, sp.Name, p.ID)
		}
		seen[p.ID] = struct{}{}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func buildProfile(sp SeedProfile, now int64) (*domain.TradingProfile, error) {
	if sp.Name == "" {
		return nil, fmt.Errorf("name is required")
	}

	kind := domain.ProfileKind(sp.Kind)
	if !kind.IsValid() {
		return nil, fmt.Errorf("kind must be sniper or copy, got %q", sp.Kind)
	}

	p := &domain.TradingProfile{
		ID:              sp.ID,
		Name:            sp.Name,
		Kind:            kind,
		Active:          true,
		Dex:             sp.Dex,
		WalletIDs:       sp.WalletIDs,
		CooldownSeconds: sp.CooldownSeconds,
		CooldownMinutes: sp.CooldownMinutes,
		MaxExecutions:   sp.MaxExecutions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if sp.Active != nil {
		p.Active = *sp.Active
	}
	if p.CooldownSeconds < 0 || p.CooldownMinutes < 0 {
		return nil, fmt.Errorf("cooldown components must not be negative")
	}
	if p.MaxExecutions < 0 {
		return nil, fmt.Errorf("max_executions must not be negative")
	}

	switch kind {
	case domain.ProfileSniper:
		if sp.Sniper == nil {
			return nil, fmt.Errorf("sniper block is required for kind sniper")
		}
		cfg, err := buildSniperConfig(sp.Sniper)
		if err != nil {
			return nil, err
		}
		p.Sniper = cfg
	case domain.ProfileCopy:
		if sp.Copy == nil {
			return nil, fmt.Errorf("copy block is required for kind copy")
		}
		cfg, err := buildCopyConfig(sp.Copy)
		if err != nil {
			return nil, err
		}
		p.Copy = cfg
	}
	return p, nil
}

func buildSniperConfig(ss *SeedSniper) (*domain.SniperConfig, error) {
	scope := domain.SniperEventScope(ss.EventScope)
	if ss.EventScope == "" {
		scope = domain.ScopeBoth
	}
	if !scope.IsValid() {
		return nil, fmt.Errorf("sniper.event_scope must be deploy, migration or both, got %q", ss.EventScope)
	}

	mode := domain.SizeMode(ss.SizeMode)
	if ss.SizeMode == "" {
		mode = domain.SizeFixed
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("sniper.size_mode must be fixed or percentage, got %q", ss.SizeMode)
	}
	if mode == domain.SizeFixed && ss.BuyAmountSOL <= 0 {
		return nil, fmt.Errorf("sniper.buy_amount_sol must be positive for fixed sizing")
	}
	if mode == domain.SizePercentage && (ss.PercentageOfBalance <= 0 || ss.PercentageOfBalance > 100) {
		return nil, fmt.Errorf("sniper.percentage_of_balance must be in (0, 100]")
	}

	cfg := &domain.SniperConfig{
		EventScope:          scope,
		BuyAmountSOL:        ss.BuyAmountSOL,
		SizeMode:            mode,
		PercentageOfBalance: ss.PercentageOfBalance,
	}
	for _, f := range ss.Filters {
		g := domain.FilterGroup{
			Platform:  optStr(f.Platform),
			TokenMint: optStr(f.TokenMint),
			Signer:    optStr(f.Signer),
		}
		if g.Empty() {
			return nil, fmt.Errorf("sniper.filters contains an empty group")
		}
		cfg.Filters = append(cfg.Filters, g)
	}
	return cfg, nil
}

func buildCopyConfig(sc *SeedCopy) (*domain.CopyConfig, error) {
	if len(sc.WalletAddresses) == 0 {
		return nil, fmt.Errorf("copy.wallet_addresses must list at least one signer")
	}
	// Followed wallets become stream subscription keys, so they must be
	// well-formed addresses.
	if err := solana.ValidateAddresses(sc.WalletAddresses); err != nil {
		return nil, fmt.Errorf("copy.wallet_addresses: %w", err)
	}

	mode := domain.CopySizeMode(sc.SizeMode)
	if sc.SizeMode == "" {
		mode = domain.CopyMirror
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("copy.size_mode must be mirror or multiplier, got %q", sc.SizeMode)
	}
	if mode == domain.CopyMultiplier && sc.Multiplier <= 0 {
		return nil, fmt.Errorf("copy.multiplier must be positive for multiplier sizing")
	}

	filterMode := domain.TokenFilterMode(sc.TokenFilterMode)
	if sc.TokenFilterMode == "" {
		filterMode = domain.TokensAll
	}
	if !filterMode.IsValid() {
		return nil, fmt.Errorf("copy.token_filter_mode must be all or specific, got %q", sc.TokenFilterMode)
	}
	if filterMode == domain.TokensSpecific && len(sc.AllowedTokens) == 0 {
		return nil, fmt.Errorf("copy.allowed_tokens is required when token_filter_mode is specific")
	}

	cfg := &domain.CopyConfig{
		WalletAddresses: sc.WalletAddresses,
		SizeMode:        mode,
		Multiplier:      sc.Multiplier,
		TokenFilterMode: filterMode,
		AllowedTokens:   sc.AllowedTokens,
		DeniedTokens:    sc.DeniedTokens,
	}
	if sc.MirrorTradeType != "" {
		dir := domain.TradeDirection(sc.MirrorTradeType)
		if dir != domain.DirectionBuy && dir != domain.DirectionSell {
			return nil, fmt.Errorf("copy.mirror_trade_type must be buy or sell, got %q", sc.MirrorTradeType)
		}
		cfg.MirrorTradeType = &dir
	}
	return cfg, nil
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
