package domain

// ProfileKind distinguishes the two automation strategies.
type ProfileKind string

const (
	ProfileSniper ProfileKind = "sniper"
	ProfileCopy   ProfileKind = "copy"
)

// String returns the string representation of ProfileKind.
func (k ProfileKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k ProfileKind) IsValid() bool {
	return k == ProfileSniper || k == ProfileCopy
}

// SniperEventScope selects which lifecycle events a sniper profile reacts to.
type SniperEventScope string

const (
	ScopeDeploy    SniperEventScope = "deploy"
	ScopeMigration SniperEventScope = "migration"
	ScopeBoth      SniperEventScope = "both"
)

// IsValid checks if the scope is a valid value.
func (s SniperEventScope) IsValid() bool {
	return s == ScopeDeploy || s == ScopeMigration || s == ScopeBoth
}

// Accepts reports whether an event kind falls inside the scope.
func (s SniperEventScope) Accepts(kind EventKind) bool {
	switch s {
	case ScopeDeploy:
		return kind == EventDeploy
	case ScopeMigration:
		return kind == EventMigration
	case ScopeBoth:
		return kind == EventDeploy || kind == EventMigration
	}
	return false
}

// SizeMode controls sniper position sizing.
type SizeMode string

const (
	SizeFixed      SizeMode = "fixed"      // spend BuyAmountSOL
	SizePercentage SizeMode = "percentage" // spend % of first wallet balance
)

// IsValid checks if the mode is a valid value.
func (m SizeMode) IsValid() bool {
	return m == SizeFixed || m == SizePercentage
}

// CopySizeMode controls copy-trade sizing.
type CopySizeMode string

const (
	CopyMirror     CopySizeMode = "mirror"     // same amount, same direction
	CopyMultiplier CopySizeMode = "multiplier" // observed amount scaled by Multiplier
)

// IsValid checks if the mode is a valid value.
func (m CopySizeMode) IsValid() bool {
	return m == CopyMirror || m == CopyMultiplier
}

// TokenFilterMode controls the copy-trade token allow list.
type TokenFilterMode string

const (
	TokensAll      TokenFilterMode = "all"
	TokensSpecific TokenFilterMode = "specific"
)

// IsValid checks if the mode is a valid value.
func (m TokenFilterMode) IsValid() bool {
	return m == TokensAll || m == TokensSpecific
}

// FilterGroup is one sniper filter clause. Fields that are nil impose no
// constraint; fields that are set must ALL match the event.
type FilterGroup struct {
	Platform  *string // venue label, compared case-insensitively
	TokenMint *string // exact mint address
	Signer    *string // exact deployer / signer address
}

// Empty reports whether the group constrains nothing.
func (g FilterGroup) Empty() bool {
	return g.Platform == nil && g.TokenMint == nil && g.Signer == nil
}

// SniperConfig holds sniper-specific settings.
type SniperConfig struct {
	EventScope          SniperEventScope // deploy | migration | both
	BuyAmountSOL        float64          // fixed size in SOL
	SizeMode            SizeMode         // fixed | percentage
	PercentageOfBalance float64          // used when SizeMode == percentage
	Filters             []FilterGroup    // groups OR together; empty means no filtering
}

// CopyConfig holds copy-trade settings.
type CopyConfig struct {
	WalletAddresses []string        // signers to follow
	SizeMode        CopySizeMode    // mirror | multiplier
	Multiplier      float64         // used when SizeMode == multiplier
	MirrorTradeType *TradeDirection // forces a direction; nil follows the observed trade
	TokenFilterMode TokenFilterMode // all | specific
	AllowedTokens   []string        // required members when mode == specific
	DeniedTokens    []string        // always rejected
}

// TradingProfile is one user automation rule set.
// Corresponds to the trading_profiles table in PostgreSQL.
type TradingProfile struct {
	ID              string        // PRIMARY KEY
	Name            string        // display name
	Kind            ProfileKind   // sniper | copy
	Active          bool          // inactive profiles never match
	Sniper          *SniperConfig // set when Kind == sniper
	Copy            *CopyConfig   // set when Kind == copy
	CooldownSeconds int           // cooldown component, seconds
	CooldownMinutes int           // cooldown component, minutes
	MaxExecutions   int           // 0 means uncapped
	ExecutionCount  int           // lifetime successful executions
	LastExecutedAt  *int64        // Unix ms of last successful execution (nullable)
	Dex             string        // execution venue passed to the executor
	WalletIDs       []string      // wallets the executor trades with
	CreatedAt       int64         // record creation timestamp (ms)
	UpdatedAt       int64         // last update timestamp (ms)
}

// CooldownMS returns the effective cooldown window in milliseconds.
func (p *TradingProfile) CooldownMS() int64 {
	return int64(p.CooldownSeconds)*1000 + int64(p.CooldownMinutes)*60_000
}

// AtExecutionCap reports whether the profile has used up its execution budget.
func (p *TradingProfile) AtExecutionCap() bool {
	return p.MaxExecutions > 0 && p.ExecutionCount >= p.MaxExecutions
}

// InCooldown reports whether now (Unix ms) falls inside the cooldown window
// that started at LastExecutedAt.
func (p *TradingProfile) InCooldown(now int64) bool {
	if p.LastExecutedAt == nil {
		return false
	}
	cd := p.CooldownMS()
	if cd <= 0 {
		return false
	}
	return now-*p.LastExecutedAt < cd
}

// FollowsSigner reports whether a copy profile tracks the given signer.
func (p *TradingProfile) FollowsSigner(signer string) bool {
	if p.Copy == nil || signer == "" {
		return false
	}
	for _, w := range p.Copy.WalletAddresses {
		if w == signer {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores hand out clones so callers cannot
// mutate shared state.
func (p *TradingProfile) Clone() *TradingProfile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.LastExecutedAt != nil {
		v := *p.LastExecutedAt
		cp.LastExecutedAt = &v
	}
	if p.WalletIDs != nil {
		cp.WalletIDs = append([]string(nil), p.WalletIDs...)
	}
	if p.Sniper != nil {
		s := *p.Sniper
		s.Filters = make([]FilterGroup, len(p.Sniper.Filters))
		for i, g := range p.Sniper.Filters {
			s.Filters[i] = FilterGroup{
				Platform:  cloneStr(g.Platform),
				TokenMint: cloneStr(g.TokenMint),
				Signer:    cloneStr(g.Signer),
			}
		}
		cp.Sniper = &s
	}
	if p.Copy != nil {
		c := *p.Copy
		c.WalletAddresses = append([]string(nil), p.Copy.WalletAddresses...)
		c.AllowedTokens = append([]string(nil), p.Copy.AllowedTokens...)
		c.DeniedTokens = append([]string(nil), p.Copy.DeniedTokens...)
		if p.Copy.MirrorTradeType != nil {
			d := *p.Copy.MirrorTradeType
			c.MirrorTradeType = &d
		}
		cp.Copy = &c
	}
	return &cp
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
