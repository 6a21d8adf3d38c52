package match

import (
	"strings"

	"solana-autopilot/internal/domain"
)

// Decision reason labels. The first failing gate wins; an eligible
// decision carries an empty reason.
const (
	ReasonInactive        = "inactive"
	ReasonEventMismatch   = "event_mismatch"
	ReasonCooldown        = "cooldown"
	ReasonExecutionCap    = "execution_cap"
	ReasonFilteredOut     = "filtered_out"
	ReasonTokenDenied     = "token_denied"
	ReasonTokenNotAllowed = "token_not_allowed"
)

// Decision is the outcome of evaluating one profile against one event.
type Decision struct {
	Profile  *domain.TradingProfile
	Eligible bool
	Reason   string
}

// Match evaluates every profile against the event and returns one decision
// per profile, in input order. It is pure: no clock, no stores, no
// mutation. now is the evaluation timestamp in Unix milliseconds.
//
// Gates run in a fixed order and the first failure decides the reason:
// active flag, event compatibility, cooldown, execution cap, then the
// kind-specific filters.
func Match(ev *domain.StreamEvent, profiles []*domain.TradingProfile, now int64) []Decision {
	decisions := make([]Decision, 0, len(profiles))
	for _, p := range profiles {
		decisions = append(decisions, evaluate(ev, p, now))
	}
	return decisions
}

func evaluate(ev *domain.StreamEvent, p *domain.TradingProfile, now int64) Decision {
	d := Decision{Profile: p}

	if !p.Active {
		d.Reason = ReasonInactive
		return d
	}

	switch p.Kind {
	case domain.ProfileSniper:
		if p.Sniper == nil || !p.Sniper.EventScope.Accepts(ev.Kind) {
			d.Reason = ReasonEventMismatch
			return d
		}
	case domain.ProfileCopy:
		if !ev.Kind.IsTrade() || !p.FollowsSigner(ev.Signer) {
			d.Reason = ReasonEventMismatch
			return d
		}
	default:
		d.Reason = ReasonEventMismatch
		return d
	}

	if p.InCooldown(now) {
		d.Reason = ReasonCooldown
		return d
	}

	if p.AtExecutionCap() {
		d.Reason = ReasonExecutionCap
		return d
	}

	switch p.Kind {
	case domain.ProfileSniper:
		if !sniperFiltersPass(p.Sniper.Filters, ev) {
			d.Reason = ReasonFilteredOut
			return d
		}
	case domain.ProfileCopy:
		if reason := copyTokenFilter(p.Copy, ev.TokenMint); reason != "" {
			d.Reason = reason
			return d
		}
	}

	d.Eligible = true
	return d
}

// sniperFiltersPass applies the filter groups. Groups OR together; inside
// a group every set field must match. No groups means no filtering.
func sniperFiltersPass(groups []domain.FilterGroup, ev *domain.StreamEvent) bool {
	if len(groups) == 0 {
		return true
	}
	for _, g := range groups {
		if groupMatches(g, ev) {
			return true
		}
	}
	return false
}

func groupMatches(g domain.FilterGroup, ev *domain.StreamEvent) bool {
	if g.Platform != nil && !strings.EqualFold(*g.Platform, ev.Platform) {
		return false
	}
	if g.TokenMint != nil && *g.TokenMint != ev.TokenMint {
		return false
	}
	if g.Signer != nil && *g.Signer != ev.Signer {
		return false
	}
	return true
}

// copyTokenFilter applies the deny list first, then the allow list when
// the profile is in specific mode. Returns the rejection reason or "".
func copyTokenFilter(c *domain.CopyConfig, mint string) string {
	for _, denied := range c.DeniedTokens {
		if denied == mint && mint != "" {
			return ReasonTokenDenied
		}
	}
	if c.TokenFilterMode == domain.TokensSpecific {
		for _, allowed := range c.AllowedTokens {
			if allowed == mint {
				return ""
			}
		}
		return ReasonTokenNotAllowed
	}
	return ""
}
