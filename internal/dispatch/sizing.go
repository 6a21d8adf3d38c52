package dispatch

import "solana-autopilot/internal/domain"

// SniperSize computes the buy size in SOL for a sniper profile.
// Fixed mode uses the configured amount as-is; percentage mode takes a
// share of the first wallet's balance. A non-positive result means the
// order is skipped. Pure function for easy testing.
func SniperSize(p *domain.TradingProfile, balance float64) float64 {
	if p.Sniper == nil {
		return 0
	}

	switch p.Sniper.SizeMode {
	case domain.SizePercentage:
		if balance <= 0 {
			return 0
		}
		return balance * p.Sniper.PercentageOfBalance / 100
	default:
		return p.Sniper.BuyAmountSOL
	}
}

// CopySize derives the follower order from the provider's trade.
// Mirror mode repeats the provider's size and sell percent; multiplier
// mode scales both. MirrorTradeType, when set, overrides the direction
// of every copied order. Pure function for easy testing.
func CopySize(c *domain.CopyConfig, ev *domain.StreamEvent) (solAmount, sellPercent float64, dir domain.TradeDirection) {
	dir = ev.Direction
	if c.MirrorTradeType != nil {
		dir = *c.MirrorTradeType
	}

	switch c.SizeMode {
	case domain.CopyMultiplier:
		solAmount = ev.SolAmount * c.Multiplier
		if dir == domain.DirectionSell {
			sellPercent = 100 * c.Multiplier
			if sellPercent > 100 {
				sellPercent = 100
			}
		}
	default:
		solAmount = ev.SolAmount
		if dir == domain.DirectionSell {
			sellPercent = ev.SellPercent
			if sellPercent <= 0 {
				sellPercent = 100
			}
		}
	}

	return solAmount, sellPercent, dir
}
