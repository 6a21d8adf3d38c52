package protocol

import (
	"solana-autopilot/internal/domain"
	"solana-autopilot/internal/idhash"
)

// CodecOptions configures frame normalization.
type CodecOptions struct {
	// SolPriceHint and TokenSupplyHint feed the market cap estimate.
	// The estimate is only produced when both hints and the frame's
	// average price are positive.
	SolPriceHint    float64
	TokenSupplyHint float64

	// DirectionDrift is called once per trade frame whose direction could
	// not be read from any known key. Optional.
	DirectionDrift func()
}

// Codec turns decoded frames into normalized stream events. It is
// stateless apart from its options, so one instance is shared by all
// supervisors.
type Codec struct {
	opts CodecOptions
}

// NewCodec creates a codec.
func NewCodec(opts CodecOptions) *Codec {
	return &Codec{opts: opts}
}

// Normalize maps a data frame to a StreamEvent. Control frames and unknown
// frame types return (nil, false); use ClassifyControl for those.
// observedAt is the receive timestamp in Unix milliseconds.
func (c *Codec) Normalize(f *Frame, observedAt int64) (*domain.StreamEvent, bool) {
	var kind domain.EventKind
	switch f.Type {
	case FrameDeploy:
		kind = domain.EventDeploy
	case FrameMigration:
		kind = domain.EventMigration
	case FrameTrade:
		kind = domain.EventTrade
	case FrameTransaction:
		kind = domain.EventTransaction
	default:
		return nil, false
	}

	ev := &domain.StreamEvent{
		Kind:       kind,
		TokenMint:  firstString(f.Payload, tokenMintPaths),
		Signer:     firstString(f.Payload, signerPaths),
		Platform:   firstString(f.Payload, platformPaths),
		Slot:       int64(firstNumber(f.Payload, slotPaths, 0)),
		Signature:  firstString(f.Payload, signaturePaths),
		ObservedAt: observedAt,
		Raw:        f.Raw,
	}

	if kind.IsTrade() {
		dir, drifted := direction(f.Payload)
		ev.Direction = dir
		if drifted && c.opts.DirectionDrift != nil {
			c.opts.DirectionDrift()
		}
		ev.SolAmount = firstNumber(f.Payload, solAmountPaths, 0)
		ev.TokenAmount = firstNumber(f.Payload, tokenAmountPaths, 0)
		ev.SellPercent = firstNumber(f.Payload, sellPercentPaths, 0)
	}

	ev.AvgPriceSOL = c.avgPrice(f.Payload)
	ev.MarketCapUSD = c.marketCap(ev.AvgPriceSOL)
	ev.ID = idhash.ComputeEventID(kind, ev.TokenMint, ev.Signer, ev.Signature, ev.Slot, observedAt)
	return ev, true
}

// avgPrice resolves the fill price, falling back to the bonding curve
// quotient when the frame carries virtual reserves instead of a price.
func (c *Codec) avgPrice(payload map[string]any) float64 {
	if p := firstNumber(payload, avgPricePaths, 0); p > 0 {
		return p
	}
	vSol := firstNumber(payload, []fieldPath{{"vSolInBondingCurve"}}, 0)
	vTokens := firstNumber(payload, []fieldPath{{"vTokensInBondingCurve"}}, 0)
	if vSol > 0 && vTokens > 0 {
		return vSol / vTokens
	}
	return 0
}

// marketCap estimates USD market cap from the average price and the
// configured hints. Any non-positive input disables the estimate.
func (c *Codec) marketCap(avgPrice float64) float64 {
	if avgPrice <= 0 || c.opts.SolPriceHint <= 0 || c.opts.TokenSupplyHint <= 0 {
		return 0
	}
	return avgPrice * c.opts.SolPriceHint * c.opts.TokenSupplyHint
}
