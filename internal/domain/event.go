package domain

import "encoding/json"

// EventKind classifies a normalized stream event.
type EventKind string

const (
	EventDeploy      EventKind = "deploy"
	EventMigration   EventKind = "migration"
	EventTrade       EventKind = "trade"
	EventTransaction EventKind = "transaction"
)

// String returns the string representation of EventKind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a valid value.
func (k EventKind) IsValid() bool {
	switch k {
	case EventDeploy, EventMigration, EventTrade, EventTransaction:
		return true
	}
	return false
}

// IsTrade reports whether the event carries trade activity (trade and
// transaction frames are equivalent on the wire).
func (k EventKind) IsTrade() bool {
	return k == EventTrade || k == EventTransaction
}

// TradeDirection is the side of a trade.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "buy"
	DirectionSell TradeDirection = "sell"
)

// String returns the string representation of TradeDirection.
func (d TradeDirection) String() string {
	return string(d)
}

// IsValid checks if the direction is a valid value.
func (d TradeDirection) IsValid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// StreamEvent is a normalized data frame from the provider stream.
type StreamEvent struct {
	ID           string          // deterministic hash, see idhash
	Kind         EventKind       // deploy | migration | trade | transaction
	TokenMint    string          // token mint address (may be empty on partial frames)
	Signer       string          // transaction signer / fee payer
	Platform     string          // venue label as reported (pump, raydium, ...)
	Direction    TradeDirection  // buy | sell, only meaningful for trades
	SolAmount    float64         // SOL moved in the trade
	TokenAmount  float64         // token units moved
	AvgPriceSOL  float64         // average fill price in SOL
	SellPercent  float64         // provider-reported percent of position sold (0 when absent)
	MarketCapUSD float64         // estimated, 0 when inputs are incomplete
	Slot         int64           // Solana slot number (0 when absent)
	Signature    string          // transaction signature
	ObservedAt   int64           // Unix timestamp in milliseconds
	Raw          json.RawMessage // original frame for the archive
}
