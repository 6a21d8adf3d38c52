package protocol

import (
	"math"
	"strconv"
	"strings"

	"solana-autopilot/internal/domain"
)

// fieldPath is one key path into the frame payload. Paths with two elements
// descend into a nested object.
type fieldPath []string

// Providers have shipped the same datum under several names and nesting
// levels over time. Each chain is ordered most-specific first; the first
// path that resolves to a usable value wins.
var (
	tokenMintPaths = []fieldPath{
		{"transaction", "tokenMint"},
		{"transaction", "mint"},
		{"tokenMint"},
		{"mint"},
	}

	signerPaths = []fieldPath{
		{"transaction", "signer"},
		{"transaction", "feePayer"},
		{"signer"},
		{"feePayer"},
		{"wallet"},
		{"traderPublicKey"},
	}

	platformPaths = []fieldPath{
		{"transaction", "platform"},
		{"platform"},
		{"pool"},
		{"dex"},
	}

	solAmountPaths = []fieldPath{
		{"transaction", "solAmount"},
		{"solAmount"},
		{"sol_amount"},
		{"amount"},
	}

	tokenAmountPaths = []fieldPath{
		{"transaction", "tokenAmount"},
		{"tokenAmount"},
		{"newTokenBalance"},
	}

	avgPricePaths = []fieldPath{
		{"transaction", "avgPrice"},
		{"avgPrice"},
		{"price"},
	}

	sellPercentPaths = []fieldPath{
		{"transaction", "sellPercent"},
		{"sellPercent"},
	}

	slotPaths = []fieldPath{
		{"transaction", "slot"},
		{"slot"},
	}

	signaturePaths = []fieldPath{
		{"transaction", "signature"},
		{"signature"},
		{"txSignature"},
	}

	errorMessagePaths = []fieldPath{
		{"message"},
		{"error"},
		{"reason"},
	}

	// directionKeys are scanned in order; the first value that reads as
	// buy or sell decides the trade direction.
	directionKeys = []string{"type", "transactionType", "tradeType", "txType", "side"}
)

func lookup(payload map[string]any, paths []fieldPath) (any, bool) {
	for _, path := range paths {
		cur := any(payload)
		found := true
		for _, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				found = false
				break
			}
			v, present := m[key]
			if !present || v == nil {
				found = false
				break
			}
			cur = v
		}
		if found {
			return cur, true
		}
	}
	return nil, false
}

// firstString walks the chain and returns the first non-empty string value.
func firstString(payload map[string]any, paths []fieldPath) string {
	for _, path := range paths {
		v, ok := lookup(payload, []fieldPath{path})
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				return s
			}
		}
	}
	return ""
}

// firstNumber walks the chain and returns the first value that parses as a
// finite number, or def when none does.
func firstNumber(payload map[string]any, paths []fieldPath, def float64) float64 {
	for _, path := range paths {
		v, ok := lookup(payload, []fieldPath{path})
		if !ok {
			continue
		}
		if n, ok := asNumber(v); ok {
			return n
		}
	}
	return def
}

// Number coerces a single payload value to float64. Providers send numerics
// both as JSON numbers and as numeric strings; anything else, including NaN
// and infinities, falls back to def.
func Number(v any, def float64) float64 {
	if n, ok := asNumber(v); ok {
		return n
	}
	return def
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// direction resolves the trade side. The first direction key whose value
// reads as buy or sell wins; when none does the direction defaults to buy
// and drifted is true so callers can count provider schema drift.
func direction(payload map[string]any) (dir domain.TradeDirection, drifted bool) {
	scan := func(m map[string]any) (domain.TradeDirection, bool) {
		for _, key := range directionKeys {
			v, ok := m[key]
			if !ok {
				continue
			}
			s, ok := v.(string)
			if !ok {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "buy":
				return domain.DirectionBuy, true
			case "sell":
				return domain.DirectionSell, true
			}
		}
		return "", false
	}

	if tx, ok := payload["transaction"].(map[string]any); ok {
		if d, ok := scan(tx); ok {
			return d, false
		}
	}
	if d, ok := scan(payload); ok {
		return d, false
	}
	return domain.DirectionBuy, true
}
