package idhash

import (
	"testing"

	"solana-autopilot/internal/domain"
)

func TestComputeEventID(t *testing.T) {
	tests := []struct {
		name       string
		kind       domain.EventKind
		mint       string
		signer     string
		signature  string
		slot       int64
		observedAt int64
	}{
		{
			name:       "deploy event",
			kind:       domain.EventDeploy,
			mint:       "TokenMint123ABC",
			signer:     "Deployer456DEF",
			signature:  "TxSig789GHI",
			slot:       12345678,
			observedAt: 1700000000000,
		},
		{
			name:       "trade without slot",
			kind:       domain.EventTrade,
			mint:       "AnotherMint999",
			signer:     "Trader111",
			signature:  "",
			slot:       0,
			observedAt: 1700000123456,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeEventID(tt.kind, tt.mint, tt.signer, tt.signature, tt.slot, tt.observedAt)

			if len(got) != 64 {
				t.Errorf("ComputeEventID() length = %d, want 64", len(got))
			}

			// Same inputs should produce same output
			got2 := ComputeEventID(tt.kind, tt.mint, tt.signer, tt.signature, tt.slot, tt.observedAt)
			if got != got2 {
				t.Errorf("ComputeEventID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeEventID_DifferentInputs(t *testing.T) {
	base := ComputeEventID(domain.EventTrade, "Mint", "Signer", "Tx", 1000, 1700000000000)

	diffKind := ComputeEventID(domain.EventDeploy, "Mint", "Signer", "Tx", 1000, 1700000000000)
	if base == diffKind {
		t.Error("Different kind should produce different hash")
	}

	diffMint := ComputeEventID(domain.EventTrade, "OtherMint", "Signer", "Tx", 1000, 1700000000000)
	if base == diffMint {
		t.Error("Different mint should produce different hash")
	}

	diffSlot := ComputeEventID(domain.EventTrade, "Mint", "Signer", "Tx", 2000, 1700000000000)
	if base == diffSlot {
		t.Error("Different slot should produce different hash")
	}

	diffTime := ComputeEventID(domain.EventTrade, "Mint", "Signer", "Tx", 1000, 1700000099999)
	if base == diffTime {
		t.Error("Different observed_at should produce different hash")
	}
}

func TestComputeExecutionID(t *testing.T) {
	base := ComputeExecutionID("profile-1", "event-1", 1700000000000)
	if len(base) != 64 {
		t.Errorf("ComputeExecutionID() length = %d, want 64", len(base))
	}
	if base != ComputeExecutionID("profile-1", "event-1", 1700000000000) {
		t.Error("ComputeExecutionID() not deterministic")
	}
	if base == ComputeExecutionID("profile-2", "event-1", 1700000000000) {
		t.Error("Different profile should produce different hash")
	}
}
