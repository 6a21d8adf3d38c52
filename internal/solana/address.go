package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// addressLen is the raw byte length of a Solana public key.
const addressLen = 32

// DecodeAddress decodes a base58 Solana address and checks its length.
func DecodeAddress(addr string) ([]byte, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty address")
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(raw) != addressLen {
		return nil, fmt.Errorf("address %q decodes to %d bytes, want %d", addr, len(raw), addressLen)
	}
	return raw, nil
}

// ValidAddress reports whether addr is a well-formed base58 32-byte key.
func ValidAddress(addr string) bool {
	_, err := DecodeAddress(addr)
	return err == nil
}

// IsOnCurve reports whether the address is a point on the ed25519 curve.
// Wallet keys live on the curve; program derived addresses do not.
func IsOnCurve(addr string) bool {
	raw, err := DecodeAddress(addr)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// ValidateAddresses checks a list of addresses and names the first bad one.
func ValidateAddresses(addrs []string) error {
	for _, a := range addrs {
		if _, err := DecodeAddress(a); err != nil {
			return err
		}
	}
	return nil
}
