package token

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidAddress is returned for strings that are not valid Solana
// wallet addresses.
var ErrInvalidAddress = errors.New("invalid wallet address")

// ValidateWalletAddress checks that addr is a base58-encoded 32-byte
// ed25519 public key on the curve. Program-derived addresses are off the
// curve and cannot receive transfers directly, so they are rejected too.
func ValidateWalletAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: decoded to %d bytes, want 32", ErrInvalidAddress, len(raw))
	}

	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%w: not on curve", ErrInvalidAddress)
	}
	return nil
}
