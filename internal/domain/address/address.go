// internal/domain/address/address.go
package address

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/mr-tron/base58"

	claimdom "tokenclaim/internal/domain/claim"
)

const publicKeySize = ed25519.PublicKeySize

// ParseAddress decodes a base58 public key. common.PublicKeyFromString does not
// report malformed input, so the length is checked here.
func ParseAddress(s string) (common.PublicKey, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return common.PublicKey{}, fmt.Errorf("%w: empty", claimdom.ErrInvalidAddress)
	}
	b, err := base58.Decode(t)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("%w: %q: %v", claimdom.ErrInvalidAddress, MaskShort(t), err)
	}
	if len(b) != publicKeySize {
		return common.PublicKey{}, fmt.Errorf("%w: %q decodes to %d bytes", claimdom.ErrInvalidAddress, MaskShort(t), len(b))
	}
	return common.PublicKeyFromBytes(b), nil
}

// ParseSignature validates a base58 transaction signature (64 bytes).
func ParseSignature(s string) (string, error) {
	t := strings.TrimSpace(s)
	if !claimdom.IsSignature(t) {
		return "", fmt.Errorf("%w: %q", claimdom.ErrInvalidSignature, MaskShort(t))
	}
	return t, nil
}

// ResolveTokenAccount returns the associated token account of owner for mint.
// Pure: the same inputs always produce the same address.
func ResolveTokenAccount(owner, mint common.PublicKey) (common.PublicKey, error) {
	ata, _, err := common.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("%w: derive token account: %v", claimdom.ErrInvalidAddress, err)
	}
	return ata, nil
}

// MaskShort keeps the first and last four characters of long identifiers.
func MaskShort(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
