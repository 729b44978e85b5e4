// internal/domain/claim/request.go
package claim

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
)

// signatureSize is the length of an ed25519 transaction signature.
const signatureSize = 64

// PaymentProof is the client's reference to a SOL payment already broadcast.
type PaymentProof struct {
	Signature        string
	TokenAmount      uint64 // whole tokens, scaled by decimals server-side
	ExpectedLamports uint64
}

// Request is one claim attempt. Payment is nil for the free variant.
type Request struct {
	Claimant string
	Payment  *PaymentProof
}

// Variant reports which strategy the request shape selects.
func (r Request) Variant() Variant {
	if r.Payment != nil {
		return VariantPaid
	}
	return VariantFree
}

// Body is the wire shape accepted by the claim endpoint. All fields are
// optional at decode time; the shape decides the variant.
type Body struct {
	Wallet           *string         `json:"wallet,omitempty"`
	Buyer            *string         `json:"buyer,omitempty"`
	TokenAmount      json.RawMessage `json:"tokenAmount,omitempty"`
	SolTxSignature   *string         `json:"solTxSignature,omitempty"`
	ExpectedLamports json.RawMessage `json:"expectedLamports,omitempty"`
}

// IsPaid reports whether any paid-sale field is present.
func (b Body) IsPaid() bool {
	return b.Buyer != nil || b.SolTxSignature != nil || len(b.TokenAmount) > 0 || len(b.ExpectedLamports) > 0
}

// ParseFree validates the free-claim shape.
func ParseFree(b Body) (Request, error) {
	w := trimPtr(b.Wallet)
	if w == "" {
		return Request{}, ErrMissingWallet
	}
	return Request{Claimant: w}, nil
}

// ParsePaid validates the paid-claim shape. Zero amounts count as missing.
func ParsePaid(b Body) (Request, error) {
	buyer := trimPtr(b.Buyer)
	sig := trimPtr(b.SolTxSignature)
	if buyer == "" || sig == "" || isAbsent(b.TokenAmount) || isAbsent(b.ExpectedLamports) {
		return Request{}, ErrMissingParameters
	}

	tokens, err := ParseUint(b.TokenAmount)
	if err != nil {
		return Request{}, fmt.Errorf("tokenAmount: %w", err)
	}
	lamports, err := ParseUint(b.ExpectedLamports)
	if err != nil {
		return Request{}, fmt.Errorf("expectedLamports: %w", err)
	}
	if tokens == 0 || lamports == 0 {
		return Request{}, ErrMissingParameters
	}
	if !IsSignature(sig) {
		return Request{}, fmt.Errorf("%w: solTxSignature", ErrInvalidSignature)
	}

	return Request{
		Claimant: buyer,
		Payment: &PaymentProof{
			Signature:        sig,
			TokenAmount:      tokens,
			ExpectedLamports: lamports,
		},
	}, nil
}

// ParseBody selects the variant from the body shape and validates it.
// forcePaid is set by routes that only serve the paid sale.
func ParseBody(b Body, forcePaid bool) (Request, Variant, error) {
	if forcePaid || b.IsPaid() {
		r, err := ParsePaid(b)
		return r, VariantPaid, err
	}
	r, err := ParseFree(b)
	return r, VariantFree, err
}

// ParseUint accepts a JSON number or a decimal string holding a non-negative
// integer that fits in 64 bits.
func ParseUint(raw json.RawMessage) (uint64, error) {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return 0, ErrInvalidAmount
		}
		s = strings.TrimSpace(inner)
	}
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

// ScaleToBaseUnits converts whole tokens into base units (tokens * 10^decimals),
// failing instead of wrapping on overflow.
func ScaleToBaseUnits(tokens uint64, decimals uint8) (uint64, error) {
	v := new(big.Int).SetUint64(tokens)
	v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %d tokens overflow at %d decimals", ErrInvalidAmount, tokens, decimals)
	}
	return v.Uint64(), nil
}

// MulLamports multiplies a per-token price by a token count, saturating at MaxUint64.
func MulLamports(price, tokens uint64) uint64 {
	if price == 0 || tokens == 0 {
		return 0
	}
	if tokens > math.MaxUint64/price {
		return math.MaxUint64
	}
	return price * tokens
}

// IsSignature reports whether s is a base58 encoded 64-byte signature.
func IsSignature(s string) bool {
	b, err := base58.Decode(strings.TrimSpace(s))
	return err == nil && len(b) == signatureSize
}

func isAbsent(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == `""` || s == "false"
}

func trimPtr(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
