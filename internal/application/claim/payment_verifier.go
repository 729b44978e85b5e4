// internal/application/claim/payment_verifier.go
package claim

import (
	"context"
	"fmt"
	"strings"

	claimdom "tokenclaim/internal/domain/claim"
)

// PaymentVerifier checks that a referenced SOL transfer credited the treasury
// with at least the expected amount. Client-supplied numbers are only used as
// lower bounds.
type PaymentVerifier struct {
	ledger Ledger
}

func NewPaymentVerifier(ledger Ledger) *PaymentVerifier {
	return &PaymentVerifier{ledger: ledger}
}

type PaymentCheck struct {
	Signature string
	Treasury  string // native address receiving payments (base58)
	Minimum   uint64 // lamports
}

// Verify returns the lamports received by the treasury in the transaction.
func (v *PaymentVerifier) Verify(ctx context.Context, in PaymentCheck) (int64, error) {
	treasury := strings.TrimSpace(in.Treasury)
	if treasury == "" {
		return 0, fmt.Errorf("%w: treasury native address is empty", claimdom.ErrNotConfigured)
	}

	rec, err := v.ledger.PaymentRecord(ctx, in.Signature)
	if err != nil {
		return 0, fmt.Errorf("payment lookup: %w", err)
	}
	if rec == nil {
		return 0, claimdom.ErrPaymentNotFound
	}
	if rec.Failed {
		return 0, claimdom.ErrPaymentFailed
	}

	idx := -1
	for i, k := range rec.AccountKeys {
		if k == treasury {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, claimdom.ErrTreasuryNotInTransaction
	}
	if idx >= len(rec.PreBalances) || idx >= len(rec.PostBalances) {
		return 0, fmt.Errorf("payment %s: balance arrays shorter than account keys", in.Signature)
	}

	received := rec.PostBalances[idx] - rec.PreBalances[idx]
	if received < 0 || uint64(received) < in.Minimum {
		return received, fmt.Errorf("%w: received %d expected %d", claimdom.ErrUnderpaid, received, in.Minimum)
	}
	return received, nil
}
