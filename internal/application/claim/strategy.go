// internal/application/claim/strategy.go
package claim

import (
	"context"
	"fmt"
	"time"

	"tokenclaim/internal/domain/address"
	claimdom "tokenclaim/internal/domain/claim"
)

// PaymentStrategy is the only part of the flow that differs between the free
// airdrop and the paid sale.
type PaymentStrategy interface {
	Variant() claimdom.Variant

	// Amount returns the base units the claim transfers.
	Amount(req claimdom.Request) (uint64, error)

	// Settle verifies (and, when a PaymentLedger is wired, reserves) the
	// payment. undo releases the reservation if the claim fails later.
	Settle(ctx context.Context, req claimdom.Request, treasuryNative string, now time.Time) (undo func(), err error)
}

func noopUndo() {}

type noPayment struct {
	amount uint64
}

// NoPayment transfers a fixed amount and verifies nothing.
func NoPayment(amountBaseUnits uint64) PaymentStrategy {
	return noPayment{amount: amountBaseUnits}
}

func (noPayment) Variant() claimdom.Variant { return claimdom.VariantFree }

func (s noPayment) Amount(claimdom.Request) (uint64, error) {
	if s.amount == 0 {
		return 0, fmt.Errorf("%w: claim amount is zero", claimdom.ErrNotConfigured)
	}
	return s.amount, nil
}

func (noPayment) Settle(context.Context, claimdom.Request, string, time.Time) (func(), error) {
	return noopUndo, nil
}

type onChainPayment struct {
	verifier *PaymentVerifier
	payments PaymentLedger // optional
	decimals uint8
	price    uint64 // lamports per whole token, 0 = trust expectedLamports
}

// OnChainPayment transfers tokenAmount*10^decimals once a matching SOL
// payment to the treasury is found on the ledger.
func OnChainPayment(verifier *PaymentVerifier, payments PaymentLedger, decimals uint8, priceLamportsPerToken uint64) PaymentStrategy {
	return onChainPayment{
		verifier: verifier,
		payments: payments,
		decimals: decimals,
		price:    priceLamportsPerToken,
	}
}

func (onChainPayment) Variant() claimdom.Variant { return claimdom.VariantPaid }

func (s onChainPayment) Amount(req claimdom.Request) (uint64, error) {
	if req.Payment == nil {
		return 0, claimdom.ErrMissingParameters
	}
	return claimdom.ScaleToBaseUnits(req.Payment.TokenAmount, s.decimals)
}

func (s onChainPayment) Settle(ctx context.Context, req claimdom.Request, treasuryNative string, now time.Time) (func(), error) {
	p := req.Payment
	if p == nil {
		return noopUndo, claimdom.ErrMissingParameters
	}
	sig, err := address.ParseSignature(p.Signature)
	if err != nil {
		return noopUndo, err
	}

	minimum := p.ExpectedLamports
	if floor := claimdom.MulLamports(s.price, p.TokenAmount); floor > minimum {
		minimum = floor
	}

	if _, err := s.verifier.Verify(ctx, PaymentCheck{
		Signature: sig,
		Treasury:  treasuryNative,
		Minimum:   minimum,
	}); err != nil {
		return noopUndo, err
	}

	if s.payments == nil {
		return noopUndo, nil
	}
	fresh, err := s.payments.ConsumePayment(ctx, sig, req.Claimant, now)
	if err != nil {
		return noopUndo, err
	}
	if !fresh {
		// Binding predates this request; a failed retry must not drop it.
		return noopUndo, nil
	}
	return func() {
		if rerr := s.payments.RestorePayment(context.Background(), sig); rerr != nil {
			ucLog.WithError(rerr).WithField("payment", address.MaskShort(sig)).Warn("restore payment failed")
		}
	}, nil
}
