// internal/application/claim/usecase.go
package claim

/*
Responsibilities:
- Issue a partially signed SPL transfer (treasury -> claimant ATA) for one claim.
- Eligibility is derived from the ledger on every request: the claimant must
  hold zero tokens and the treasury must cover the amount.
- The paid sale additionally proves a SOL payment to the treasury (PaymentStrategy).
- The treasury key is loaded per request and discarded when the request ends.
- Optional ClaimGuard serializes concurrent claims for the same wallet. The lock
  is kept after success and expires with the blockhash validity window.
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/sirupsen/logrus"

	"tokenclaim/internal/domain/address"
	claimdom "tokenclaim/internal/domain/claim"
)

var ucLog = logrus.WithField("component", "claim_uc")

// DefaultGuardTTL matches the validity window of a recent blockhash.
const DefaultGuardTTL = 2 * time.Minute

type Settings struct {
	Mint                  common.PublicKey
	ClaimAmount           uint64 // base units, free variant
	Decimals              uint8
	TreasuryNative        string // SOL receiving address; empty = treasury key
	PriceLamportsPerToken uint64
	GuardTTL              time.Duration
}

type Deps struct {
	Ledger   Ledger
	Signers  SignerProvider
	Builder  TxBuilder
	Guard    ClaimGuard    // optional
	Payments PaymentLedger // optional
	Events   EventPublisher
	Metrics  Recorder
	Logger   logrus.FieldLogger
}

type Usecase struct {
	deps        Deps
	settings    Settings
	eligibility *EligibilityChecker
	strategies  map[claimdom.Variant]PaymentStrategy

	now func() time.Time
}

// Result is what the endpoint needs to answer 200 {tx}.
type Result struct {
	Tx                   string
	Variant              claimdom.Variant
	Claimant             string
	Amount               uint64
	CreatedATA           bool
	Blockhash            string
	LastValidBlockHeight uint64
}

func NewUsecase(deps Deps, s Settings) *Usecase {
	if s.GuardTTL <= 0 {
		s.GuardTTL = DefaultGuardTTL
	}
	if deps.Logger == nil {
		deps.Logger = ucLog
	}

	u := &Usecase{
		deps:     deps,
		settings: s,
		now:      time.Now,
	}
	if deps.Ledger != nil {
		u.eligibility = NewEligibilityChecker(deps.Ledger, s.Mint)
		u.strategies = map[claimdom.Variant]PaymentStrategy{
			claimdom.VariantFree: NoPayment(s.ClaimAmount),
			claimdom.VariantPaid: OnChainPayment(NewPaymentVerifier(deps.Ledger), deps.Payments, s.Decimals, s.PriceLamportsPerToken),
		}
	}
	return u
}

// Configured reports whether Issue can do anything but SERVER_MISCONFIGURED.
func (u *Usecase) Configured() bool {
	return u != nil &&
		u.deps.Ledger != nil &&
		u.deps.Signers != nil &&
		u.deps.Builder != nil &&
		u.settings.Mint != (common.PublicKey{})
}

// Issue runs one claim:
// 1) validate claimant address, payment signature and the strategy's amount
// 2) (optional) acquire the per-claimant guard
// 3) claimant must not already hold the token
// 4) load treasury key, treasury must cover the amount
// 5) settle payment (paid variant only)
// 6) build and partially sign the transaction
// On failure the guard and any payment reservation are released.
func (u *Usecase) Issue(ctx context.Context, req claimdom.Request) (res Result, err error) {
	variant := req.Variant()
	defer func() { u.observe(ctx, variant, req, res, err) }()

	// Input is validated before configuration, ledger reads or key loads.
	claimant, err := address.ParseAddress(req.Claimant)
	if err != nil {
		return Result{}, err
	}
	owner := claimant.ToBase58()
	req.Claimant = owner
	if req.Payment != nil {
		sig, err := address.ParseSignature(req.Payment.Signature)
		if err != nil {
			return Result{}, err
		}
		p := *req.Payment
		p.Signature = sig
		req.Payment = &p
	}

	if !u.Configured() {
		return Result{}, claimdom.ErrNotConfigured
	}

	strategy, ok := u.strategies[variant]
	if !ok {
		return Result{}, fmt.Errorf("%w: no strategy for %s", claimdom.ErrNotConfigured, variant)
	}

	amount, err := strategy.Amount(req)
	if err != nil {
		return Result{}, err
	}

	now := u.now().UTC()

	if u.deps.Guard != nil {
		if err := u.deps.Guard.AcquireClaim(ctx, owner, now, u.settings.GuardTTL); err != nil {
			return Result{}, err
		}
		defer func() {
			if err == nil {
				return
			}
			if rerr := u.deps.Guard.ReleaseClaim(context.Background(), owner); rerr != nil {
				u.deps.Logger.WithError(rerr).WithField("claimant", address.MaskShort(owner)).Warn("release claim guard failed")
			}
		}()
	}

	if err := u.eligibility.CheckNotAlreadyHolding(ctx, claimant); err != nil {
		return Result{}, err
	}

	signer, err := u.deps.Signers.Treasury(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load treasury key: %w", err)
	}
	defer signer.Discard()

	if _, err := u.eligibility.CheckTreasuryFunded(ctx, signer.PublicKey(), amount); err != nil {
		return Result{}, err
	}

	treasuryNative := u.settings.TreasuryNative
	if treasuryNative == "" {
		treasuryNative = signer.PublicKey().ToBase58()
	}
	undo, err := strategy.Settle(ctx, req, treasuryNative, now)
	if err != nil {
		return Result{}, err
	}

	built, err := u.deps.Builder.Build(ctx, BuildInput{
		Claimant: claimant,
		Amount:   amount,
		Signer:   signer,
	})
	if err != nil {
		undo()
		return Result{}, fmt.Errorf("build claim tx: %w", err)
	}

	return Result{
		Tx:                   built.TxBase64,
		Variant:              variant,
		Claimant:             owner,
		Amount:               amount,
		CreatedATA:           built.CreatedATA,
		Blockhash:            built.Blockhash,
		LastValidBlockHeight: built.LastValidBlockHeight,
	}, nil
}

func (u *Usecase) observe(ctx context.Context, v claimdom.Variant, req claimdom.Request, res Result, err error) {
	if u == nil {
		return
	}

	ev := Event{
		Type:      EventIssued,
		Variant:   v,
		Claimant:  req.Claimant,
		Amount:    res.Amount,
		CreatedAt: u.now().UTC(),
	}
	if req.Payment != nil {
		ev.Payment = req.Payment.Signature
	}

	outcome := "issued"
	fields := logrus.Fields{
		"variant":  v,
		"claimant": address.MaskShort(req.Claimant),
	}
	if err != nil {
		ce := claimdom.Classify(err, v)
		outcome = string(ce.Code)
		ev.Type = EventRejected
		ev.Code = ce.Code
		fields["code"] = ce.Code
		if ce.Status >= 500 {
			u.deps.Logger.WithFields(fields).WithError(err).Error("claim failed")
		} else {
			u.deps.Logger.WithFields(fields).WithError(err).Info("claim rejected")
		}
	} else {
		fields["amount"] = res.Amount
		fields["createdATA"] = res.CreatedATA
		u.deps.Logger.WithFields(fields).Info("claim issued")
	}

	if u.deps.Metrics != nil {
		u.deps.Metrics.ObserveClaim(string(v), outcome)
	}
	if u.deps.Events != nil {
		if perr := u.deps.Events.Publish(ctx, ev); perr != nil {
			u.deps.Logger.WithError(perr).Warn("publish claim event failed")
		}
	}
}
