// internal/application/claim/ports.go
package claim

import (
	"context"
	"time"

	"github.com/blocto/solana-go-sdk/common"

	claimdom "tokenclaim/internal/domain/claim"
)

// Ledger is the read side of the blockchain gateway used on the server.
// Transport failures must wrap claimdom.ErrLedgerUnavailable so they are never
// mistaken for an absent account.
type Ledger interface {
	// TokenBalance returns the base-unit balance of a token account.
	// exists=false with a nil error means the account is not initialized.
	TokenBalance(ctx context.Context, account common.PublicKey) (balance uint64, exists bool, err error)

	// PaymentRecord fetches a transaction by signature. It returns nil, nil
	// when the ledger has no record at the configured commitment.
	PaymentRecord(ctx context.Context, signature string) (*PaymentRecord, error)
}

// PaymentRecord is the subset of a confirmed transaction the verifier reads.
// AccountKeys, PreBalances and PostBalances share indexes.
type PaymentRecord struct {
	Signature    string
	Slot         uint64
	AccountKeys  []string
	PreBalances  []int64
	PostBalances []int64
	Failed       bool
}

// Signer is the treasury signing capability. Implementations hold the key for
// one request only; Discard wipes the key material.
type Signer interface {
	PublicKey() common.PublicKey
	Sign(message []byte) []byte
	Discard()
}

// SignerProvider loads the treasury key from its secret store on demand.
type SignerProvider interface {
	Treasury(ctx context.Context) (Signer, error)
}

// TxBuilder assembles the partially signed claim transaction.
type TxBuilder interface {
	Build(ctx context.Context, in BuildInput) (BuiltClaim, error)
}

type BuildInput struct {
	Claimant common.PublicKey
	Amount   uint64
	Signer   Signer
}

type BuiltClaim struct {
	TxBase64             string
	Blockhash            string
	LastValidBlockHeight uint64
	CreatedATA           bool
	InstructionCount     int
}

// ClaimGuard serializes claims per claimant (compare-and-swap with expiry).
type ClaimGuard interface {
	// AcquireClaim fails with claimdom.ErrClaimInProgress while an unexpired
	// lock exists for claimant.
	AcquireClaim(ctx context.Context, claimant string, now time.Time, ttl time.Duration) error
	ReleaseClaim(ctx context.Context, claimant string) error
}

// PaymentLedger records payment signatures that already funded a claim.
type PaymentLedger interface {
	// ConsumePayment binds signature to claimant. It fails with
	// claimdom.ErrPaymentAlreadyUsed when another claimant holds the binding.
	// The same claimant may consume again (fresh=false), so a buyer whose
	// first transaction never landed can request a new one.
	ConsumePayment(ctx context.Context, signature, claimant string, now time.Time) (fresh bool, err error)
	RestorePayment(ctx context.Context, signature string) error
}

// EventPublisher receives claim outcomes (best-effort).
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Event struct {
	Type      string           `json:"type"`
	Variant   claimdom.Variant `json:"variant"`
	Claimant  string           `json:"claimant"`
	Amount    uint64           `json:"amount,omitempty"`
	Code      claimdom.Code    `json:"code,omitempty"`
	Payment   string           `json:"payment,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

const (
	EventIssued   = "claim.issued"
	EventRejected = "claim.rejected"
)

// Recorder receives claim outcome counts.
type Recorder interface {
	ObserveClaim(variant, outcome string)
}
