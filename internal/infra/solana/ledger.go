// internal/infra/solana/ledger.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/sirupsen/logrus"

	appclaim "tokenclaim/internal/application/claim"
	"tokenclaim/internal/domain/address"
	claimdom "tokenclaim/internal/domain/claim"
)

var (
	ErrConfirmTimeout = errors.New("ledger: transaction not confirmed before its blockhash expired")
	ErrTxFailed       = errors.New("ledger: transaction failed on chain")
)

// Ledger is the gateway to the Solana cluster used by both the server and the
// claim CLI. Every transport failure is wrapped in claimdom.ErrLedgerUnavailable.
type Ledger struct {
	RPC *JSONRPCClient
	SDK *client.Client // broadcast

	// Commitment for balance reads, blockhash and confirmation.
	Commitment string
	// PaymentCommitment for getTransaction on payment proofs.
	PaymentCommitment string

	PollInterval time.Duration
	// ConfirmTimeout approximates the lifetime of a recent blockhash.
	ConfirmTimeout time.Duration

	log logrus.FieldLogger
}

func NewLedger(rpcURL, commitment, paymentCommitment string) *Ledger {
	rpc := NewJSONRPCClient(rpcURL)
	if commitment == "" {
		commitment = CommitmentConfirmed
	}
	if paymentCommitment == "" {
		paymentCommitment = CommitmentFinalized
	}
	return &Ledger{
		RPC:               rpc,
		SDK:               client.NewClient(rpc.Endpoint),
		Commitment:        commitment,
		PaymentCommitment: paymentCommitment,
		PollInterval:      2 * time.Second,
		ConfirmTimeout:    90 * time.Second,
		log:               logrus.WithField("component", "ledger"),
	}
}

// WithLogger replaces the component logger.
func (l *Ledger) WithLogger(log logrus.FieldLogger) *Ledger {
	l.log = log
	return l
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", claimdom.ErrLedgerUnavailable, op, err)
}

// TokenBalance implements appclaim.Ledger.
func (l *Ledger) TokenBalance(ctx context.Context, account common.PublicKey) (uint64, bool, error) {
	amt, err := l.RPC.GetTokenAccountBalance(ctx, account.ToBase58(), l.Commitment)
	if err != nil {
		return 0, false, unavailable("getTokenAccountBalance", err)
	}
	if amt == nil {
		return 0, false, nil
	}
	bal, err := strconv.ParseUint(strings.TrimSpace(amt.Amount), 10, 64)
	if err != nil {
		return 0, true, fmt.Errorf("ledger: token amount %q: %w", amt.Amount, err)
	}
	return bal, true, nil
}

// PaymentRecord implements appclaim.Ledger.
func (l *Ledger) PaymentRecord(ctx context.Context, signature string) (*appclaim.PaymentRecord, error) {
	tx, err := l.RPC.GetTransaction(ctx, signature, l.PaymentCommitment)
	if err != nil {
		return nil, unavailable("getTransaction", err)
	}
	if tx == nil || tx.Meta == nil {
		return nil, nil
	}
	return &appclaim.PaymentRecord{
		Signature:    signature,
		Slot:         tx.Slot,
		AccountKeys:  tx.AccountKeys(),
		PreBalances:  tx.Meta.PreBalances,
		PostBalances: tx.Meta.PostBalances,
		Failed:       tx.Failed(),
	}, nil
}

// LatestBlockhash is fetched fresh for every transaction.
func (l *Ledger) LatestBlockhash(ctx context.Context) (LatestBlockhash, error) {
	bh, err := l.RPC.GetLatestBlockhash(ctx, l.Commitment)
	if err != nil {
		return LatestBlockhash{}, unavailable("getLatestBlockhash", err)
	}
	return bh, nil
}

// Broadcast sends a fully signed transaction and returns its signature.
func (l *Ledger) Broadcast(ctx context.Context, tx types.Transaction) (string, error) {
	if l.SDK == nil {
		return "", fmt.Errorf("ledger: sdk client not configured")
	}
	sig, err := l.SDK.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("ledger: SendTransaction: %w", err)
	}
	l.log.WithField("tx", address.MaskShort(sig)).Info("submitted")
	return sig, nil
}

// WaitForConfirmation polls the signature status until it reaches the
// configured commitment, fails, or ConfirmTimeout elapses.
func (l *Ledger) WaitForConfirmation(ctx context.Context, signature string) error {
	interval := l.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := l.ConfirmTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		statuses, err := l.RPC.GetSignatureStatuses(ctx, []string{signature})
		if err != nil {
			l.log.WithError(err).Warn("getSignatureStatuses failed, retrying")
		} else if len(statuses) > 0 && statuses[0] != nil {
			st := statuses[0]
			if st.Failed() {
				return fmt.Errorf("%w: %s", ErrTxFailed, strings.TrimSpace(string(st.Err)))
			}
			if st.Reached(l.Commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrConfirmTimeout
		case <-t.C:
		}
	}
}
