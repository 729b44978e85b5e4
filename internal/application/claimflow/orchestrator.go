// internal/application/claimflow/orchestrator.go
package claimflow

/*
Responsibilities:
- Drive one claim from the claimant's side: local balance check, server
  request, wallet signature, broadcast, confirmation.
- Publish exactly one human-readable status line per state transition.
- Never report a wallet rejection to the server.
*/

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/sirupsen/logrus"

	"tokenclaim/internal/domain/address"
	claimdom "tokenclaim/internal/domain/claim"
)

type State string

const (
	StateIdle                  State = "IDLE"
	StateCheckingLocal         State = "CHECKING_LOCAL"
	StateRequestingServer      State = "REQUESTING_SERVER"
	StateAwaitingUserSignature State = "AWAITING_USER_SIGNATURE"
	StateBroadcasting          State = "BROADCASTING"
	StateConfirming            State = "CONFIRMING"
	StateSuccess               State = "SUCCESS"
	StateFailed                State = "FAILED"
	StateAlreadyClaimed        State = "ALREADY_CLAIMED"
)

// Terminal reports whether no further transition follows.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateAlreadyClaimed
}

// ------------------------------------------------------------
// Ports
// ------------------------------------------------------------

type Ledger interface {
	TokenBalance(ctx context.Context, account common.PublicKey) (uint64, bool, error)
	Broadcast(ctx context.Context, tx types.Transaction) (string, error)
	WaitForConfirmation(ctx context.Context, signature string) error
}

type ServerRequest struct {
	Wallet  string
	Payment *claimdom.PaymentProof
}

// ClaimServer returns the base64 partially signed transaction.
type ClaimServer interface {
	RequestClaim(ctx context.Context, req ServerRequest) (string, error)
}

// ServerError is a structured {error, message} answer from the server.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

func (e *ServerError) AlreadyClaimed() bool {
	return e.Code == string(claimdom.CodeAlreadyClaimed) || e.Code == string(claimdom.CodeAlreadyHasTokens)
}

func (e *ServerError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError ||
		(e.Status == http.StatusConflict && e.Code == string(claimdom.CodeClaimInProgress))
}

var (
	ErrInvalidServerResponse = errors.New("claimflow: server returned empty or invalid JSON")
	ErrUserRejected          = errors.New("claimflow: user rejected the signature request")
	ErrInvalidTransaction    = errors.New("claimflow: invalid transaction received from server")
)

// Wallet signs with the claimant key. Implementations return ErrUserRejected
// when the user declines.
type Wallet interface {
	PublicKey() common.PublicKey
	SignTransaction(ctx context.Context, tx types.Transaction) (types.Transaction, error)
}

// StatusFunc receives one call per state transition.
type StatusFunc func(state State, message string)

type Result struct {
	State       State
	Signature   string
	ExplorerURL string
	Retryable   bool
	Message     string
}

// ------------------------------------------------------------
// Orchestrator
// ------------------------------------------------------------

const DefaultCluster = "mainnet-beta"

type Orchestrator struct {
	ledger Ledger
	server ClaimServer
	wallet Wallet
	mint   common.PublicKey

	Cluster string
	Status  StatusFunc

	state State
	log   logrus.FieldLogger
}

func NewOrchestrator(ledger Ledger, server ClaimServer, wallet Wallet, mint common.PublicKey) *Orchestrator {
	return &Orchestrator{
		ledger:  ledger,
		server:  server,
		wallet:  wallet,
		mint:    mint,
		Cluster: DefaultCluster,
		state:   StateIdle,
		log:     logrus.WithField("component", "claimflow"),
	}
}

func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) transition(s State, msg string) {
	o.state = s
	o.log.WithField("state", s).Debug(msg)
	if o.Status != nil {
		o.Status(s, msg)
	}
}

func (o *Orchestrator) fail(msg string, retryable bool) Result {
	o.transition(StateFailed, msg)
	return Result{State: StateFailed, Retryable: retryable, Message: msg}
}

func (o *Orchestrator) alreadyClaimed(msg string) Result {
	o.transition(StateAlreadyClaimed, msg)
	return Result{State: StateAlreadyClaimed, Message: msg}
}

// ExplorerURL links a transaction signature on the configured cluster.
func ExplorerURL(signature, cluster string) string {
	u := "https://explorer.solana.com/tx/" + signature
	if cluster != "" {
		u += "?cluster=" + cluster
	}
	return u
}

// Run executes one claim. payment is nil for the free airdrop.
func (o *Orchestrator) Run(ctx context.Context, payment *claimdom.PaymentProof) Result {
	if o.wallet == nil {
		return o.fail("Connect your wallet first", false)
	}
	owner := o.wallet.PublicKey()

	// 1) local balance
	o.transition(StateCheckingLocal, "Checking local balance...")
	ata, err := address.ResolveTokenAccount(owner, o.mint)
	if err != nil {
		return o.fail("Failed to check token balance.", false)
	}
	bal, exists, err := o.ledger.TokenBalance(ctx, ata)
	if err != nil {
		o.log.WithError(err).Warn("local balance check failed")
		return o.fail("Failed to check token balance.", true)
	}
	if exists && bal > 0 {
		return o.alreadyClaimed("You already have this token.")
	}

	// 2) server
	o.transition(StateRequestingServer, "Requesting partially-signed transaction from server...")
	b64, err := o.server.RequestClaim(ctx, ServerRequest{Wallet: owner.ToBase58(), Payment: payment})
	if err != nil {
		var se *ServerError
		switch {
		case errors.As(err, &se) && se.AlreadyClaimed():
			return o.alreadyClaimed("This wallet already has the token.")
		case errors.As(err, &se):
			msg := se.Message
			if msg == "" {
				msg = se.Code
			}
			return o.fail("Server error: "+msg, se.Retryable())
		case errors.Is(err, ErrInvalidServerResponse):
			return o.fail("Server returned empty or invalid JSON", true)
		default:
			return o.fail("Failed to request claim: "+err.Error(), true)
		}
	}

	tx, err := decodeForWallet(b64, owner)
	if err != nil {
		o.log.WithError(err).Warn("server transaction rejected")
		return o.fail("Invalid transaction received from server.", false)
	}

	// 3) wallet signature
	o.transition(StateAwaitingUserSignature, "Please approve the transaction in your wallet...")
	signed, err := o.wallet.SignTransaction(ctx, tx)
	if err != nil {
		if errors.Is(err, ErrUserRejected) || errors.Is(err, context.Canceled) {
			return o.fail("Claim failed: transaction rejected in wallet", false)
		}
		return o.fail("Claim failed: "+err.Error(), false)
	}

	// 4) broadcast
	o.transition(StateBroadcasting, "Broadcasting transaction...")
	sig, err := o.ledger.Broadcast(ctx, signed)
	if err != nil {
		return o.fail("Claim failed: "+err.Error(), true)
	}

	// 5) confirm
	o.transition(StateConfirming, fmt.Sprintf("Sent tx: %s. Waiting for confirmation...", sig))
	if err := o.ledger.WaitForConfirmation(ctx, sig); err != nil {
		res := o.fail("Claim failed: "+err.Error(), true)
		res.Signature = sig
		return res
	}

	url := ExplorerURL(sig, o.Cluster)
	msg := "Claim successful! Tx: " + url
	o.transition(StateSuccess, msg)
	return Result{State: StateSuccess, Signature: sig, ExplorerURL: url, Message: msg}
}

// decodeForWallet parses the server transaction and checks that the wallet
// pays the fee, its own signature slot (index 0) is still empty and exactly
// one other signer (the treasury) has already signed.
func decodeForWallet(b64 string, owner common.PublicKey) (types.Transaction, error) {
	s := strings.TrimSpace(b64)
	if s == "" {
		return types.Transaction{}, fmt.Errorf("%w: empty", ErrInvalidTransaction)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: base64: %v", ErrInvalidTransaction, err)
	}
	tx, err := types.TransactionDeserialize(raw)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}

	msg := tx.Message
	if msg.Header.NumRequireSignatures == 0 || len(msg.Accounts) == 0 || len(tx.Signatures) == 0 {
		return types.Transaction{}, fmt.Errorf("%w: no signers", ErrInvalidTransaction)
	}
	if msg.Accounts[0] != owner {
		return types.Transaction{}, fmt.Errorf("%w: fee payer %s is not the wallet", ErrInvalidTransaction, address.MaskShort(msg.Accounts[0].ToBase58()))
	}
	if len(tx.Signatures) != int(msg.Header.NumRequireSignatures) {
		return types.Transaction{}, fmt.Errorf("%w: %d signatures for %d signers", ErrInvalidTransaction, len(tx.Signatures), msg.Header.NumRequireSignatures)
	}
	if !isEmptySignature(tx.Signatures[0]) {
		return types.Transaction{}, fmt.Errorf("%w: wallet slot already signed", ErrInvalidTransaction)
	}
	signed := 0
	for _, sig := range tx.Signatures[1:] {
		if !isEmptySignature(sig) {
			signed++
		}
	}
	if signed != 1 {
		return types.Transaction{}, fmt.Errorf("%w: want 1 server signature, got %d", ErrInvalidTransaction, signed)
	}
	return tx, nil
}

func isEmptySignature(sig types.Signature) bool {
	for _, b := range sig {
		if b != 0 {
			return false
		}
	}
	return true
}
