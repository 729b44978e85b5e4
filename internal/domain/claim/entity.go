// internal/domain/claim/entity.go
package claim

/*
Responsibilities:
- Typed claim requests (free airdrop / paid sale) validated before any ledger access.
- Sentinel errors for every failure the claim engine can produce.
- Error codes and HTTP statuses exposed on the wire ({error, message}).
*/

import (
	"errors"
	"net/http"
)

// Variant selects the payment-verification strategy of a claim.
type Variant string

const (
	VariantFree Variant = "free"
	VariantPaid Variant = "paid"
)

// Code is the machine-readable error code returned in the `error` field.
type Code string

const (
	// free-claim codes
	CodeMethodNotAllowed    Code = "METHOD_NOT_ALLOWED"
	CodeMissingWallet       Code = "MISSING_WALLET"
	CodeServerMisconfigured Code = "SERVER_MISCONFIGURED"
	CodeAlreadyClaimed      Code = "ALREADY_CLAIMED"
	CodeNoTreasuryBalance   Code = "NO_TREASURY_BALANCE"
	CodeMissingTreasuryATA  Code = "MISSING_TREASURY_ATA"
	CodeServerError         Code = "SERVER_ERROR"

	// paid-claim codes (kept as the sentences existing clients match on)
	CodeMissingParameters    Code = "Missing parameters"
	CodePaymentNotFound      Code = "SOL transaction not found or not confirmed yet"
	CodeTreasuryNotInTx      Code = "Treasury address not present in SOL transaction"
	CodeUnderpaid            Code = "Received lamports less than expected"
	CodeAlreadyHasTokens     Code = "ALREADY_HAS_TOKENS"
	CodeInsufficientTreasury Code = "INSUFFICIENT_TREASURY_BALANCE"

	// shared
	CodeInvalidAddress     Code = "INVALID_ADDRESS"
	CodeInvalidJSON        Code = "INVALID_JSON"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodePaymentFailed      Code = "PAYMENT_FAILED"
	CodePaymentAlreadyUsed Code = "PAYMENT_ALREADY_USED"
	CodeClaimInProgress    Code = "CLAIM_IN_PROGRESS"
	CodeLedgerUnavailable  Code = "LEDGER_UNAVAILABLE"
)

var (
	// input
	ErrMissingWallet     = errors.New("claim: wallet is empty")
	ErrMissingParameters = errors.New("claim: missing parameters")
	ErrInvalidAddress    = errors.New("claim: invalid address")
	ErrInvalidSignature  = errors.New("claim: invalid transaction signature")
	ErrInvalidAmount     = errors.New("claim: invalid amount")
	ErrInvalidJSON       = errors.New("claim: invalid json body")

	// configuration
	ErrNotConfigured = errors.New("claim: server misconfigured")

	// eligibility
	ErrAlreadyHolding              = errors.New("claim: claimant already holds the token")
	ErrMissingTreasuryAccount      = errors.New("claim: treasury token account not found")
	ErrInsufficientTreasuryBalance = errors.New("claim: treasury balance is insufficient")
	ErrClaimInProgress             = errors.New("claim: another claim for this wallet is in progress")

	// payment
	ErrPaymentNotFound          = errors.New("claim: payment transaction not found or not confirmed")
	ErrPaymentFailed            = errors.New("claim: payment transaction failed on chain")
	ErrTreasuryNotInTransaction = errors.New("claim: treasury not present in payment transaction")
	ErrUnderpaid                = errors.New("claim: received lamports less than expected")
	ErrPaymentAlreadyUsed       = errors.New("claim: payment transaction already used")

	// external
	ErrLedgerUnavailable = errors.New("claim: ledger unavailable")
)

// Error is the structured outcome written to clients.
type Error struct {
	Code      Code   `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"-"`
	Retryable bool   `json:"-"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Classify maps any error produced by the claim engine to its wire form.
// Codes differ per variant where existing clients depend on the distinction.
func Classify(err error, v Variant) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	paid := v == VariantPaid

	switch {
	case err == nil:
		return nil

	case errors.Is(err, ErrInvalidJSON):
		return &Error{Code: CodeInvalidJSON, Message: "Request body is not valid JSON.", Status: http.StatusBadRequest}
	case errors.Is(err, ErrMissingWallet):
		return &Error{Code: CodeMissingWallet, Message: "Missing wallet pubkey", Status: http.StatusBadRequest}
	case errors.Is(err, ErrMissingParameters):
		return &Error{Code: CodeMissingParameters, Message: "buyer, tokenAmount, solTxSignature and expectedLamports are required", Status: http.StatusBadRequest}
	case errors.Is(err, ErrInvalidAddress):
		return &Error{Code: CodeInvalidAddress, Message: "Address is not a valid base58 public key.", Status: http.StatusBadRequest}
	case errors.Is(err, ErrInvalidSignature):
		return &Error{Code: CodeMissingParameters, Message: "solTxSignature is not a valid transaction signature", Status: http.StatusBadRequest}
	case errors.Is(err, ErrInvalidAmount):
		return &Error{Code: CodeInvalidAmount, Message: "Amount must be a positive integer within range.", Status: http.StatusBadRequest}

	case errors.Is(err, ErrNotConfigured):
		return &Error{Code: CodeServerMisconfigured, Message: "Missing env vars", Status: http.StatusInternalServerError}

	case errors.Is(err, ErrAlreadyHolding):
		if paid {
			return &Error{Code: CodeAlreadyHasTokens, Message: "Buyer already holds the token.", Status: http.StatusBadRequest}
		}
		return &Error{Code: CodeAlreadyClaimed, Message: "This wallet already holds the token.", Status: http.StatusBadRequest}
	case errors.Is(err, ErrInsufficientTreasuryBalance):
		if paid {
			return &Error{Code: CodeInsufficientTreasury, Message: "Treasury balance is lower than the requested amount.", Status: http.StatusInternalServerError}
		}
		return &Error{Code: CodeNoTreasuryBalance, Message: "Treasury is empty.", Status: http.StatusInternalServerError}
	case errors.Is(err, ErrMissingTreasuryAccount):
		return &Error{Code: CodeMissingTreasuryATA, Message: "Treasury ATA not found.", Status: http.StatusInternalServerError}
	case errors.Is(err, ErrClaimInProgress):
		return &Error{Code: CodeClaimInProgress, Message: "A claim for this wallet is already being processed.", Status: http.StatusConflict, Retryable: true}

	case errors.Is(err, ErrPaymentNotFound):
		return &Error{Code: CodePaymentNotFound, Message: string(CodePaymentNotFound), Status: http.StatusBadRequest, Retryable: true}
	case errors.Is(err, ErrPaymentFailed):
		return &Error{Code: CodePaymentFailed, Message: "SOL transaction failed on chain", Status: http.StatusBadRequest}
	case errors.Is(err, ErrTreasuryNotInTransaction):
		return &Error{Code: CodeTreasuryNotInTx, Message: string(CodeTreasuryNotInTx), Status: http.StatusBadRequest}
	case errors.Is(err, ErrUnderpaid):
		return &Error{Code: CodeUnderpaid, Message: string(CodeUnderpaid), Status: http.StatusBadRequest}
	case errors.Is(err, ErrPaymentAlreadyUsed):
		return &Error{Code: CodePaymentAlreadyUsed, Message: "This SOL transaction was already used for a claim.", Status: http.StatusConflict}

	case errors.Is(err, ErrLedgerUnavailable):
		return &Error{Code: CodeLedgerUnavailable, Message: "Ledger is unreachable, try again later.", Status: http.StatusServiceUnavailable, Retryable: true}
	}

	return &Error{Code: CodeServerError, Message: err.Error(), Status: http.StatusInternalServerError, Retryable: true}
}

// MethodNotAllowed is returned for anything but POST.
func MethodNotAllowed() *Error {
	return &Error{Code: CodeMethodNotAllowed, Message: "Use POST instead.", Status: http.StatusMethodNotAllowed}
}
