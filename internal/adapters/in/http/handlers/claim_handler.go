// internal/adapters/in/http/handlers/claim_handler.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	appclaim "tokenclaim/internal/application/claim"
	claimdom "tokenclaim/internal/domain/claim"
)

// ClaimIssuer is the usecase the handler drives.
type ClaimIssuer interface {
	Issue(ctx context.Context, req claimdom.Request) (appclaim.Result, error)
}

const defaultMaxBody = 16 << 10

// ClaimHandler serves POST /claim. The body shape selects the free airdrop
// ({wallet}) or the paid sale ({buyer, tokenAmount, solTxSignature,
// expectedLamports}). PaidOnly routes (/transferTokens) always validate the
// paid shape.
type ClaimHandler struct {
	uc       ClaimIssuer
	paidOnly bool
	maxBody  int64
}

func NewClaimHandler(uc ClaimIssuer, maxBody int64) *ClaimHandler {
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &ClaimHandler{
		uc:      uc,
		maxBody: maxBody,
	}
}

// PaidOnly returns a copy bound to the paid-sale shape.
func (h *ClaimHandler) PaidOnly() *ClaimHandler {
	c := *h
	c.paidOnly = true
	return &c
}

type claimResponse struct {
	Tx string `json:"tx"`
}

func (h *ClaimHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	variant := claimdom.VariantFree
	if h.paidOnly {
		variant = claimdom.VariantPaid
	}

	body, err := h.decode(w, r)
	if err != nil {
		writeError(w, claimdom.Classify(err, variant))
		return
	}

	req, variant, err := claimdom.ParseBody(body, h.paidOnly)
	if err != nil {
		writeError(w, claimdom.Classify(err, variant))
		return
	}

	res, err := h.uc.Issue(r.Context(), req)
	if err != nil {
		// Outcome logging happens once, in the usecase.
		writeError(w, claimdom.Classify(err, variant))
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{Tx: res.Tx})
}

// decode reads at most maxBody bytes. An empty body is treated as "{}".
func (h *ClaimHandler) decode(w http.ResponseWriter, r *http.Request) (claimdom.Body, error) {
	var body claimdom.Body
	if r.Body == nil {
		return body, nil
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return body, claimdom.ErrInvalidJSON
		}
		return body, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return body, claimdom.ErrInvalidJSON
	}
	return body, nil
}
