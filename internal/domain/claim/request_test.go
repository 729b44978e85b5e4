package claim

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleSig is a well-formed base58 transaction signature.
const sampleSig = "99eUso3aSbE9tqGSTXzo3TLfKb9RkMTURrHKQ1K7Zh3BbeqPevr5E1iCbpTjqHuTFLtfxTTD5ekfVuZFzQyEQf8"

func decodeBody(t *testing.T, raw string) Body {
	t.Helper()
	var b Body
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	return b
}

func TestParseBody_SelectsVariantByShape(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		forcePaid bool
		want      Variant
		wantErr   error
	}{
		{name: "free", body: `{"wallet":"Addr1"}`, want: VariantFree},
		{name: "free missing wallet", body: `{}`, want: VariantFree, wantErr: ErrMissingWallet},
		{name: "free blank wallet", body: `{"wallet":"   "}`, want: VariantFree, wantErr: ErrMissingWallet},
		{name: "paid", body: `{"buyer":"B","tokenAmount":2,"solTxSignature":"` + sampleSig + `","expectedLamports":"1000"}`, want: VariantPaid},
		{name: "paid partial", body: `{"buyer":"B"}`, want: VariantPaid, wantErr: ErrMissingParameters},
		{name: "paid zero amount", body: `{"buyer":"B","tokenAmount":0,"solTxSignature":"` + sampleSig + `","expectedLamports":1}`, want: VariantPaid, wantErr: ErrMissingParameters},
		{name: "forced paid with wallet only", body: `{"wallet":"W"}`, forcePaid: true, want: VariantPaid, wantErr: ErrMissingParameters},
		{name: "paid negative", body: `{"buyer":"B","tokenAmount":-1,"solTxSignature":"` + sampleSig + `","expectedLamports":1}`, want: VariantPaid, wantErr: ErrInvalidAmount},
		{name: "paid malformed signature", body: `{"buyer":"B","tokenAmount":1,"solTxSignature":"not-a-signature!!","expectedLamports":1}`, want: VariantPaid, wantErr: ErrInvalidSignature},
		{name: "paid short signature", body: `{"buyer":"B","tokenAmount":1,"solTxSignature":"5sig","expectedLamports":1}`, want: VariantPaid, wantErr: ErrInvalidSignature},
		{name: "paid fractional", body: `{"buyer":"B","tokenAmount":1.5,"solTxSignature":"` + sampleSig + `","expectedLamports":1}`, want: VariantPaid, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, v, err := ParseBody(decodeBody(t, tt.body), tt.forcePaid)
			assert.Equal(t, tt.want, v)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Variant())
		})
	}
}

func TestParsePaid_Values(t *testing.T) {
	req, err := ParsePaid(decodeBody(t, `{"buyer":" B ","tokenAmount":"3","solTxSignature":"` + sampleSig + `","expectedLamports":1500}`))
	require.NoError(t, err)

	assert.Equal(t, "B", req.Claimant)
	require.NotNil(t, req.Payment)
	assert.Equal(t, sampleSig, req.Payment.Signature)
	assert.Equal(t, uint64(3), req.Payment.TokenAmount)
	assert.Equal(t, uint64(1500), req.Payment.ExpectedLamports)
}

func TestParseUint(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint64
		wantErr bool
	}{
		{raw: `7`, want: 7},
		{raw: `"42"`, want: 42},
		{raw: `" 9 "`, want: 9},
		{raw: `18446744073709551615`, want: math.MaxUint64},
		{raw: `18446744073709551616`, wantErr: true},
		{raw: `"-1"`, wantErr: true},
		{raw: `"+1"`, wantErr: true},
		{raw: `1e3`, wantErr: true},
		{raw: `"abc"`, wantErr: true},
		{raw: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseUint(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScaleToBaseUnits(t *testing.T) {
	got, err := ScaleToBaseUnits(5, 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), got)

	got, err = ScaleToBaseUnits(5, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got)

	_, err = ScaleToBaseUnits(math.MaxUint64/10, 2)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMulLamports(t *testing.T) {
	assert.Equal(t, uint64(0), MulLamports(0, 10))
	assert.Equal(t, uint64(1500), MulLamports(500, 3))
	assert.Equal(t, uint64(math.MaxUint64), MulLamports(math.MaxUint64, 2))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err     error
		variant Variant
		code    Code
		status  int
	}{
		{err: ErrMissingWallet, variant: VariantFree, code: CodeMissingWallet, status: http.StatusBadRequest},
		{err: ErrMissingParameters, variant: VariantPaid, code: CodeMissingParameters, status: http.StatusBadRequest},
		{err: fmt.Errorf("x: %w", ErrInvalidAddress), variant: VariantFree, code: CodeInvalidAddress, status: http.StatusBadRequest},
		{err: ErrNotConfigured, variant: VariantFree, code: CodeServerMisconfigured, status: http.StatusInternalServerError},
		{err: ErrAlreadyHolding, variant: VariantFree, code: CodeAlreadyClaimed, status: http.StatusBadRequest},
		{err: ErrAlreadyHolding, variant: VariantPaid, code: CodeAlreadyHasTokens, status: http.StatusBadRequest},
		{err: ErrInsufficientTreasuryBalance, variant: VariantFree, code: CodeNoTreasuryBalance, status: http.StatusInternalServerError},
		{err: ErrInsufficientTreasuryBalance, variant: VariantPaid, code: CodeInsufficientTreasury, status: http.StatusInternalServerError},
		{err: ErrMissingTreasuryAccount, variant: VariantFree, code: CodeMissingTreasuryATA, status: http.StatusInternalServerError},
		{err: ErrPaymentNotFound, variant: VariantPaid, code: CodePaymentNotFound, status: http.StatusBadRequest},
		{err: ErrTreasuryNotInTransaction, variant: VariantPaid, code: CodeTreasuryNotInTx, status: http.StatusBadRequest},
		{err: ErrUnderpaid, variant: VariantPaid, code: CodeUnderpaid, status: http.StatusBadRequest},
		{err: ErrPaymentAlreadyUsed, variant: VariantPaid, code: CodePaymentAlreadyUsed, status: http.StatusConflict},
		{err: ErrClaimInProgress, variant: VariantFree, code: CodeClaimInProgress, status: http.StatusConflict},
		{err: ErrLedgerUnavailable, variant: VariantFree, code: CodeLedgerUnavailable, status: http.StatusServiceUnavailable},
		{err: errors.New("boom"), variant: VariantFree, code: CodeServerError, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant)+"/"+tt.err.Error(), func(t *testing.T) {
			ce := Classify(tt.err, tt.variant)
			require.NotNil(t, ce)
			assert.Equal(t, tt.code, ce.Code)
			assert.Equal(t, tt.status, ce.Status)
			assert.NotEmpty(t, ce.Message)
		})
	}
}

func TestClassify_PassthroughAndNil(t *testing.T) {
	assert.Nil(t, Classify(nil, VariantFree))

	me := MethodNotAllowed()
	assert.Same(t, me, Classify(fmt.Errorf("wrapped: %w", me), VariantPaid))
	assert.Equal(t, "Use POST instead.", me.Message)

	unknown := Classify(errors.New("rpc exploded"), VariantFree)
	assert.Equal(t, "rpc exploded", unknown.Message)
}

func TestError_JSONShape(t *testing.T) {
	b, err := json.Marshal(Classify(ErrAlreadyHolding, VariantFree))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"ALREADY_CLAIMED","message":"This wallet already holds the token."}`, string(b))
}

func TestIsSignature(t *testing.T) {
	assert.True(t, IsSignature(sampleSig))
	assert.True(t, IsSignature("  "+sampleSig+" "))
	assert.False(t, IsSignature(""))
	assert.False(t, IsSignature("not-a-signature!!"))
	assert.False(t, IsSignature(sampleSig[:40]))
}
