package httpout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenclaim/internal/application/claimflow"
	claimdom "tokenclaim/internal/domain/claim"
)

func serve(t *testing.T, status int, body string, seen *map[string]any) *ClaimAPIClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/claim", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClaimAPIClient(srv.URL + "/")
}

func TestRequestClaim_Free(t *testing.T) {
	var seen map[string]any
	c := serve(t, http.StatusOK, `{"tx":"AQID"}`, &seen)

	tx, err := c.RequestClaim(context.Background(), claimflow.ServerRequest{Wallet: " Wallet1 "})
	require.NoError(t, err)
	assert.Equal(t, "AQID", tx)
	assert.Equal(t, map[string]any{"wallet": "Wallet1"}, seen)
}

func TestRequestClaim_Paid(t *testing.T) {
	var seen map[string]any
	c := serve(t, http.StatusOK, `{"tx":"AQID"}`, &seen)

	_, err := c.RequestClaim(context.Background(), claimflow.ServerRequest{
		Wallet:  "Buyer1",
		Payment: &claimdom.PaymentProof{Signature: "5sig", TokenAmount: 3, ExpectedLamports: 1500},
	})
	require.NoError(t, err)
	assert.Equal(t, "Buyer1", seen["buyer"])
	assert.Equal(t, "5sig", seen["solTxSignature"])
	assert.EqualValues(t, 3, seen["tokenAmount"])
	assert.EqualValues(t, 1500, seen["expectedLamports"])
	assert.NotContains(t, seen, "wallet")
}

func TestRequestClaim_ServerError(t *testing.T) {
	c := serve(t, http.StatusBadRequest, `{"error":"ALREADY_CLAIMED","message":"This wallet already holds the token."}`, nil)

	_, err := c.RequestClaim(context.Background(), claimflow.ServerRequest{Wallet: "w"})

	var se *claimflow.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "ALREADY_CLAIMED", se.Code)
	assert.True(t, se.AlreadyClaimed())
	assert.False(t, se.Retryable())
}

func TestRequestClaim_ErrorWithoutMessage(t *testing.T) {
	c := serve(t, http.StatusServiceUnavailable, `{"error":"LEDGER_UNAVAILABLE"}`, nil)

	_, err := c.RequestClaim(context.Background(), claimflow.ServerRequest{Wallet: "w"})

	var se *claimflow.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "LEDGER_UNAVAILABLE", se.Message)
	assert.True(t, se.Retryable())
}

func TestRequestClaim_InvalidJSON(t *testing.T) {
	for name, tc := range map[string]struct {
		status int
		body   string
	}{
		"empty":      {http.StatusOK, ""},
		"html":       {http.StatusBadGateway, "<html>bad gateway</html>"},
		"missing tx": {http.StatusOK, `{}`},
		"blank tx":   {http.StatusOK, `{"tx":"  "}`},
		"not an obj": {http.StatusOK, `"AQID"`},
	} {
		t.Run(name, func(t *testing.T) {
			c := serve(t, tc.status, tc.body, nil)
			_, err := c.RequestClaim(context.Background(), claimflow.ServerRequest{Wallet: "w"})
			assert.ErrorIs(t, err, claimflow.ErrInvalidServerResponse)
		})
	}
}

func TestRequestClaim_NotConfigured(t *testing.T) {
	_, err := NewClaimAPIClient("").RequestClaim(context.Background(), claimflow.ServerRequest{Wallet: "w"})
	assert.Error(t, err)
}

func TestFetchConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path != "/config" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"mint":"Mint111","decimals":6,"claimAmount":1000000,"cluster":"devnet","configured":true}`))
	}))
	defer srv.Close()

	cfg, err := NewClaimAPIClient(srv.URL).FetchConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Mint111", cfg.Mint)
	assert.EqualValues(t, 6, cfg.Decimals)
	assert.Equal(t, "devnet", cfg.Cluster)
	assert.True(t, cfg.Configured)
}

func TestFetchConfig_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClaimAPIClient(srv.URL).FetchConfig(context.Background())
	assert.ErrorIs(t, err, claimflow.ErrInvalidServerResponse)

	gone := httptest.NewServer(http.NotFoundHandler())
	defer gone.Close()
	_, err = NewClaimAPIClient(gone.URL).FetchConfig(context.Background())
	var se *claimflow.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
}
