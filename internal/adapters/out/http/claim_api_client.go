// internal/adapters/out/http/claim_api_client.go
package httpout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tokenclaim/internal/application/claimflow"
)

// ClaimAPIClient calls the claim endpoint on behalf of the CLI orchestrator.
type ClaimAPIClient struct {
	baseURL string
	path    string
	client  *http.Client
}

var _ claimflow.ClaimServer = (*ClaimAPIClient)(nil)

type freeClaimPayload struct {
	Wallet string `json:"wallet"`
}

type paidClaimPayload struct {
	Buyer            string `json:"buyer"`
	TokenAmount      uint64 `json:"tokenAmount"`
	SolTxSignature   string `json:"solTxSignature"`
	ExpectedLamports uint64 `json:"expectedLamports"`
}

type claimResponse struct {
	Tx      string `json:"tx"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// baseURL example:
// - Cloud Run: https://xxxxx.asia-northeast1.run.app
// - local: http://localhost:8080
func NewClaimAPIClient(baseURL string) *ClaimAPIClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &ClaimAPIClient{
		baseURL: baseURL,
		path:    "/claim",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// RequestClaim implements claimflow.ClaimServer. It returns the base64
// partially signed transaction.
func (c *ClaimAPIClient) RequestClaim(ctx context.Context, req claimflow.ServerRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("claim api client is nil")
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("claim api client baseURL is empty")
	}

	var payload any = freeClaimPayload{Wallet: strings.TrimSpace(req.Wallet)}
	if p := req.Payment; p != nil {
		payload = paidClaimPayload{
			Buyer:            strings.TrimSpace(req.Wallet),
			TokenAmount:      p.TokenAmount,
			SolTxSignature:   strings.TrimSpace(p.Signature),
			ExpectedLamports: p.ExpectedLamports,
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var out claimResponse
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &out) != nil {
		return "", fmt.Errorf("%w (status=%d)", claimflow.ErrInvalidServerResponse, res.StatusCode)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 || out.Error != "" {
		msg := strings.TrimSpace(out.Message)
		if msg == "" {
			msg = strings.TrimSpace(out.Error)
		}
		if msg == "" {
			msg = http.StatusText(res.StatusCode)
		}
		return "", &claimflow.ServerError{Status: res.StatusCode, Code: out.Error, Message: msg}
	}

	if strings.TrimSpace(out.Tx) == "" {
		return "", fmt.Errorf("%w: tx is empty", claimflow.ErrInvalidServerResponse)
	}
	return out.Tx, nil
}

// RemoteConfig mirrors GET /config.
type RemoteConfig struct {
	Mint                  string `json:"mint"`
	Decimals              uint8  `json:"decimals"`
	ClaimAmount           uint64 `json:"claimAmount"`
	Treasury              string `json:"treasury"`
	PriceLamportsPerToken uint64 `json:"priceLamportsPerToken"`
	Cluster               string `json:"cluster"`
	Configured            bool   `json:"configured"`
}

// FetchConfig reads the public claim parameters so the CLI needs no mint flag.
func (c *ClaimAPIClient) FetchConfig(ctx context.Context) (RemoteConfig, error) {
	var out RemoteConfig
	if c == nil || c.baseURL == "" {
		return out, fmt.Errorf("claim api client baseURL is empty")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config", nil)
	if err != nil {
		return out, err
	}
	res, err := c.client.Do(httpReq)
	if err != nil {
		return out, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return out, &claimflow.ServerError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %v", claimflow.ErrInvalidServerResponse, err)
	}
	return out, nil
}
