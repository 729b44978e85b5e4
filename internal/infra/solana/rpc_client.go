// internal/infra/solana/rpc_client.go
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MainnetEndpoint is used when RPC_URL is not configured.
const MainnetEndpoint = "https://api.mainnet-beta.solana.com"

const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// JSONRPCClient is a simple HTTP JSON-RPC client for the Solana methods the
// blocto client does not expose in the shape we need.
type JSONRPCClient struct {
	Endpoint string
	HTTP     *http.Client

	// Observe, when set, receives every call's method, latency and error.
	Observe func(method string, d time.Duration, err error)
}

func NewJSONRPCClient(endpoint string) *JSONRPCClient {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = MainnetEndpoint
	}
	return &JSONRPCClient{
		Endpoint: ep,
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCError is an error object returned by the node itself.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("solana rpc: error code=%d message=%s", e.Code, e.Message)
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// codeInvalidParams is the JSON-RPC code nodes use for "could not find account".
const codeInvalidParams = -32602

// IsAccountNotFound reports whether err is the node telling us an account
// does not exist (as opposed to the node being unreachable or rejecting us).
func IsAccountNotFound(err error) bool {
	var re *RPCError
	if !errors.As(err, &re) || re.Code != codeInvalidParams {
		return false
	}
	return strings.Contains(strings.ToLower(re.Message), "could not find account")
}

func (c *JSONRPCClient) call(ctx context.Context, method string, params any, out any) (err error) {
	if c == nil || c.Endpoint == "" || c.HTTP == nil {
		return fmt.Errorf("solana rpc: client not configured")
	}
	if c.Observe != nil {
		start := time.Now()
		defer func() { c.Observe(method, time.Since(start), err) }()
	}

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("solana rpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("solana rpc: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("solana rpc: %s: http do: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("solana rpc: %s: http status=%d", method, resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("solana rpc: %s: decode response: %w", method, err)
	}
	if rr.Error != nil {
		return rr.Error
	}

	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("solana rpc: %s: unmarshal result: %w", method, err)
		}
	}
	return nil
}

// ------------------------------------------------------------
// getTokenAccountBalance
// ------------------------------------------------------------

type TokenAmount struct {
	Amount   string `json:"amount"` // string integer, base units
	Decimals int    `json:"decimals"`
}

type getTokenAccountBalanceResult struct {
	Value *TokenAmount `json:"value"`
}

// GetTokenAccountBalance returns (nil, nil) when the account does not exist.
func (c *JSONRPCClient) GetTokenAccountBalance(ctx context.Context, account, commitment string) (*TokenAmount, error) {
	var out getTokenAccountBalanceResult
	params := []any{account, map[string]any{"commitment": commitment}}
	if err := c.call(ctx, "getTokenAccountBalance", params, &out); err != nil {
		if IsAccountNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return out.Value, nil
}

// ------------------------------------------------------------
// getTransaction
// ------------------------------------------------------------

// TransactionResult is the json-encoded getTransaction result, reduced to the
// fields needed to attribute balance changes.
type TransactionResult struct {
	Slot uint64 `json:"slot"`
	Meta *struct {
		Err             json.RawMessage `json:"err"`
		Fee             uint64          `json:"fee"`
		PreBalances     []int64         `json:"preBalances"`
		PostBalances    []int64         `json:"postBalances"`
		LoadedAddresses *struct {
			Writable []string `json:"writable"`
			Readonly []string `json:"readonly"`
		} `json:"loadedAddresses,omitempty"`
	} `json:"meta"`
	Transaction struct {
		Signatures []string `json:"signatures"`
		Message    struct {
			AccountKeys []string `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// AccountKeys returns static keys followed by lookup-table keys (writable,
// then readonly), the order balances are reported in.
func (t *TransactionResult) AccountKeys() []string {
	keys := append([]string(nil), t.Transaction.Message.AccountKeys...)
	if t.Meta != nil && t.Meta.LoadedAddresses != nil {
		keys = append(keys, t.Meta.LoadedAddresses.Writable...)
		keys = append(keys, t.Meta.LoadedAddresses.Readonly...)
	}
	return keys
}

// Failed reports a non-null meta.err.
func (t *TransactionResult) Failed() bool {
	if t.Meta == nil {
		return false
	}
	e := strings.TrimSpace(string(t.Meta.Err))
	return e != "" && e != "null"
}

// GetTransaction returns (nil, nil) when the node has no record of signature
// at the requested commitment.
func (c *JSONRPCClient) GetTransaction(ctx context.Context, signature, commitment string) (*TransactionResult, error) {
	var out *TransactionResult
	params := []any{
		signature,
		map[string]any{
			"commitment":                     commitment,
			"encoding":                       "json",
			"maxSupportedTransactionVersion": 0,
		},
	}
	if err := c.call(ctx, "getTransaction", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ------------------------------------------------------------
// getLatestBlockhash
// ------------------------------------------------------------

type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

func (c *JSONRPCClient) GetLatestBlockhash(ctx context.Context, commitment string) (LatestBlockhash, error) {
	var out struct {
		Value LatestBlockhash `json:"value"`
	}
	params := []any{map[string]any{"commitment": commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &out); err != nil {
		return LatestBlockhash{}, err
	}
	if out.Value.Blockhash == "" {
		return LatestBlockhash{}, fmt.Errorf("solana rpc: getLatestBlockhash: empty blockhash")
	}
	return out.Value, nil
}

// ------------------------------------------------------------
// getSignatureStatuses
// ------------------------------------------------------------

type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// Reached reports whether the status is at least the given commitment.
func (s *SignatureStatus) Reached(commitment string) bool {
	rank := map[string]int{CommitmentProcessed: 1, CommitmentConfirmed: 2, CommitmentFinalized: 3}
	return rank[s.ConfirmationStatus] >= rank[commitment] && rank[s.ConfirmationStatus] > 0
}

func (s *SignatureStatus) Failed() bool {
	e := strings.TrimSpace(string(s.Err))
	return e != "" && e != "null"
}

// GetSignatureStatuses returns one entry per signature; nil entries are unknown.
func (c *JSONRPCClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	var out struct {
		Value []*SignatureStatus `json:"value"`
	}
	params := []any{signatures, map[string]any{"searchTransactionHistory": false}}
	if err := c.call(ctx, "getSignatureStatuses", params, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}
