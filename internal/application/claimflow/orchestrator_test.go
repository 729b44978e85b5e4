package claimflow_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenclaim/internal/application/claimflow"
	"tokenclaim/internal/infra/solana"
)

type fakeLedger struct {
	balance uint64
	exists  bool
	err     error

	broadcastErr error
	confirmErr   error

	broadcasted []types.Transaction
	confirmed   []string
}

func (f *fakeLedger) TokenBalance(context.Context, common.PublicKey) (uint64, bool, error) {
	return f.balance, f.exists, f.err
}

func (f *fakeLedger) Broadcast(_ context.Context, tx types.Transaction) (string, error) {
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	f.broadcasted = append(f.broadcasted, tx)
	return "5igSig", nil
}

func (f *fakeLedger) WaitForConfirmation(_ context.Context, sig string) error {
	f.confirmed = append(f.confirmed, sig)
	return f.confirmErr
}

type fakeServer struct {
	tx    string
	err   error
	calls []claimflow.ServerRequest
}

func (s *fakeServer) RequestClaim(_ context.Context, req claimflow.ServerRequest) (string, error) {
	s.calls = append(s.calls, req)
	return s.tx, s.err
}

type recorder struct {
	states   []claimflow.State
	messages []string
}

func (r *recorder) status(s claimflow.State, msg string) {
	r.states = append(r.states, s)
	r.messages = append(r.messages, msg)
}

// partialTx builds what the server returns: fee payer = claimant, treasury
// signature present, claimant slot zero.
func partialTx(t *testing.T, claimant common.PublicKey, treasury types.Account) string {
	t.Helper()
	msg := types.NewMessage(types.NewMessageParam{
		FeePayer:        claimant,
		RecentBlockhash: types.NewAccount().PublicKey.ToBase58(),
		Instructions: []types.Instruction{
			token.Transfer(token.TransferParam{
				From:   types.NewAccount().PublicKey,
				To:     types.NewAccount().PublicKey,
				Auth:   treasury.PublicKey,
				Amount: 1,
			}),
		},
	})
	data, err := msg.Serialize()
	require.NoError(t, err)

	sigs := make([]types.Signature, msg.Header.NumRequireSignatures)
	for i := range sigs {
		if msg.Accounts[i] == treasury.PublicKey {
			sigs[i] = ed25519.Sign(treasury.PrivateKey, data)
		} else {
			sigs[i] = make([]byte, 64)
		}
	}
	tx := types.Transaction{Signatures: sigs, Message: msg}
	raw, err := tx.Serialize()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

type setup struct {
	claimant types.Account
	treasury types.Account
	ledger   *fakeLedger
	server   *fakeServer
	rec      *recorder
	approve  bool
	orch     *claimflow.Orchestrator
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	s := &setup{
		claimant: types.NewAccount(),
		treasury: types.NewAccount(),
		ledger:   &fakeLedger{},
		server:   &fakeServer{},
		rec:      &recorder{},
		approve:  true,
	}
	s.server.tx = partialTx(t, s.claimant.PublicKey, s.treasury)

	wallet := solana.NewKeypairWallet(s.claimant, func(context.Context, types.Transaction) (bool, error) {
		return s.approve, nil
	})
	s.orch = claimflow.NewOrchestrator(s.ledger, s.server, wallet, types.NewAccount().PublicKey)
	s.orch.Status = s.rec.status
	return s
}

func TestRun_Success(t *testing.T) {
	s := newSetup(t)

	res := s.orch.Run(context.Background(), nil)

	require.Equal(t, claimflow.StateSuccess, res.State, res.Message)
	assert.Equal(t, "5igSig", res.Signature)
	assert.Equal(t, "https://explorer.solana.com/tx/5igSig?cluster=mainnet-beta", res.ExplorerURL)
	assert.Equal(t, "Claim successful! Tx: https://explorer.solana.com/tx/5igSig?cluster=mainnet-beta", res.Message)

	assert.Equal(t, []claimflow.State{
		claimflow.StateCheckingLocal,
		claimflow.StateRequestingServer,
		claimflow.StateAwaitingUserSignature,
		claimflow.StateBroadcasting,
		claimflow.StateConfirming,
		claimflow.StateSuccess,
	}, s.rec.states)
	assert.Equal(t, "Sent tx: 5igSig. Waiting for confirmation...", s.rec.messages[4])

	require.Len(t, s.server.calls, 1)
	assert.Equal(t, s.claimant.PublicKey.ToBase58(), s.server.calls[0].Wallet)

	// Both slots are filled and valid after the wallet signs.
	require.Len(t, s.ledger.broadcasted, 1)
	tx := s.ledger.broadcasted[0]
	data, err := tx.Message.Serialize()
	require.NoError(t, err)
	for i, sig := range tx.Signatures {
		pk := tx.Message.Accounts[i]
		assert.True(t, ed25519.Verify(ed25519.PublicKey(pk.Bytes()), data, sig), "signature %d", i)
	}
	assert.Equal(t, []string{"5igSig"}, s.ledger.confirmed)
}

func TestRun_LocalBalanceShortCircuits(t *testing.T) {
	s := newSetup(t)
	s.ledger.balance, s.ledger.exists = 5, true

	res := s.orch.Run(context.Background(), nil)

	assert.Equal(t, claimflow.StateAlreadyClaimed, res.State)
	assert.Equal(t, "You already have this token.", res.Message)
	assert.False(t, res.Retryable)
	assert.Empty(t, s.server.calls, "no server call after a positive local balance")
}

func TestRun_LocalBalanceError(t *testing.T) {
	s := newSetup(t)
	s.ledger.err = errors.New("rpc down")

	res := s.orch.Run(context.Background(), nil)

	assert.Equal(t, claimflow.StateFailed, res.State)
	assert.Equal(t, "Failed to check token balance.", res.Message)
	assert.True(t, res.Retryable)
}

func TestRun_ServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		state     claimflow.State
		message   string
		retryable bool
	}{
		{
			name:    "already claimed",
			err:     &claimflow.ServerError{Status: http.StatusBadRequest, Code: "ALREADY_CLAIMED", Message: "This wallet already holds the token."},
			state:   claimflow.StateAlreadyClaimed,
			message: "This wallet already has the token.",
		},
		{
			name:    "already has tokens",
			err:     &claimflow.ServerError{Status: http.StatusBadRequest, Code: "ALREADY_HAS_TOKENS"},
			state:   claimflow.StateAlreadyClaimed,
			message: "This wallet already has the token.",
		},
		{
			name:      "treasury empty",
			err:       &claimflow.ServerError{Status: http.StatusInternalServerError, Code: "NO_TREASURY_BALANCE", Message: "Treasury is empty."},
			state:     claimflow.StateFailed,
			message:   "Server error: Treasury is empty.",
			retryable: true,
		},
		{
			name:    "bad request",
			err:     &claimflow.ServerError{Status: http.StatusBadRequest, Code: "MISSING_WALLET", Message: "Missing wallet pubkey"},
			state:   claimflow.StateFailed,
			message: "Server error: Missing wallet pubkey",
		},
		{
			name:      "invalid json",
			err:       claimflow.ErrInvalidServerResponse,
			state:     claimflow.StateFailed,
			message:   "Server returned empty or invalid JSON",
			retryable: true,
		},
		{
			name:      "transport",
			err:       errors.New("connection reset"),
			state:     claimflow.StateFailed,
			message:   "Failed to request claim: connection reset",
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSetup(t)
			s.server.err = tt.err

			res := s.orch.Run(context.Background(), nil)

			assert.Equal(t, tt.state, res.State)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.retryable, res.Retryable)
			assert.Empty(t, s.ledger.broadcasted)
		})
	}
}

func TestRun_InvalidServerTransaction(t *testing.T) {
	s := newSetup(t)

	// Not base64.
	s.server.tx = "%%%"
	res := s.orch.Run(context.Background(), nil)
	assert.Equal(t, "Invalid transaction received from server.", res.Message)

	// Fee payer is somebody else.
	s.server.tx = partialTx(t, types.NewAccount().PublicKey, s.treasury)
	res = s.orch.Run(context.Background(), nil)
	assert.Equal(t, claimflow.StateFailed, res.State)
	assert.Equal(t, "Invalid transaction received from server.", res.Message)
	assert.Empty(t, s.ledger.broadcasted)
}

func TestRun_ServerSignatureSlots(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tx *types.Transaction)
	}{
		{
			name: "wallet slot already filled",
			mutate: func(tx *types.Transaction) {
				tx.Signatures[0] = bytes.Repeat([]byte{1}, 64)
			},
		},
		{
			name: "treasury did not sign",
			mutate: func(tx *types.Transaction) {
				tx.Signatures[1] = make([]byte, 64)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSetup(t)
			raw, err := base64.StdEncoding.DecodeString(s.server.tx)
			require.NoError(t, err)
			tx, err := types.TransactionDeserialize(raw)
			require.NoError(t, err)
			require.Len(t, tx.Signatures, 2)
			tt.mutate(&tx)
			out, err := tx.Serialize()
			require.NoError(t, err)
			s.server.tx = base64.StdEncoding.EncodeToString(out)

			res := s.orch.Run(context.Background(), nil)
			assert.Equal(t, claimflow.StateFailed, res.State)
			assert.Equal(t, "Invalid transaction received from server.", res.Message)
			assert.Empty(t, s.ledger.broadcasted)
		})
	}
}

func TestRun_UserRejects(t *testing.T) {
	s := newSetup(t)
	s.approve = false

	res := s.orch.Run(context.Background(), nil)

	assert.Equal(t, claimflow.StateFailed, res.State)
	assert.Contains(t, res.Message, "rejected")
	assert.False(t, res.Retryable)
	assert.Len(t, s.server.calls, 1, "rejection is not reported to the server")
	assert.Empty(t, s.ledger.broadcasted)
}

func TestRun_ConfirmationFails(t *testing.T) {
	s := newSetup(t)
	s.ledger.confirmErr = solana.ErrConfirmTimeout

	res := s.orch.Run(context.Background(), nil)

	assert.Equal(t, claimflow.StateFailed, res.State)
	assert.Equal(t, "5igSig", res.Signature)
	assert.True(t, res.Retryable)
}

func TestServerError_Retryable(t *testing.T) {
	assert.True(t, (&claimflow.ServerError{Status: 503}).Retryable())
	assert.True(t, (&claimflow.ServerError{Status: 409, Code: "CLAIM_IN_PROGRESS"}).Retryable())
	assert.False(t, (&claimflow.ServerError{Status: 409, Code: "PAYMENT_ALREADY_USED"}).Retryable())
	assert.False(t, (&claimflow.ServerError{Status: 400}).Retryable())
}
