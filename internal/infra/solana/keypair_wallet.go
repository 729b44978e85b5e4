// internal/infra/solana/keypair_wallet.go
package solana

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"os"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"tokenclaim/internal/application/claimflow"
)

// ApproveFunc asks the user whether to sign. Returning false rejects.
type ApproveFunc func(ctx context.Context, tx types.Transaction) (bool, error)

// KeypairWallet signs with a local solana-keygen keypair (CLI wallet).
type KeypairWallet struct {
	acc     types.Account
	Approve ApproveFunc
}

func NewKeypairWallet(acc types.Account, approve ApproveFunc) *KeypairWallet {
	return &KeypairWallet{acc: acc, Approve: approve}
}

// LoadKeypairWallet reads a keypair file such as ~/.config/solana/id.json.
func LoadKeypairWallet(path string, approve ApproveFunc) (*KeypairWallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keypair_wallet: read %s: %w", path, err)
	}
	defer zero(data)

	acc, err := AccountFromKeypairJSON(data)
	if err != nil {
		return nil, fmt.Errorf("keypair_wallet: %w", err)
	}
	return NewKeypairWallet(acc, approve), nil
}

func (w *KeypairWallet) PublicKey() common.PublicKey { return w.acc.PublicKey }

// SignTransaction fills the wallet's signature slot, leaving the others intact.
func (w *KeypairWallet) SignTransaction(ctx context.Context, tx types.Transaction) (types.Transaction, error) {
	if w.Approve != nil {
		ok, err := w.Approve(ctx, tx)
		if err != nil {
			return types.Transaction{}, err
		}
		if !ok {
			return types.Transaction{}, claimflow.ErrUserRejected
		}
	}

	data, err := tx.Message.Serialize()
	if err != nil {
		return types.Transaction{}, fmt.Errorf("keypair_wallet: serialize message: %w", err)
	}

	n := int(tx.Message.Header.NumRequireSignatures)
	if len(tx.Signatures) < n {
		return types.Transaction{}, fmt.Errorf("keypair_wallet: %d signatures for %d signers", len(tx.Signatures), n)
	}
	for i := 0; i < n && i < len(tx.Message.Accounts); i++ {
		if tx.Message.Accounts[i] == w.acc.PublicKey {
			sigs := append([]types.Signature(nil), tx.Signatures...)
			sigs[i] = ed25519.Sign(w.acc.PrivateKey, data)
			return types.Transaction{Signatures: sigs, Message: tx.Message}, nil
		}
	}
	return types.Transaction{}, fmt.Errorf("keypair_wallet: wallet is not a required signer")
}
