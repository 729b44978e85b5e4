// internal/infra/solana/claim_tx_builder.go
package solana

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/sirupsen/logrus"

	appclaim "tokenclaim/internal/application/claim"
	"tokenclaim/internal/domain/address"
)

var (
	ErrClaimTxNotConfigured = errors.New("claim_tx_builder: not configured")
	ErrClaimTxSignerEmpty   = errors.New("claim_tx_builder: signer is nil")
	ErrClaimTxAmountZero    = errors.New("claim_tx_builder: amount is zero")
	ErrClaimTxSignerAbsent  = errors.New("claim_tx_builder: treasury is not a required signer")
	ErrClaimTxDecode        = errors.New("claim_tx_builder: invalid transaction bytes")
)

const signatureLen = 64

// BlockchainReader is what the builder needs from the ledger.
type BlockchainReader interface {
	TokenBalance(ctx context.Context, account common.PublicKey) (uint64, bool, error)
	LatestBlockhash(ctx context.Context) (LatestBlockhash, error)
}

// ClaimTxBuilder assembles treasury -> claimant transfers, fee paid by the
// claimant, co-signed by the treasury only.
type ClaimTxBuilder struct {
	Ledger BlockchainReader
	Mint   common.PublicKey

	log logrus.FieldLogger
}

func NewClaimTxBuilder(ledger BlockchainReader, mint common.PublicKey) *ClaimTxBuilder {
	return &ClaimTxBuilder{
		Ledger: ledger,
		Mint:   mint,
		log:    logrus.WithField("component", "claim_tx_builder"),
	}
}

// Build does:
// - derive ATA(treasury, mint) / ATA(claimant, mint)
// - create claimant ATA if missing (payer=claimant)
// - SPL token transfer, authority=treasury
// - fresh blockhash, fee payer=claimant
// - treasury signature only; claimant slot stays zero-filled
func (b *ClaimTxBuilder) Build(ctx context.Context, in appclaim.BuildInput) (appclaim.BuiltClaim, error) {
	if b == nil || b.Ledger == nil || b.Mint == (common.PublicKey{}) {
		return appclaim.BuiltClaim{}, ErrClaimTxNotConfigured
	}
	if in.Signer == nil {
		return appclaim.BuiltClaim{}, ErrClaimTxSignerEmpty
	}
	if in.Amount == 0 {
		return appclaim.BuiltClaim{}, ErrClaimTxAmountZero
	}

	treasury := in.Signer.PublicKey()
	claimant := in.Claimant

	fromATA, err := address.ResolveTokenAccount(treasury, b.Mint)
	if err != nil {
		return appclaim.BuiltClaim{}, fmt.Errorf("claim_tx_builder: derive treasury ATA: %w", err)
	}
	toATA, err := address.ResolveTokenAccount(claimant, b.Mint)
	if err != nil {
		return appclaim.BuiltClaim{}, fmt.Errorf("claim_tx_builder: derive claimant ATA: %w", err)
	}

	// 1) existence check
	_, toExists, err := b.Ledger.TokenBalance(ctx, toATA)
	if err != nil {
		return appclaim.BuiltClaim{}, fmt.Errorf("claim_tx_builder: check claimant ATA: %w", err)
	}

	// 2) instructions
	ins := make([]types.Instruction, 0, 2)
	if !toExists {
		ins = append(ins, buildCreateAssociatedTokenAccountIx(claimant, claimant, b.Mint, toATA))
	}
	ins = append(ins, token.Transfer(token.TransferParam{
		From:   fromATA,
		To:     toATA,
		Auth:   treasury,
		Amount: in.Amount,
	}))

	// 3) recent blockhash
	latest, err := b.Ledger.LatestBlockhash(ctx)
	if err != nil {
		return appclaim.BuiltClaim{}, fmt.Errorf("claim_tx_builder: blockhash: %w", err)
	}

	// 4) message + partial signature
	msg := types.NewMessage(types.NewMessageParam{
		FeePayer:        claimant,
		RecentBlockhash: latest.Blockhash,
		Instructions:    ins,
	})
	tx, err := partialSign(msg, in.Signer)
	if err != nil {
		return appclaim.BuiltClaim{}, err
	}

	// 5) serialize without requiring the claimant signature
	raw, err := tx.Serialize()
	if err != nil {
		return appclaim.BuiltClaim{}, fmt.Errorf("claim_tx_builder: serialize: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"claimant":   address.MaskShort(claimant.ToBase58()),
		"mint":       address.MaskShort(b.Mint.ToBase58()),
		"amount":     in.Amount,
		"createdATA": !toExists,
		"blockhash":  address.MaskShort(latest.Blockhash),
	}).Debug("built claim tx")

	return appclaim.BuiltClaim{
		TxBase64:             base64.StdEncoding.EncodeToString(raw),
		Blockhash:            latest.Blockhash,
		LastValidBlockHeight: latest.LastValidBlockHeight,
		CreatedATA:           !toExists,
		InstructionCount:     len(ins),
	}, nil
}

// partialSign fills every required signature slot with zeros except the
// signer's own.
func partialSign(msg types.Message, signer appclaim.Signer) (types.Transaction, error) {
	data, err := msg.Serialize()
	if err != nil {
		return types.Transaction{}, fmt.Errorf("claim_tx_builder: serialize message: %w", err)
	}

	pub := signer.PublicKey()
	n := int(msg.Header.NumRequireSignatures)
	sigs := make([]types.Signature, n)
	signed := false
	for i := 0; i < n; i++ {
		if msg.Accounts[i] == pub {
			sigs[i] = signer.Sign(data)
			signed = true
			continue
		}
		sigs[i] = make([]byte, signatureLen)
	}
	if !signed {
		return types.Transaction{}, fmt.Errorf("%w: %s", ErrClaimTxSignerAbsent, address.MaskShort(pub.ToBase58()))
	}
	return types.Transaction{Signatures: sigs, Message: msg}, nil
}

// DecodeClaimTransaction reverses the base64 wire form produced by Build.
func DecodeClaimTransaction(b64 string) (types.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: base64: %v", ErrClaimTxDecode, err)
	}
	if len(raw) == 0 {
		return types.Transaction{}, fmt.Errorf("%w: empty", ErrClaimTxDecode)
	}
	tx, err := types.TransactionDeserialize(raw)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("%w: %v", ErrClaimTxDecode, err)
	}
	return tx, nil
}

// IsZeroSignature reports an unfilled signature slot.
func IsZeroSignature(sig types.Signature) bool {
	for _, c := range sig {
		if c != 0 {
			return false
		}
	}
	return true
}

// buildCreateAssociatedTokenAccountIx builds the ATA creation instruction.
// Accounts:
// 0. [writable,signer] payer
// 1. [writable] associated token account address
// 2. [] owner
// 3. [] mint
// 4. [] system program
// 5. [] token program
func buildCreateAssociatedTokenAccountIx(payer, owner, mint, ata common.PublicKey) types.Instruction {
	return types.Instruction{
		ProgramID: common.SPLAssociatedTokenAccountProgramID,
		Accounts: []types.AccountMeta{
			{PubKey: payer, IsSigner: true, IsWritable: true},
			{PubKey: ata, IsSigner: false, IsWritable: true},
			{PubKey: owner, IsSigner: false, IsWritable: false},
			{PubKey: mint, IsSigner: false, IsWritable: false},
			{PubKey: common.SystemProgramID, IsSigner: false, IsWritable: false},
			{PubKey: common.TokenProgramID, IsSigner: false, IsWritable: false},
		},
		// Create has empty instruction data
		Data: []byte{},
	}
}
