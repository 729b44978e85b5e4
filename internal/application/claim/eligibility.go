// internal/application/claim/eligibility.go
package claim

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"

	"tokenclaim/internal/domain/address"
	claimdom "tokenclaim/internal/domain/claim"
)

// EligibilityChecker answers balance-based eligibility questions. It never
// writes to the ledger.
type EligibilityChecker struct {
	ledger Ledger
	mint   common.PublicKey
}

func NewEligibilityChecker(ledger Ledger, mint common.PublicKey) *EligibilityChecker {
	return &EligibilityChecker{ledger: ledger, mint: mint}
}

// CheckNotAlreadyHolding returns nil when owner has no token account for the
// mint or holds exactly zero; otherwise ErrAlreadyHolding.
func (c *EligibilityChecker) CheckNotAlreadyHolding(ctx context.Context, owner common.PublicKey) error {
	ata, err := address.ResolveTokenAccount(owner, c.mint)
	if err != nil {
		return err
	}
	bal, exists, err := c.ledger.TokenBalance(ctx, ata)
	if err != nil {
		return fmt.Errorf("claimant balance: %w", err)
	}
	if exists && bal > 0 {
		return fmt.Errorf("%w: %s holds %d", claimdom.ErrAlreadyHolding, address.MaskShort(owner.ToBase58()), bal)
	}
	return nil
}

// CheckTreasuryFunded fails closed: a missing treasury account or a balance
// below minimum is an error. It returns the observed balance on success.
func (c *EligibilityChecker) CheckTreasuryFunded(ctx context.Context, treasury common.PublicKey, minimum uint64) (uint64, error) {
	ata, err := address.ResolveTokenAccount(treasury, c.mint)
	if err != nil {
		return 0, err
	}
	bal, exists, err := c.ledger.TokenBalance(ctx, ata)
	if err != nil {
		return 0, fmt.Errorf("treasury balance: %w", err)
	}
	if !exists {
		return 0, fmt.Errorf("%w: %s", claimdom.ErrMissingTreasuryAccount, address.MaskShort(ata.ToBase58()))
	}
	if bal == 0 || bal < minimum {
		return bal, fmt.Errorf("%w: have %d need %d", claimdom.ErrInsufficientTreasuryBalance, bal, minimum)
	}
	return bal, nil
}
