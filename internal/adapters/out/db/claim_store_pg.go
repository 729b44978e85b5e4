// internal/adapters/out/db/claim_store_pg.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	appclaim "tokenclaim/internal/application/claim"
	claimdom "tokenclaim/internal/domain/claim"
)

const uniqueViolation = "23505"

// ClaimStorePG is the PostgreSQL ClaimGuard / PaymentLedger.
type ClaimStorePG struct {
	DB *sql.DB
}

var (
	_ appclaim.ClaimGuard    = (*ClaimStorePG)(nil)
	_ appclaim.PaymentLedger = (*ClaimStorePG)(nil)
)

func NewClaimStorePG(db *sql.DB) *ClaimStorePG {
	return &ClaimStorePG{DB: db}
}

const claimSchema = `
CREATE TABLE IF NOT EXISTS claim_locks (
  claimant   TEXT PRIMARY KEY,
  locked_at  TIMESTAMPTZ NOT NULL,
  expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS consumed_payments (
  signature   TEXT PRIMARY KEY,
  claimant    TEXT NOT NULL,
  consumed_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the tables if they do not exist.
func (r *ClaimStorePG) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, claimSchema); err != nil {
		return fmt.Errorf("claim_store_pg: ensure schema: %w", err)
	}
	return nil
}

// AcquireClaim inserts the lock, or takes over an expired one. Zero affected
// rows means an unexpired lock exists.
func (r *ClaimStorePG) AcquireClaim(ctx context.Context, claimant string, now time.Time, ttl time.Duration) error {
	const q = `
INSERT INTO claim_locks (claimant, locked_at, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (claimant) DO UPDATE
  SET locked_at = EXCLUDED.locked_at, expires_at = EXCLUDED.expires_at
  WHERE claim_locks.expires_at <= EXCLUDED.locked_at
`
	now = now.UTC()
	res, err := r.DB.ExecContext(ctx, q, strings.TrimSpace(claimant), now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("claim_store_pg: acquire: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim_store_pg: acquire rows: %w", err)
	}
	if n == 0 {
		return claimdom.ErrClaimInProgress
	}
	return nil
}

func (r *ClaimStorePG) ReleaseClaim(ctx context.Context, claimant string) error {
	const q = `DELETE FROM claim_locks WHERE claimant = $1`
	if _, err := r.DB.ExecContext(ctx, q, strings.TrimSpace(claimant)); err != nil {
		return fmt.Errorf("claim_store_pg: release: %w", err)
	}
	return nil
}

func (r *ClaimStorePG) ConsumePayment(ctx context.Context, signature, claimant string, now time.Time) (bool, error) {
	const q = `INSERT INTO consumed_payments (signature, claimant, consumed_at) VALUES ($1, $2, $3)`
	signature, claimant = strings.TrimSpace(signature), strings.TrimSpace(claimant)

	_, err := r.DB.ExecContext(ctx, q, signature, claimant, now.UTC())
	if err == nil {
		return true, nil
	}
	if !isUniqueViolation(err) {
		return false, fmt.Errorf("claim_store_pg: consume payment: %w", err)
	}

	var owner string
	const sel = `SELECT claimant FROM consumed_payments WHERE signature = $1`
	if err := r.DB.QueryRowContext(ctx, sel, signature).Scan(&owner); err != nil {
		return false, fmt.Errorf("claim_store_pg: read payment owner: %w", err)
	}
	if owner != claimant {
		return false, claimdom.ErrPaymentAlreadyUsed
	}
	return false, nil
}

func (r *ClaimStorePG) RestorePayment(ctx context.Context, signature string) error {
	const q = `DELETE FROM consumed_payments WHERE signature = $1`
	if _, err := r.DB.ExecContext(ctx, q, strings.TrimSpace(signature)); err != nil {
		return fmt.Errorf("claim_store_pg: restore payment: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
