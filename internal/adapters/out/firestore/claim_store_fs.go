// internal/adapters/out/firestore/claim_store_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	appclaim "tokenclaim/internal/application/claim"
	claimdom "tokenclaim/internal/domain/claim"
)

// ============================================================
// ClaimStoreFS
// - implements appclaim.ClaimGuard (claim_locks/{claimant})
// - implements appclaim.PaymentLedger (consumed_payments/{signature})
// - shared across Cloud Run instances
// ============================================================

var (
	ErrClaimStoreNotConfigured = errors.New("claim_store_fs: not configured")
	ErrEmptyClaimant           = errors.New("claim_store_fs: claimant is empty")
	ErrEmptySignature          = errors.New("claim_store_fs: signature is empty")
)

const (
	defaultLocksCollection    = "claim_locks"
	defaultPaymentsCollection = "consumed_payments"
)

type ClaimStoreFS struct {
	Client *firestore.Client

	LocksCollection    string
	PaymentsCollection string
}

var (
	_ appclaim.ClaimGuard    = (*ClaimStoreFS)(nil)
	_ appclaim.PaymentLedger = (*ClaimStoreFS)(nil)
)

func NewClaimStoreFS(client *firestore.Client) *ClaimStoreFS {
	return &ClaimStoreFS{
		Client:             client,
		LocksCollection:    defaultLocksCollection,
		PaymentsCollection: defaultPaymentsCollection,
	}
}

func (r *ClaimStoreFS) lockDoc(claimant string) *firestore.DocumentRef {
	c := strings.TrimSpace(r.LocksCollection)
	if c == "" {
		c = defaultLocksCollection
	}
	return r.Client.Collection(c).Doc(claimant)
}

func (r *ClaimStoreFS) paymentDoc(sig string) *firestore.DocumentRef {
	c := strings.TrimSpace(r.PaymentsCollection)
	if c == "" {
		c = defaultPaymentsCollection
	}
	return r.Client.Collection(c).Doc(sig)
}

// AcquireClaim takes the lock inside a transaction: an existing unexpired
// lockUntil means another request holds it.
func (r *ClaimStoreFS) AcquireClaim(ctx context.Context, claimant string, now time.Time, ttl time.Duration) error {
	if r == nil || r.Client == nil {
		return ErrClaimStoreNotConfigured
	}
	claimant = strings.TrimSpace(claimant)
	if claimant == "" {
		return ErrEmptyClaimant
	}
	now = now.UTC()
	ref := r.lockDoc(claimant)

	return r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap != nil && snap.Exists() {
			if until, ok := snap.Data()["lockUntil"].(time.Time); ok && now.Before(until) {
				return claimdom.ErrClaimInProgress
			}
		}
		return tx.Set(ref, map[string]any{
			"claimant":  claimant,
			"lockedAt":  now,
			"lockUntil": now.Add(ttl),
		})
	})
}

func (r *ClaimStoreFS) ReleaseClaim(ctx context.Context, claimant string) error {
	if r == nil || r.Client == nil {
		return ErrClaimStoreNotConfigured
	}
	_, err := r.lockDoc(strings.TrimSpace(claimant)).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

// ConsumePayment uses Create. On AlreadyExists the stored claimant decides
// between a retry by the same buyer and a replay.
func (r *ClaimStoreFS) ConsumePayment(ctx context.Context, signature, claimant string, now time.Time) (bool, error) {
	if r == nil || r.Client == nil {
		return false, ErrClaimStoreNotConfigured
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false, ErrEmptySignature
	}
	doc := r.paymentDoc(signature)
	_, err := doc.Create(ctx, map[string]any{
		"claimant":   claimant,
		"consumedAt": now.UTC(),
	})
	if err == nil {
		return true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return false, err
	}

	snap, err := doc.Get(ctx)
	if err != nil {
		return false, err
	}
	if owner, _ := snap.Data()["claimant"].(string); owner == claimant {
		return false, nil
	}
	return false, claimdom.ErrPaymentAlreadyUsed
}

func (r *ClaimStoreFS) RestorePayment(ctx context.Context, signature string) error {
	if r == nil || r.Client == nil {
		return ErrClaimStoreNotConfigured
	}
	_, err := r.paymentDoc(strings.TrimSpace(signature)).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}
