// internal/adapters/out/bolt/claim_store.go
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	appclaim "tokenclaim/internal/application/claim"
	claimdom "tokenclaim/internal/domain/claim"
)

var (
	bucketClaimLocks       = []byte("claim_locks")
	bucketConsumedPayments = []byte("consumed_payments")
)

type lockRecord struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

type paymentRecord struct {
	Claimant   string    `json:"claimant"`
	ConsumedAt time.Time `json:"consumedAt"`
}

// ClaimStore persists claim locks and consumed payment signatures in a local
// bbolt file. Suitable for a single instance; bbolt holds an exclusive file lock.
type ClaimStore struct {
	db *bbolt.DB
}

var (
	_ appclaim.ClaimGuard    = (*ClaimStore)(nil)
	_ appclaim.PaymentLedger = (*ClaimStore)(nil)
)

// Open opens or creates the database at path, creating the parent directory.
func Open(path string) (*ClaimStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("bolt: create directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketClaimLocks, bucketConsumedPayments} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create buckets: %w", err)
	}
	return &ClaimStore{db: db}, nil
}

func (s *ClaimStore) Close() error { return s.db.Close() }

// AcquireClaim runs the check-and-set in one read-write transaction; bbolt
// serializes writers.
func (s *ClaimStore) AcquireClaim(_ context.Context, claimant string, now time.Time, ttl time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketClaimLocks)
		if raw := b.Get([]byte(claimant)); raw != nil {
			var rec lockRecord
			if err := json.Unmarshal(raw, &rec); err == nil && now.Before(rec.ExpiresAt) {
				return claimdom.ErrClaimInProgress
			}
		}
		data, err := json.Marshal(lockRecord{ExpiresAt: now.Add(ttl).UTC()})
		if err != nil {
			return err
		}
		return b.Put([]byte(claimant), data)
	})
}

func (s *ClaimStore) ReleaseClaim(_ context.Context, claimant string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketClaimLocks).Delete([]byte(claimant))
	})
}

func (s *ClaimStore) ConsumePayment(_ context.Context, signature, claimant string, now time.Time) (bool, error) {
	fresh := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketConsumedPayments)
		if raw := b.Get([]byte(signature)); raw != nil {
			var rec paymentRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("bolt: decode payment %s: %w", signature, err)
			}
			if rec.Claimant != claimant {
				return claimdom.ErrPaymentAlreadyUsed
			}
			return nil
		}
		data, err := json.Marshal(paymentRecord{Claimant: claimant, ConsumedAt: now.UTC()})
		if err != nil {
			return err
		}
		fresh = true
		return b.Put([]byte(signature), data)
	})
	if err != nil {
		return false, err
	}
	return fresh, nil
}

func (s *ClaimStore) RestorePayment(_ context.Context, signature string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConsumedPayments).Delete([]byte(signature))
	})
}

// PurgeExpired deletes locks that expired before now and returns how many.
func (s *ClaimStore) PurgeExpired(now time.Time) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketClaimLocks)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			var rec lockRecord
			if err := json.Unmarshal(v, &rec); err != nil || !now.Before(rec.ExpiresAt) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}
