// internal/adapters/out/memory/claim_store.go
package memory

import (
	"context"
	"sync"
	"time"

	appclaim "tokenclaim/internal/application/claim"
	claimdom "tokenclaim/internal/domain/claim"
)

// ClaimStore is a single-process ClaimGuard and PaymentLedger.
type ClaimStore struct {
	mu       sync.Mutex
	locks    map[string]time.Time // claimant -> expiry
	payments map[string]string    // signature -> claimant
}

var (
	_ appclaim.ClaimGuard    = (*ClaimStore)(nil)
	_ appclaim.PaymentLedger = (*ClaimStore)(nil)
)

func NewClaimStore() *ClaimStore {
	return &ClaimStore{
		locks:    map[string]time.Time{},
		payments: map[string]string{},
	}
}

func (s *ClaimStore) AcquireClaim(_ context.Context, claimant string, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.locks[claimant]; ok && now.Before(exp) {
		return claimdom.ErrClaimInProgress
	}
	s.locks[claimant] = now.Add(ttl)
	s.gc(now)
	return nil
}

func (s *ClaimStore) ReleaseClaim(_ context.Context, claimant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, claimant)
	return nil
}

func (s *ClaimStore) ConsumePayment(_ context.Context, signature, claimant string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, used := s.payments[signature]; used {
		if owner == claimant {
			return false, nil
		}
		return false, claimdom.ErrPaymentAlreadyUsed
	}
	s.payments[signature] = claimant
	return true, nil
}

func (s *ClaimStore) RestorePayment(_ context.Context, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payments, signature)
	return nil
}

// gc drops expired locks; called with mu held.
func (s *ClaimStore) gc(now time.Time) {
	for k, exp := range s.locks {
		if !now.Before(exp) {
			delete(s.locks, k)
		}
	}
}
