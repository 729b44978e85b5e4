package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claimdom "tokenclaim/internal/domain/claim"
)

func TestClaimStore_Lock(t *testing.T) {
	ctx := context.Background()
	s := NewClaimStore()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, s.AcquireClaim(ctx, "w1", now, time.Minute))
	assert.ErrorIs(t, s.AcquireClaim(ctx, "w1", now.Add(30*time.Second), time.Minute), claimdom.ErrClaimInProgress)
	assert.NoError(t, s.AcquireClaim(ctx, "w2", now, time.Minute), "locks are per claimant")

	// expired
	assert.NoError(t, s.AcquireClaim(ctx, "w1", now.Add(time.Minute), time.Minute))

	require.NoError(t, s.ReleaseClaim(ctx, "w2"))
	assert.NoError(t, s.AcquireClaim(ctx, "w2", now, time.Minute))
}

func TestClaimStore_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	s := NewClaimStore()
	now := time.Now()

	var won int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AcquireClaim(ctx, "same", now, time.Minute) == nil {
				atomic.AddInt32(&won, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won)
}

func TestClaimStore_Payments(t *testing.T) {
	ctx := context.Background()
	s := NewClaimStore()
	now := time.Now()

	fresh, err := s.ConsumePayment(ctx, "sig", "w1", now)
	require.NoError(t, err)
	assert.True(t, fresh)

	_, err = s.ConsumePayment(ctx, "sig", "w2", now)
	assert.ErrorIs(t, err, claimdom.ErrPaymentAlreadyUsed)

	// Same buyer retrying keeps the binding.
	fresh, err = s.ConsumePayment(ctx, "sig", "w1", now)
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, s.RestorePayment(ctx, "sig"))
	fresh, err = s.ConsumePayment(ctx, "sig", "w2", now)
	require.NoError(t, err)
	assert.True(t, fresh)
}
