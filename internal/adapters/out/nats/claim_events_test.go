package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appclaim "tokenclaim/internal/application/claim"
	claimdom "tokenclaim/internal/domain/claim"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestPublish(t *testing.T) {
	fc := &fakeConn{}
	p := NewClaimEventPublisher(fc, "airdrop.claims.")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), appclaim.Event{
		Type:      appclaim.EventIssued,
		Variant:   claimdom.VariantFree,
		Claimant:  "Wallet1",
		Amount:    1,
		CreatedAt: at,
	}))
	require.NoError(t, p.Publish(context.Background(), appclaim.Event{
		Type:    appclaim.EventRejected,
		Variant: claimdom.VariantPaid,
		Code:    claimdom.CodeUnderpaid,
	}))

	assert.Equal(t, []string{"airdrop.claims.issued", "airdrop.claims.rejected"}, fc.subjects)

	var got map[string]any
	require.NoError(t, json.Unmarshal(fc.payloads[0], &got))
	assert.Equal(t, "claim.issued", got["type"])
	assert.Equal(t, "free", got["variant"])
	assert.Equal(t, "Wallet1", got["claimant"])
	assert.Equal(t, "2026-01-02T03:04:05Z", got["createdAt"])
	assert.NotContains(t, got, "code")
}

func TestPublish_Error(t *testing.T) {
	p := NewClaimEventPublisher(&fakeConn{err: errors.New("nats: connection closed")}, "")
	assert.Equal(t, "tokenclaim.events.issued", p.Subject(appclaim.EventIssued))

	err := p.Publish(context.Background(), appclaim.Event{Type: appclaim.EventIssued})
	assert.ErrorContains(t, err, "connection closed")
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), appclaim.Event{}))
}
