package claim

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	claimdom "tokenclaim/internal/domain/claim"
)

// fakeLedger serves token balances keyed by token account address.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[string]uint64
	payments map[string]*PaymentRecord

	TokenBalanceFn  func(ctx context.Context, account common.PublicKey) (uint64, bool, error)
	PaymentRecordFn func(ctx context.Context, signature string) (*PaymentRecord, error)

	balanceCalls int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: map[string]uint64{},
		payments: map[string]*PaymentRecord{},
	}
}

func (f *fakeLedger) set(account common.PublicKey, bal uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[account.ToBase58()] = bal
}

func (f *fakeLedger) TokenBalance(ctx context.Context, account common.PublicKey) (uint64, bool, error) {
	f.mu.Lock()
	f.balanceCalls++
	f.mu.Unlock()
	if f.TokenBalanceFn != nil {
		return f.TokenBalanceFn(ctx, account)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.balances[account.ToBase58()]
	return bal, ok, nil
}

func (f *fakeLedger) PaymentRecord(ctx context.Context, signature string) (*PaymentRecord, error) {
	if f.PaymentRecordFn != nil {
		return f.PaymentRecordFn(ctx, signature)
	}
	return f.payments[signature], nil
}

// fakeSigner wraps a real keypair and counts signatures.
type fakeSigner struct {
	acc       types.Account
	signed    int
	discarded bool
}

func (s *fakeSigner) PublicKey() common.PublicKey { return s.acc.PublicKey }

func (s *fakeSigner) Sign(msg []byte) []byte {
	s.signed++
	return ed25519.Sign(s.acc.PrivateKey, msg)
}

func (s *fakeSigner) Discard() { s.discarded = true }

type fakeSignerProvider struct {
	acc    types.Account
	err    error
	loaded []*fakeSigner
}

func (p *fakeSignerProvider) Treasury(context.Context) (Signer, error) {
	if p.err != nil {
		return nil, p.err
	}
	s := &fakeSigner{acc: p.acc}
	p.loaded = append(p.loaded, s)
	return s, nil
}

func (p *fakeSignerProvider) signatures() int {
	n := 0
	for _, s := range p.loaded {
		n += s.signed
	}
	return n
}

// fakeBuilder signs a fixed message so tests can observe signer use.
type fakeBuilder struct {
	err   error
	calls []BuildInput
}

func (b *fakeBuilder) Build(_ context.Context, in BuildInput) (BuiltClaim, error) {
	b.calls = append(b.calls, in)
	if b.err != nil {
		return BuiltClaim{}, b.err
	}
	in.Signer.Sign([]byte("claim"))
	return BuiltClaim{
		TxBase64:             "dHg=",
		Blockhash:            "hash",
		LastValidBlockHeight: 100,
		InstructionCount:     2,
		CreatedATA:           true,
	}, nil
}

type fakeGuard struct {
	mu       sync.Mutex
	locks    map[string]time.Time
	released []string
}

func newFakeGuard() *fakeGuard { return &fakeGuard{locks: map[string]time.Time{}} }

func (g *fakeGuard) AcquireClaim(_ context.Context, claimant string, now time.Time, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if exp, ok := g.locks[claimant]; ok && now.Before(exp) {
		return claimdom.ErrClaimInProgress
	}
	g.locks[claimant] = now.Add(ttl)
	return nil
}

func (g *fakeGuard) ReleaseClaim(_ context.Context, claimant string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locks, claimant)
	g.released = append(g.released, claimant)
	return nil
}

type fakePayments struct {
	used     map[string]string
	restored []string
}

func (p *fakePayments) ConsumePayment(_ context.Context, sig, claimant string, _ time.Time) (bool, error) {
	if p.used == nil {
		p.used = map[string]string{}
	}
	if owner, ok := p.used[sig]; ok {
		if owner == claimant {
			return false, nil
		}
		return false, claimdom.ErrPaymentAlreadyUsed
	}
	p.used[sig] = claimant
	return true, nil
}

func (p *fakePayments) RestorePayment(_ context.Context, sig string) error {
	delete(p.used, sig)
	p.restored = append(p.restored, sig)
	return nil
}

type recordedEvents struct{ events []Event }

func (r *recordedEvents) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

type recordedMetrics struct{ outcomes []string }

func (r *recordedMetrics) ObserveClaim(variant, outcome string) {
	r.outcomes = append(r.outcomes, variant+":"+outcome)
}

var errRPCDown = errors.New("dial tcp: connection refused")
