// internal/platform/di/container.go
package di

import (
	"context"
	"fmt"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	httpin "tokenclaim/internal/adapters/in/http"
	"tokenclaim/internal/adapters/in/http/handlers"
	boltadapter "tokenclaim/internal/adapters/out/bolt"
	pgadapter "tokenclaim/internal/adapters/out/db"
	fsadapter "tokenclaim/internal/adapters/out/firestore"
	"tokenclaim/internal/adapters/out/memory"
	natsadapter "tokenclaim/internal/adapters/out/nats"
	appclaim "tokenclaim/internal/application/claim"
	claimdom "tokenclaim/internal/domain/claim"
	"tokenclaim/internal/domain/address"
	"tokenclaim/internal/infra/config"
	"tokenclaim/internal/infra/database"
	firestoreinfra "tokenclaim/internal/infra/firestore"
	solanainfra "tokenclaim/internal/infra/solana"
	"tokenclaim/internal/platform/metrics"
)

// Container bundles the dependencies main.go needs.
type Container struct {
	Config  *config.Config
	Metrics *metrics.Registry
	Ledger  *solanainfra.Ledger
	ClaimUC *appclaim.Usecase

	PublicConfig handlers.PublicConfig

	// ConfigErr is set when the server runs degraded (SERVER_MISCONFIGURED).
	ConfigErr error

	log     logrus.FieldLogger
	closers []func() error
}

// guardStore is what every CLAIM_GUARD backend provides.
type guardStore interface {
	appclaim.ClaimGuard
	appclaim.PaymentLedger
}

// NewContainer wires the claim engine. Missing token or secret settings do
// not fail: the usecase answers SERVER_MISCONFIGURED and /healthz stays up.
// Failing to open a configured guard store is an error.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("di: config is nil")
	}
	c := &Container{
		Config:  cfg,
		Metrics: metrics.New(),
		log:     logrus.WithField("component", "container"),
	}

	if err := c.Metrics.Register(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	); err != nil {
		return nil, fmt.Errorf("di: register runtime metrics: %w", err)
	}

	// 1. Ledger (JSON-RPC reads + SDK broadcast)
	c.Ledger = solanainfra.NewLedger(cfg.RPCURL, cfg.Commitment, cfg.PaymentCommitment)
	c.Ledger.RPC.Observe = c.Metrics.ObserveRPC

	// 2. Optional guard / replay store
	guard, err := c.openGuard(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	// 3. Events (best-effort)
	var events appclaim.EventPublisher = natsadapter.Noop{}
	if strings.TrimSpace(cfg.NATSURL) != "" {
		pub, err := natsadapter.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			c.log.WithError(err).Warn("nats unavailable, claim events disabled")
		} else {
			events = pub
			c.closers = append(c.closers, func() error { pub.Close(); return nil })
		}
	}

	deps := appclaim.Deps{
		Ledger:  c.Ledger,
		Events:  events,
		Metrics: c.Metrics,
		Logger:  logrus.WithField("component", "claim_uc"),
	}
	if guard != nil {
		deps.Guard = guard
		deps.Payments = guard
	}
	settings := appclaim.Settings{
		ClaimAmount:           cfg.AmountInBaseUnits,
		Decimals:              cfg.TokenDecimals,
		TreasuryNative:        strings.TrimSpace(cfg.TreasurySOLAddress),
		PriceLamportsPerToken: cfg.PriceLamportsPerToken,
		GuardTTL:              cfg.ClaimGuardTTL,
	}

	// 4. Mint + treasury key; any failure leaves the usecase unconfigured.
	c.ConfigErr = cfg.Validate()
	var mint common.PublicKey
	if c.ConfigErr == nil {
		mint, err = address.ParseAddress(cfg.TokenMint)
		if err != nil {
			c.ConfigErr = fmt.Errorf("TOKEN_MINT: %w", err)
		}
	}
	if c.ConfigErr == nil {
		signers, err := c.openSigners(ctx)
		if err != nil {
			c.ConfigErr = err
		} else {
			settings.Mint = mint
			deps.Signers = signers
			deps.Builder = solanainfra.NewClaimTxBuilder(c.Ledger, mint)
		}
	}

	if c.ConfigErr != nil {
		c.log.WithError(c.ConfigErr).Warn("claim engine not configured; answering SERVER_MISCONFIGURED")
	}

	c.ClaimUC = appclaim.NewUsecase(deps, settings)
	c.PublicConfig = c.publicConfig(ctx, deps.Signers, settings)

	c.log.WithFields(logrus.Fields{
		"mint":       address.MaskShort(c.PublicConfig.Mint),
		"guard":      cfg.ClaimGuard,
		"configured": c.ClaimUC.Configured(),
	}).Info("container ready")
	return c, nil
}

func (c *Container) openGuard(ctx context.Context) (guardStore, error) {
	cfg := c.Config
	switch cfg.ClaimGuard {
	case "", config.GuardNone:
		return nil, nil

	case config.GuardMemory:
		return memory.NewClaimStore(), nil

	case config.GuardBolt:
		s, err := boltadapter.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("di: bolt guard: %w", err)
		}
		c.closers = append(c.closers, s.Close)
		return s, nil

	case config.GuardFirestore:
		fc, err := firestoreinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("di: firestore guard: %w", err)
		}
		c.closers = append(c.closers, fc.Close)
		return fsadapter.NewClaimStoreFS(fc.Client), nil

	case config.GuardPostgres:
		conn, err := database.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("di: postgres guard: %w", err)
		}
		c.closers = append(c.closers, conn.Close)
		s := pgadapter.NewClaimStorePG(conn.Client)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("di: postgres guard: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("di: unknown CLAIM_GUARD %q", cfg.ClaimGuard)
}

// openSigners picks the first configured key source: inline secret, key file,
// Secret Manager.
func (c *Container) openSigners(ctx context.Context) (appclaim.SignerProvider, error) {
	cfg := c.Config
	switch {
	case strings.TrimSpace(cfg.TreasurySecret) != "":
		return solanainfra.NewEnvKeySource(cfg.TreasurySecret), nil
	case strings.TrimSpace(cfg.TreasurySecretFile) != "":
		return &solanainfra.FileKeySource{Path: cfg.TreasurySecretFile}, nil
	case strings.TrimSpace(cfg.TreasurySecretName) != "":
		sm, err := solanainfra.NewSecretManagerKeySource(ctx, cfg.TreasurySecretName)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, sm.Close)
		return sm, nil
	}
	return nil, claimdom.ErrNotConfigured
}

// publicConfig resolves the treasury address once for GET /config. The key
// is loaded and discarded immediately.
func (c *Container) publicConfig(ctx context.Context, signers appclaim.SignerProvider, s appclaim.Settings) handlers.PublicConfig {
	pc := handlers.PublicConfig{
		Decimals:              s.Decimals,
		ClaimAmount:           s.ClaimAmount,
		Treasury:              s.TreasuryNative,
		PriceLamportsPerToken: s.PriceLamportsPerToken,
		Cluster:               clusterOf(c.Config.RPCURL),
		Configured:            c.ClaimUC.Configured(),
	}
	if s.Mint != (common.PublicKey{}) {
		pc.Mint = s.Mint.ToBase58()
	}
	if pc.Treasury == "" && signers != nil {
		if signer, err := signers.Treasury(ctx); err != nil {
			c.log.WithError(err).Warn("treasury key not readable at boot")
		} else {
			pc.Treasury = signer.PublicKey().ToBase58()
			signer.Discard()
		}
	}
	return pc
}

// clusterOf guesses the explorer cluster name from the RPC endpoint.
func clusterOf(rpcURL string) string {
	u := strings.ToLower(rpcURL)
	switch {
	case strings.Contains(u, "devnet"):
		return "devnet"
	case strings.Contains(u, "testnet"):
		return "testnet"
	case strings.Contains(u, "localhost"), strings.Contains(u, "127.0.0.1"):
		return "custom"
	case strings.Contains(u, "mainnet"):
		return "mainnet-beta"
	}
	return ""
}

// RouterDeps builds the HTTP layer inputs.
func (c *Container) RouterDeps() httpin.RouterDeps {
	return httpin.RouterDeps{
		ClaimUC:      c.ClaimUC,
		PublicConfig: c.PublicConfig,
		MaxBodyBytes: c.Config.MaxBodyBytes,
		Metrics:      c.Metrics.Handler(),
		Observe:      c.Metrics,
		Logger:       logrus.StandardLogger(),
	}
}

// Close releases stores and clients in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.log.WithError(err).Warn("close failed")
		}
	}
	c.closers = nil
}
