// internal/adapters/in/http/router.go
package httpin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"tokenclaim/internal/adapters/in/http/handlers"
	"tokenclaim/internal/adapters/in/http/middleware"
)

// RouterDeps collects what main.go injects.
type RouterDeps struct {
	ClaimUC      handlers.ClaimIssuer
	PublicConfig handlers.PublicConfig
	MaxBodyBytes int64

	Metrics http.Handler            // GET /metrics (optional)
	Observe middleware.HTTPObserver // request counter (optional)
	Logger  logrus.FieldLogger
}

// NewRouter mounts:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /config
//	POST /claim, /api/claim          free airdrop or paid sale by body shape
//	POST /transferTokens, /api/transferTokens  paid sale only
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(deps.Logger, deps.Observe))
	r.Use(middleware.Recover)

	// Health check (always on)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Handle("/config", handlers.NewConfigHandler(deps.PublicConfig))

	if deps.ClaimUC != nil {
		claim := handlers.NewClaimHandler(deps.ClaimUC, deps.MaxBodyBytes)
		paid := claim.PaidOnly()

		r.Handle("/claim", claim)
		r.Handle("/api/claim", claim)
		r.Handle("/transferTokens", paid)
		r.Handle("/api/transferTokens", paid)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"NOT_FOUND","message":"not found"}`))
	})

	return r
}
