// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpin "tokenclaim/internal/adapters/in/http"
	"tokenclaim/internal/adapters/in/http/middleware"
	"tokenclaim/internal/infra/config"
	"tokenclaim/internal/platform/di"
	"tokenclaim/internal/platform/logging"
)

func main() {
	ctx := context.Background()

	// ─────────────────────────────────────────────────────────────
	// Config + logging
	// ─────────────────────────────────────────────────────────────
	cfg, cfgErr := config.Load()
	if cfg == nil {
		cfg = &config.Config{Port: config.DefaultPort}
	}
	log := logging.Configure(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if cfgErr != nil {
		log.WithError(cfgErr).Warn("[boot] config load failed (serving /healthz only)")
	}

	// ─────────────────────────────────────────────────────────────
	// Lightweight healthz first so PORT is LISTENed quickly
	// ─────────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ─────────────────────────────────────────────────────────────
	// DI container; keep /healthz even on failure
	// ─────────────────────────────────────────────────────────────
	if cfgErr == nil {
		if cont, err := di.NewContainer(ctx, cfg); err != nil {
			log.WithError(err).Warn("[boot] di init failed (serving /healthz only)")
		} else {
			defer cont.Close()

			if !cont.ClaimUC.Configured() {
				log.WithError(cont.ConfigErr).Warn("[boot] claim endpoints answer SERVER_MISCONFIGURED")
			}
			mux.Handle("/", httpin.NewRouter(cont.RouterDeps()))
		}
	}

	port := cfg.Port
	if port == "" {
		port = config.DefaultPort
	}

	// Global CORS wrapper (covers /healthz and app routes)
	handler := middleware.CORS(cfg.CORSAllowedOrigins)(mux)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// ─────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c
		log.Infof("[boot] received signal: %v; shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("[boot] server shutdown error")
		}
		close(idleConnsClosed)
	}()

	log.WithField("port", port).Info("[boot] listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("[boot] server error")
	}

	<-idleConnsClosed
	log.Info("[boot] server stopped")
}
