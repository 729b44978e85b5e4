// internal/platform/metrics/metrics.go
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the process metrics. A private registry keeps tests isolated
// from the global default one.
type Registry struct {
	registry     *prometheus.Registry
	claimsTotal  *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec
	rpcErrors    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

func New() *Registry {
	claims := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenclaim_claims_total",
		Help: "Claim requests by variant and outcome (issued or error code)",
	}, []string{"variant", "outcome"})

	rpc := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokenclaim_rpc_duration_seconds",
		Help:    "Solana JSON-RPC call duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	rpcErrs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenclaim_rpc_errors_total",
		Help: "Solana JSON-RPC calls that returned an error",
	}, []string{"method"})

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenclaim_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"route", "status"})

	r := prometheus.NewRegistry()
	r.MustRegister(claims, rpc, rpcErrs, reqs)

	return &Registry{
		registry:     r,
		claimsTotal:  claims,
		rpcDuration:  rpc,
		rpcErrors:    rpcErrs,
		httpRequests: reqs,
	}
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.registry }

// ObserveClaim implements the claim usecase Recorder.
func (m *Registry) ObserveClaim(variant, outcome string) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(variant, outcome).Inc()
}

// ObserveRPC matches solana.JSONRPCClient.Observe.
func (m *Registry) ObserveRPC(method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		m.rpcErrors.WithLabelValues(method).Inc()
	}
}

func (m *Registry) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, http.StatusText(status)).Inc()
}

// ErrNilRegistry is returned by Register on a nil receiver.
var ErrNilRegistry = errors.New("metrics: nil registry")

// Register adds extra collectors (e.g. Go runtime) to the registry.
func (m *Registry) Register(cs ...prometheus.Collector) error {
	if m == nil {
		return ErrNilRegistry
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
