// Package metrics provides Prometheus metrics for the execution engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the executor collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	UnitsSubmitted *prometheus.CounterVec
	UnitsResolved  *prometheus.CounterVec
	InFlight       *prometheus.GaugeVec
	RetryAttempts  *prometheus.CounterVec
	UnitDuration   *prometheus.HistogramVec
	BatchesStarted *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry so
// repeated calls in tests do not collide.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "sfs"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		UnitsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_submitted_total",
				Help:      "Total number of work units accepted by a backend",
			},
			[]string{"backend"},
		),
		UnitsResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "units_resolved_total",
				Help:      "Total number of work units resolved, by final state",
			},
			[]string{"backend", "state"},
		),
		InFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "units_in_flight",
				Help:      "Number of work units currently executing",
			},
			[]string{"backend"},
		),
		RetryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocation_retries_total",
				Help:      "Total number of remote invocation retries after transient errors",
			},
			[]string{"backend"},
		),
		UnitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "unit_duration_seconds",
				Help:      "Wall time from unit start to resolution",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
			[]string{"backend"},
		),
		BatchesStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_started_total",
				Help:      "Total number of batches started",
			},
			[]string{"backend"},
		),
	}
}

// IncBatches counts a started batch.
func (m *Metrics) IncBatches(backend string) {
	if m == nil {
		return
	}
	m.BatchesStarted.WithLabelValues(backend).Inc()
}

// IncSubmitted counts an accepted unit.
func (m *Metrics) IncSubmitted(backend string) {
	if m == nil {
		return
	}
	m.UnitsSubmitted.WithLabelValues(backend).Inc()
}

// ObserveResolved records a unit's final state and duration.
func (m *Metrics) ObserveResolved(backend, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.UnitsResolved.WithLabelValues(backend, state).Inc()
	m.UnitDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// AddInFlight adjusts the in-flight gauge by delta.
func (m *Metrics) AddInFlight(backend string, delta float64) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(backend).Add(delta)
}

// IncRetries counts one retry of a remote invocation.
func (m *Metrics) IncRetries(backend string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(backend).Inc()
}

// Serve exposes /metrics and /health on address until ctx is cancelled.
func Serve(ctx context.Context, address string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
