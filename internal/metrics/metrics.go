// Package metrics exposes fml's Prometheus collectors, modeled on the
// teacher's internal/metrics/metrics.go (CounterVec/GaugeVec/HistogramVec
// built with promauto, served over HTTP). fml needs a much smaller surface
// than the teacher's (no Kafka/DLQ/position-system metrics), so this
// package covers only what spec.md's operations actually produce:
// ingested/dropped/evicted/error entry counts, ring occupancy and active
// feed goroutine gauges, and search latency/expansion-size histograms.
//
// Unlike the teacher's package-level vars registered once into the global
// default registry via a sync.Once + safeRegister (to tolerate re-init),
// fml gives each Metrics instance its own prometheus.Registry so tests can
// construct independent instances without fighting global registration
// state.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector fml's core emits into.
type Metrics struct {
	registry *prometheus.Registry

	EntriesIngested *prometheus.CounterVec
	EntriesDropped  *prometheus.CounterVec
	EntriesEvicted  prometheus.Counter
	Errors          *prometheus.CounterVec

	RingOccupancy  prometheus.Gauge
	ActiveFeeds    *prometheus.GaugeVec
	SearchLatency  prometheus.Histogram
	ExpansionSize  prometheus.Histogram
}

// New builds a Metrics instance with its own registry, so it is safe to
// construct more than one (e.g. one per test) without a "duplicate metrics
// collector registration attempted" panic.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		EntriesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fml_entries_ingested_total",
			Help: "Total log entries ingested, by feed source.",
		}, []string{"source"}),

		EntriesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fml_entries_dropped_total",
			Help: "Total log entries dropped before reaching the store, by reason.",
		}, []string{"reason"}),

		EntriesEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "fml_entries_evicted_total",
			Help: "Total entries evicted from the ring buffer to make room for new ones.",
		}),

		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fml_errors_total",
			Help: "Total errors, by component and kind.",
		}, []string{"component", "kind"}),

		RingOccupancy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "fml_ring_occupancy",
			Help: "Current number of entries held in the ring buffer.",
		}),

		ActiveFeeds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fml_active_feeds",
			Help: "Number of feed goroutines currently running, by source.",
		}, []string{"source"}),

		SearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fml_search_latency_seconds",
			Help:    "Time spent evaluating a search query.",
			Buckets: prometheus.DefBuckets,
		}),

		ExpansionSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fml_search_expansion_terms",
			Help:    "Number of ontology terms a query expanded into.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
	}
}

// Server serves /metrics over HTTP via gorilla/mux, matching the teacher's
// NewMetricsServer/Start/Stop lifecycle.
type Server struct {
	httpServer *http.Server
}

// NewServer builds (but does not start) a metrics HTTP server bound to addr.
func NewServer(addr string, m *Metrics) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
}

// Start begins serving in the background. A failure after startup (other
// than a clean Shutdown) is returned on errCh.
func (s *Server) Start(errCh chan<- error) {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
