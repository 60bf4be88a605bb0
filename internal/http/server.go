// Package http serves health and Prometheus metrics endpoints for the
// engine.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"polytune/internal/core"
)

type Server struct {
	config  *core.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	metrics *Metrics
}

// Metrics holds the engine's Prometheus collectors. The Record/Observe
// methods on Server satisfy the aggregate package's Recorder interface.
type Metrics struct {
	SearchesTotal   *prometheus.CounterVec
	ResolvesTotal   *prometheus.CounterVec
	RotationsTotal  *prometheus.CounterVec
	SearchDuration  *prometheus.HistogramVec
	LastResultCount prometheus.Gauge
}

func NewServer(config *core.ServerConfig, logger *zap.Logger) *Server {
	metrics := &Metrics{
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polytune_searches_total",
				Help: "Total number of provider search calls",
			},
			[]string{"provider", "status"},
		),
		ResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polytune_resolves_total",
				Help: "Total number of provider stream resolutions",
			},
			[]string{"provider", "status"},
		),
		RotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polytune_rotations_total",
				Help: "Total number of mirror instance rotations",
			},
			[]string{"provider"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polytune_search_duration_seconds",
				Help:    "Time spent in provider search calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		LastResultCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "polytune_last_result_count",
				Help: "Merged result count of the most recent search",
			},
		),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.SearchesTotal,
		metrics.ResolvesTotal,
		metrics.RotationsTotal,
		metrics.SearchDuration,
		metrics.LastResultCount,
	)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"polytune"}`))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"polytune"}`))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>polytune</title></head>
<body>
    <h1>polytune</h1>
    <p>Multi-provider music search and stream resolution engine.</p>
    <ul>
        <li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
        <li><a href="/healthz">/healthz</a> - Health check</li>
        <li><a href="/readyz">/readyz</a> - Readiness check</li>
    </ul>
</body>
</html>`))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return &Server{
		config:  config,
		logger:  logger,
		server:  server,
		metrics: metrics,
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) GetMetrics() *Metrics {
	return s.metrics
}

func (s *Server) RecordSearch(providerName, status string) {
	s.metrics.SearchesTotal.WithLabelValues(providerName, status).Inc()
}

func (s *Server) RecordResolve(providerName, status string) {
	s.metrics.ResolvesTotal.WithLabelValues(providerName, status).Inc()
}

func (s *Server) RecordRotation(providerName string) {
	s.metrics.RotationsTotal.WithLabelValues(providerName).Inc()
}

func (s *Server) ObserveSearchDuration(providerName string, d time.Duration) {
	s.metrics.SearchDuration.WithLabelValues(providerName).Observe(d.Seconds())
}

func (s *Server) SetLastResultCount(count int) {
	s.metrics.LastResultCount.Set(float64(count))
}
