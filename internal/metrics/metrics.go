// Package metrics exposes Prometheus instrumentation for the pipeline.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_records_received_total",
			Help: "Inbound records by channel",
		},
		[]string{"channel"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_records_dropped_total",
			Help: "Inbound records dropped for decode or validation failure",
		},
		[]string{"channel"},
	)

	CorrelationResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_correlation_results_total",
			Help: "Correlation detections by rule kind",
		},
		[]string{"kind"},
	)

	AlertsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_alerts_emitted_total",
			Help: "Alerts that passed suppression",
		},
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_alerts_suppressed_total",
			Help: "Alert candidates dropped as duplicates",
		},
	)

	AlertsEscalated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_alerts_escalated_total",
			Help: "Alerts that required escalation",
		},
	)

	SuppressionDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_suppression_degraded_total",
			Help: "Fail-open decisions caused by suppression store errors",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vigil_event_queue_depth",
			Help: "Events waiting in the correlation handoff queue",
		},
	)

	Subscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vigil_subscribers",
			Help: "Live subscriptions by topic",
		},
		[]string{"topic"},
	)

	SubscribersDisconnected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigil_subscribers_disconnected_total",
			Help: "Subscribers disconnected for mailbox overflow",
		},
	)
)

// Server serves the /metrics endpoint.
type Server struct {
	srv *http.Server
}

// NewServer creates the metrics HTTP server.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves metrics until Stop is called.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("metrics server started", "addr", s.srv.Addr)
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
