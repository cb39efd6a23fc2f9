package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

// Metrics provides Prometheus metrics for kitinfo sessions. It implements
// engine.EventPublisher and typekit.CallObserver. A Metrics built with
// metrics disabled records nothing.
type Metrics struct {
	config MetricsConfig
	logger *Logger

	sessions        *prometheus.CounterVec
	sessionDuration prometheus.Histogram

	operationsExecuted *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	queueDepth         prometheus.Gauge

	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	gatewayErrors   *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
	listen   net.Addr
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics(cfg MetricsConfig, logger *Logger) (*Metrics, error) {
	if logger == nil {
		logger = NewNopLogger()
	}
	if !cfg.Enabled {
		return &Metrics{config: cfg, logger: logger}, nil
	}

	ns := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),

		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "sessions_total",
				Help:      "Sessions by outcome",
			},
			[]string{"status"},
		),
		sessionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "session_duration_seconds",
				Help:      "Wall time of finished sessions",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		operationsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "operations_executed_total",
				Help:      "Operations executed by the dispatcher",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations, including time spent waiting for input",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "queue_depth",
				Help:      "Operations pending after the last executed one",
			},
		),
		gatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "gateway_calls_total",
				Help:      "Typekit API calls",
			},
			[]string{"call"},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "gateway_call_duration_seconds",
				Help:      "Duration of Typekit API calls, retries included",
				Buckets:   buckets,
			},
			[]string{"call"},
		),
		gatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "gateway_errors_total",
				Help:      "Failed Typekit API calls by error class",
			},
			[]string{"call", "class"},
		),
	}

	collectors := []prometheus.Collector{
		m.sessions, m.sessionDuration,
		m.operationsExecuted, m.operationDuration, m.queueDepth,
		m.gatewayCalls, m.gatewayDuration, m.gatewayErrors,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// Enabled reports whether metrics are recorded.
func (m *Metrics) Enabled() bool {
	return m.registry != nil
}

// Registry returns the registry holding the collectors, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Publish records a dispatcher event.
func (m *Metrics) Publish(_ context.Context, event *engine.Event) error {
	if !m.Enabled() || event == nil {
		return nil
	}

	switch event.Type {
	case engine.EventTypeSessionCompleted:
		m.sessions.WithLabelValues("completed").Inc()
		m.sessionDuration.Observe(event.Duration.Seconds())
	case engine.EventTypeSessionFailed:
		m.sessions.WithLabelValues("failed").Inc()
		m.sessionDuration.Observe(event.Duration.Seconds())
	case engine.EventTypeOperationCompleted, engine.EventTypeOperationFailed:
		status := "completed"
		if event.Type == engine.EventTypeOperationFailed {
			status = "failed"
		}
		op := event.Operation.String()
		m.operationsExecuted.WithLabelValues(op, status).Inc()
		m.operationDuration.WithLabelValues(op).Observe(event.Duration.Seconds())
		m.queueDepth.Set(float64(event.Pending))
	}
	return nil
}

// ObserveGatewayCall records one Typekit API call.
func (m *Metrics) ObserveGatewayCall(call string, duration time.Duration, err error) {
	if !m.Enabled() {
		return
	}
	m.gatewayCalls.WithLabelValues(call).Inc()
	m.gatewayDuration.WithLabelValues(call).Observe(duration.Seconds())
	if err != nil {
		class := string(engine.ClassOf(err))
		if class == "" {
			class = "unknown"
		}
		m.gatewayErrors.WithLabelValues(call, class).Inc()
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.Enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          log.New(m.logger.Writer(zerolog.WarnLevel), "", 0),
	})
}

// StartServer serves the metrics endpoint in the background until Shutdown.
// It is a no-op when metrics are disabled or no listen address is set.
func (m *Metrics) StartServer() error {
	if !m.Enabled() || m.config.ListenAddress == "" {
		return nil
	}

	ln, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.config.ListenAddress, err)
	}

	m.listen = ln.Addr()
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          log.New(m.logger.Writer(zerolog.WarnLevel), "", 0),
	}

	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("metrics server stopped")
		}
	}()
	m.logger.Infof("serving metrics on http://%s%s", ln.Addr(), m.config.Path)
	return nil
}

func (m *Metrics) addr() string {
	if m.listen == nil {
		return ""
	}
	return m.listen.String()
}

// WriteTextfile writes the current metrics in the text exposition format, for
// the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if !m.Enabled() || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown stops the metrics server and writes the configured textfile.
func (m *Metrics) Shutdown(ctx context.Context) error {
	var errs []error
	if m.server != nil {
		errs = append(errs, m.server.Shutdown(ctx))
		m.server = nil
	}
	errs = append(errs, m.WriteTextfile(m.config.Textfile))
	return errors.Join(errs...)
}
