package telemetry

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

func enabledMetrics(t *testing.T) *Metrics {
	t.Helper()
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true
	m, err := NewMetrics(cfg, nil)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	return m
}

// value reads the current value of a counter or gauge.
func value(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	}
	t.Fatalf("Unsupported metric %v", &m)
	return 0
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "no service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{
			name: "otlp without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "otlp"
			},
			wantErr: true,
		},
		{
			name: "sampling out of range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SamplingRate = 2
			},
			wantErr: true,
		},
		{
			name: "server without path",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.ListenAddress = "127.0.0.1:0"
				c.Metrics.Path = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogger_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.NewComponentLogger("engine").
		WithSessionID("s1").
		WithField("operation", "view").
		WithError(errors.New("boom")).
		Debug("operation failed")

	for _, want := range []string{`"component":"engine"`, `"session_id":"s1"`, `"operation":"view"`, `"error":"boom"`, `"level":"debug"`} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("Expected %s in %s", want, buf.String())
		}
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := NewLogger(LoggingConfig{Level: "warn", Format: "json", Writer: buf})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kitinfo.log")
	logger, err := NewLogger(LoggingConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info("to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("Expected message in log file, got %q", data)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("Expected a no-op logger without one in the context")
	}

	tel, err := NewTelemetry(DefaultConfig())
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}
	ctx := tel.Logger.WithContext(context.Background())

	if FromContext(ctx) != tel.Logger {
		t.Error("Expected the telemetry logger from the context")
	}
}

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{}, nil)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	if m.Enabled() {
		t.Error("Expected disabled metrics")
	}
	if err := m.Publish(context.Background(), &engine.Event{Type: engine.EventTypeSessionCompleted}); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
	m.ObserveGatewayCall("list", time.Millisecond, nil)
	if err := m.StartServer(); err != nil {
		t.Errorf("StartServer failed: %v", err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestMetrics_Publish(t *testing.T) {
	m := enabledMetrics(t)
	ctx := context.Background()

	events := []*engine.Event{
		{Type: engine.EventTypeSessionStarted},
		{Type: engine.EventTypeOperationCompleted, Operation: engine.OpMainMenu, Pending: 3},
		{Type: engine.EventTypeOperationFailed, Operation: engine.OpView, Pending: 1},
		{Type: engine.EventTypeOperationCompleted, Operation: engine.OpView, Pending: 0},
		{Type: engine.EventTypeSessionFailed, Duration: time.Second},
	}
	for _, e := range events {
		if err := m.Publish(ctx, e); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	if got := value(t, m.operationsExecuted.WithLabelValues("view", "failed")); got != 1 {
		t.Errorf("Expected 1 failed view, got %v", got)
	}
	if got := value(t, m.operationsExecuted.WithLabelValues("view", "completed")); got != 1 {
		t.Errorf("Expected 1 completed view, got %v", got)
	}
	if got := value(t, m.sessions.WithLabelValues("failed")); got != 1 {
		t.Errorf("Expected 1 failed session, got %v", got)
	}
	if got := value(t, m.queueDepth); got != 0 {
		t.Errorf("Expected queue depth 0, got %v", got)
	}
}

func TestMetrics_ObserveGatewayCall(t *testing.T) {
	m := enabledMetrics(t)

	m.ObserveGatewayCall("get", 10*time.Millisecond, nil)
	m.ObserveGatewayCall("get", 10*time.Millisecond, engine.NewRemoteError(404, "404 Not Found", nil))
	m.ObserveGatewayCall("list", 10*time.Millisecond, errors.New("plain"))

	if got := value(t, m.gatewayCalls.WithLabelValues("get")); got != 2 {
		t.Errorf("Expected 2 get calls, got %v", got)
	}
	if got := value(t, m.gatewayErrors.WithLabelValues("get", string(engine.ErrorClassRemote))); got != 1 {
		t.Errorf("Expected 1 remote get error, got %v", got)
	}
	if got := value(t, m.gatewayErrors.WithLabelValues("list", "unknown")); got != 1 {
		t.Errorf("Expected 1 unknown list error, got %v", got)
	}
}

func TestMetrics_Server(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true
	cfg.ListenAddress = "127.0.0.1:0"
	m, err := NewMetrics(cfg, nil)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	if err := m.StartServer(); err != nil {
		t.Fatalf("StartServer failed: %v", err)
	}
	defer m.Shutdown(context.Background())

	m.ObserveGatewayCall("list", time.Millisecond, nil)

	resp, err := http.Get("http://" + m.addr() + cfg.Path)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `kitinfo_gateway_calls_total{call="list"} 1`) {
		t.Errorf("Expected gateway counter in %s", body)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true
	cfg.Textfile = filepath.Join(t.TempDir(), "nested", "kitinfo.prom")
	m, err := NewMetrics(cfg, nil)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.ObserveGatewayCall("save", time.Millisecond, nil)
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	data, err := os.ReadFile(cfg.Textfile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `kitinfo_gateway_calls_total{call="save"} 1`) {
		t.Errorf("Expected gateway counter in textfile, got %s", data)
	}
}

func TestTelemetry_Publishers(t *testing.T) {
	cfg := DefaultConfig()
	tel, err := NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}
	if n := len(tel.Publishers()); n != 0 {
		t.Errorf("Expected no publishers with metrics disabled, got %d", n)
	}

	cfg.Metrics.Enabled = true
	tel, err = NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("NewTelemetry failed: %v", err)
	}
	if n := len(tel.Publishers(engine.Publishers{})); n != 2 {
		t.Errorf("Expected metrics plus one extra publisher, got %d", n)
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestTracer_Stdout(t *testing.T) {
	buf := &bytes.Buffer{}
	tracer, err := NewTracer(TracingConfig{
		Enabled:       true,
		Exporter:      "stdout",
		SamplingRate:  1,
		ExportTimeout: time.Second,
		Writer:        buf,
	}, "kitinfo", "test")
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}

	ctx, span := tracer.StartCommandSpan(context.Background(), "session")
	if TraceID(ctx) == "" {
		t.Error("Expected a trace id on the command span")
	}
	RecordError(span, errors.New("boom"))
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !strings.Contains(buf.String(), "command.session") {
		t.Errorf("Expected exported span, got %q", buf.String())
	}
}

func TestTracer_Disabled(t *testing.T) {
	tracer, err := NewTracer(TracingConfig{}, "kitinfo", "test")
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}
	ctx, span := tracer.Start(context.Background(), "noop")
	span.End()

	if TraceID(ctx) != "" {
		t.Error("Expected no trace id from a disabled tracer")
	}
	if tracer.Provider() == nil {
		t.Error("Expected a no-op provider")
	}
}
