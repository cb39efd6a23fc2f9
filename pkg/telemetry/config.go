package telemetry

import (
	"fmt"
	"io"
	"time"
)

// Config contains the telemetry configuration of a kitinfo process.
type Config struct {
	// ServiceName identifies the process in traces and metrics.
	ServiceName string

	// ServiceVersion is the build version.
	ServiceVersion string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string

	// Format is console or json.
	Format string

	// Output is stderr, stdout or a file path. Ignored when Writer is set.
	Output string

	// Writer overrides Output.
	Writer io.Writer

	// NoColor disables colors in the console format.
	NoColor bool
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled bool

	// Exporter is otlp, stdout or none.
	Exporter string

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string

	// Insecure disables TLS towards the collector.
	Insecure bool

	// SamplingRate is the ratio of sessions traced (0.0 to 1.0).
	SamplingRate float64

	ExportTimeout time.Duration

	// Writer receives spans from the stdout exporter. Defaults to stderr so
	// spans never interleave with the interactive console.
	Writer io.Writer
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool

	// Namespace prefixes every metric name.
	Namespace string

	// ListenAddress serves Path while the session runs. Empty disables the server.
	ListenAddress string
	Path          string

	// Textfile is written when telemetry shuts down. Empty disables it.
	Textfile string

	// Buckets are the histogram buckets in seconds.
	Buckets []float64
}

// DefaultConfig returns a configuration that logs warnings to stderr and
// leaves tracing and metrics off.
func DefaultConfig() *Config {
	return &Config{
		ServiceName: "kitinfo",
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
		Tracing: TracingConfig{
			Exporter:      "stdout",
			Insecure:      true,
			SamplingRate:  1.0,
			ExportTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Namespace: "kitinfo",
			Path:      "/metrics",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be console or json)", c.Logging.Format)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "otlp":
			if c.Tracing.Endpoint == "" {
				return fmt.Errorf("tracing endpoint is required for the otlp exporter")
			}
		case "stdout", "none":
		default:
			return fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter)
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return fmt.Errorf("sampling rate must be between 0.0 and 1.0, got %f", c.Tracing.SamplingRate)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Namespace == "" {
			return fmt.Errorf("metrics namespace is required")
		}
		if c.Metrics.ListenAddress != "" && c.Metrics.Path == "" {
			return fmt.Errorf("metrics path is required when serving metrics")
		}
	}

	return nil
}
