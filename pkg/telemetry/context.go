package telemetry

import (
	"context"
	"errors"

	"github.com/kitinfo/kitinfo/pkg/engine"
)

// Telemetry bundles the logger, tracer and metrics of a process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// NewTelemetry creates every component from cfg.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics, logger.NewComponentLogger("metrics"))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// Publishers returns the event publishers telemetry contributes to a session,
// followed by extra.
func (t *Telemetry) Publishers(extra ...engine.EventPublisher) engine.Publishers {
	pubs := engine.Publishers{}
	if t.Metrics.Enabled() {
		pubs = append(pubs, t.Metrics)
	}
	return append(pubs, extra...)
}

// Shutdown stops the metrics server, writes the metrics textfile, flushes
// pending spans and closes the log file.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Metrics.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
		t.Logger.Close(),
	)
}
