package commands

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kitinfo/kitinfo/pkg/config"
	"github.com/kitinfo/kitinfo/pkg/console"
	"github.com/kitinfo/kitinfo/pkg/engine"
	"github.com/kitinfo/kitinfo/pkg/stores"
	"github.com/kitinfo/kitinfo/pkg/telemetry"
	"github.com/kitinfo/kitinfo/pkg/typekit"
)

const shutdownTimeout = 5 * time.Second

// runSession runs one interactive session against the Typekit API.
func runSession(cmd *cobra.Command, opts *options) (err error) {
	cfg, err := loadConfig(cmd, opts, true)
	if err != nil {
		return err
	}

	tel, err := newTelemetry(cfg, opts.version, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer shutdownTelemetry(tel)

	ctx := tel.Logger.WithContext(cmd.Context())
	ctx, span := tel.Tracer.StartCommandSpan(ctx, "session")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	if err := tel.Metrics.StartServer(); err != nil {
		return err
	}

	var publishers []engine.EventPublisher
	if cfg.Journal.Enabled {
		store, err := openJournal(ctx, cfg.Journal.Path)
		if err != nil {
			// A session without a journal is still useful.
			tel.Logger.WithError(err).Warn("Session journal unavailable")
		} else {
			defer store.Close()
			publishers = append(publishers, stores.NewJournal(store))
		}
	}

	client, err := typekit.New(typekit.Config{
		BaseURL:        cfg.API.BaseURL,
		Token:          cfg.API.Token,
		Timeout:        cfg.API.Timeout,
		RetryMax:       cfg.API.RetryMax,
		Logger:         tel.Logger.NewComponentLogger("typekit").Zerolog(),
		Observer:       tel.Metrics,
		TracerProvider: tel.Tracer.Provider(),
	})
	if err != nil {
		return err
	}

	surface := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), console.Options{
		NoColor:      cfg.Session.NoColor,
		OutputFormat: cfg.Session.OutputFormat,
	})
	defer surface.Close()

	d := engine.New(client, surface,
		engine.WithLogger(tel.Logger.NewComponentLogger("engine").Zerolog()),
		engine.WithPublisher(tel.Publishers(publishers...)),
		engine.WithTracer(tel.Tracer.Provider().Tracer(engine.TracerName)),
		engine.WithFetchConcurrency(cfg.Session.FetchConcurrency),
	)
	span.SetAttributes(telemetry.AttrSessionID.String(d.SessionID()))

	logger := tel.Logger.WithSessionID(d.SessionID())
	if traceID := telemetry.TraceID(ctx); traceID != "" {
		logger = logger.WithField("trace_id", traceID)
	}
	logger.Debug("Session started")

	return d.Run(ctx)
}

func newTelemetry(cfg *config.Config, version string, stderr io.Writer) (*telemetry.Telemetry, error) {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = version
	tc.Logging.Level = cfg.Telemetry.LogLevel
	tc.Logging.Format = cfg.Telemetry.LogFormat
	tc.Logging.Writer = stderr
	tc.Logging.NoColor = cfg.Session.NoColor
	tc.Tracing.Writer = stderr
	tc.Tracing.Enabled = cfg.Telemetry.Tracing.Enabled
	tc.Tracing.Exporter = cfg.Telemetry.Tracing.Exporter
	tc.Tracing.Endpoint = cfg.Telemetry.Tracing.Endpoint
	tc.Tracing.SamplingRate = cfg.Telemetry.Tracing.SamplingRate
	tc.Metrics.Enabled = cfg.Telemetry.Metrics.Enabled
	tc.Metrics.ListenAddress = cfg.Telemetry.Metrics.ListenAddress
	tc.Metrics.Textfile = cfg.Telemetry.Metrics.Textfile
	return telemetry.NewTelemetry(tc)
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		tel.Logger.WithError(err).Warn("Telemetry shutdown failed")
	}
}

// openJournal opens and migrates the journal database at path.
func openJournal(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	telemetry.FromContext(ctx).NewComponentLogger("journal").Debugf("Opening journal %s", path)

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
