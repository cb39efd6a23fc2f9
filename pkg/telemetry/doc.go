// Package telemetry wires logging, tracing and metrics for kitinfo.
//
// Logging uses zerolog and goes to stderr by default so it never mixes with
// the interactive prompts on stdout. Tracing uses OpenTelemetry with a stdout
// or OTLP gRPC exporter; when enabled the provider is installed globally and
// the engine and API client spans nest under the command span. Metrics use a
// private Prometheus registry.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.Metrics.StartServer(); err != nil {
//	    return err
//	}
//
//	d := engine.New(client, console,
//	    engine.WithLogger(tel.Logger.Zerolog()),
//	    engine.WithPublisher(tel.Publishers(journal)),
//	)
//
// # Metrics
//
// Metrics implements engine.EventPublisher and typekit.CallObserver:
//
//	kitinfo_sessions_total{status}
//	kitinfo_session_duration_seconds
//	kitinfo_operations_executed_total{operation,status}
//	kitinfo_operation_duration_seconds{operation}
//	kitinfo_queue_depth
//	kitinfo_gateway_calls_total{call}
//	kitinfo_gateway_call_duration_seconds{call}
//	kitinfo_gateway_errors_total{call,class}
//
// A short-lived CLI is rarely scraped, so Shutdown also writes the registry
// to MetricsConfig.Textfile when one is set.
package telemetry
