// Package telemetry wires OpenTelemetry tracing and metrics for chroma-mcp.
//
// Export is off by default. When enabled, spans and metrics are pushed over
// OTLP (gRPC or HTTP) to the configured collector:
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Tests use NewTestTelemetry, which keeps spans and metrics in memory.
package telemetry
