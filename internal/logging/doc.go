// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Console output on stderr (stdout carries the MCP stdio stream) plus optional OTEL
//   - Automatic context field injection (trace_id, request.id, tool)
//   - Secret redaction for api keys and chroma tokens
//   - Sampling below Error
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithTool(ctx, "chroma_add_documents")
//	logger.Info(ctx, "tool call succeeded", zap.Duration("duration", d))
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
package logging
