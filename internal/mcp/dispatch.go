package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chroma-mcp/internal/logging"
)

// CallTool validates args against the tool's schema, applies defaults and
// runs the handler. Every failure, including an unknown tool or a recovered
// panic, is returned as a *ToolError. Calls are never retried.
func (r *Registry) CallTool(ctx context.Context, name string, args map[string]any) ([]*mcp.TextContent, error) {
	ctx = logging.WithTool(ctx, name)
	ctx, span := r.tracer.Start(ctx, "tool."+name, trace.WithAttributes(attribute.String("mcp.tool", name)))
	defer span.End()

	start := time.Now()
	r.metrics.IncrementActive(ctx, name)

	text, err := r.dispatch(ctx, name, args)

	r.metrics.DecrementActive(ctx, name)
	r.metrics.RecordInvocation(ctx, name, time.Since(start), err)

	if err != nil {
		te := toToolError(name, err)
		span.RecordError(te)
		span.SetAttributes(attribute.String("mcp.error.kind", string(te.Kind)))
		span.SetStatus(codes.Error, te.Message)
		r.logger.Warn(ctx, "tool call failed",
			zap.String("kind", string(te.Kind)),
			zap.String("error", te.Message),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, te
	}

	span.SetStatus(codes.Ok, "")
	r.logger.Debug(ctx, "tool call succeeded", zap.Duration("duration", time.Since(start)))
	return []*mcp.TextContent{{Text: text}}, nil
}

func (r *Registry) dispatch(ctx context.Context, name string, args map[string]any) (text string, err error) {
	tool, ok := r.Get(name)
	if !ok {
		return "", &ToolError{Kind: KindNotFound, Message: "Unknown tool: " + name}
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error(ctx, "tool handler panicked",
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			err = &ToolError{Kind: KindInternal, Message: fmt.Sprintf("internal error: %v", p)}
		}
	}()

	validated, err := tool.prepare(args)
	if err != nil {
		return "", err
	}
	return tool.handle(ctx, validated)
}

// prepare normalises args to plain JSON values, drops top-level nulls,
// applies schema defaults and validates the result.
func (t *Tool) prepare(args map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, invalidArgument("Invalid arguments: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, invalidArgument("Invalid arguments: %v", err)
	}
	out := make(map[string]any, len(decoded))
	for k, v := range decoded {
		if v != nil {
			out[k] = v
		}
	}
	if err := t.resolved.ApplyDefaults(&out); err != nil {
		return nil, invalidArgument("Invalid arguments: %v", err)
	}
	if err := t.resolved.Validate(out); err != nil {
		return nil, invalidArgument("Invalid arguments: %v", err)
	}
	return out, nil
}
