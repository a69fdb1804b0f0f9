package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/chroma-mcp/internal/vectorstore"
)

// Kind classifies a tool failure.
type Kind string

const (
	KindNotFound        Kind = "NotFound"
	KindInvalidArgument Kind = "InvalidArgument"
	KindConflict        Kind = "Conflict"
	KindUpstream        Kind = "Upstream"
	KindInternal        Kind = "Internal"
)

// ToolError is the one error shape returned across the dispatch boundary.
type ToolError struct {
	// Tool is the name of the tool that failed.
	Tool    string
	Kind    Kind
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("Error executing tool %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// invalidArgument builds a validation failure. The dispatcher fills in Tool.
func invalidArgument(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// storeError wraps a store failure with a contextual prefix such as
// "Failed to get collection 'x'". The kind comes from the cause.
func storeError(cause error, format string, args ...any) *ToolError {
	return &ToolError{
		Kind:    classify(cause),
		Message: fmt.Sprintf(format, args...) + ": " + cause.Error(),
		Err:     cause,
	}
}

// classify maps store sentinels to a Kind.
func classify(err error) Kind {
	var te *ToolError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &te):
		return te.Kind
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		return KindNotFound
	case errors.Is(err, vectorstore.ErrCollectionExists):
		return KindConflict
	case errors.Is(err, vectorstore.ErrInvalidInput), errors.Is(err, vectorstore.ErrInvalidCollectionName):
		return KindInvalidArgument
	case errors.Is(err, vectorstore.ErrConnectionFailed),
		errors.Is(err, vectorstore.ErrUpstream),
		errors.Is(err, vectorstore.ErrEmbeddingFailed),
		errors.Is(err, vectorstore.ErrInvalidConfig),
		errors.Is(err, context.DeadlineExceeded):
		return KindUpstream
	default:
		return KindInternal
	}
}

// toToolError converts any handler error into a *ToolError for tool.
func toToolError(tool string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		out := *te
		out.Tool = tool
		return &out
	}
	return &ToolError{Tool: tool, Kind: classify(err), Message: err.Error(), Err: err}
}
