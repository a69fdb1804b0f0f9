package vectorstore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperations counts store calls.
	// Labels: backend, operation, result (success, not_found, conflict, invalid, error)
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chroma_mcp",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations by backend, operation and result",
		},
		[]string{"backend", "operation", "result"},
	)

	// StoreOperationDuration tracks store call latency.
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chroma_mcp",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)
)

// resultLabel buckets an error for the result label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCollectionNotFound):
		return "not_found"
	case errors.Is(err, ErrCollectionExists):
		return "conflict"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidCollectionName):
		return "invalid"
	default:
		return "error"
	}
}
