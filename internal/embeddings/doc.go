// Package embeddings turns document and query text into vectors for the store adapters.
//
// Three providers are available:
//   - default: a deterministic feature-hashing embedder, no model download
//   - fastembed: local ONNX models via fastembed-go (cgo builds only)
//   - tei: a HuggingFace text-embeddings-inference server over HTTP
//
// NewProvider selects one from config and wraps it with generation metrics.
package embeddings
