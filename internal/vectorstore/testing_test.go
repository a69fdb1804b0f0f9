package vectorstore

import (
	"context"
	"errors"
)

// stubEmbedder maps known words to fixed unit vectors so ranking is predictable.
type stubEmbedder struct {
	fail bool
}

var stubVectors = map[string][]float32{
	"apple":  {1, 0, 0},
	"banana": {0, 1, 0},
	"cherry": {0, 0, 1},
}

func (s stubEmbedder) vector(text string) []float32 {
	if v, ok := stubVectors[text]; ok {
		return append([]float32(nil), v...)
	}
	return []float32{0.6, 0.8, 0}
}

func (s stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if s.fail {
		return nil, errors.New("embedder down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

func (s stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if s.fail {
		return nil, errors.New("embedder down")
	}
	return s.vector(text), nil
}

func (stubEmbedder) Dimension() int { return 3 }
