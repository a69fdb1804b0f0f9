package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/chroma-mcp/internal/vectorstore"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"not found", fmt.Errorf("%w: docs", vectorstore.ErrCollectionNotFound), KindNotFound},
		{"exists", fmt.Errorf("%w: docs", vectorstore.ErrCollectionExists), KindConflict},
		{"invalid input", vectorstore.ErrInvalidInput, KindInvalidArgument},
		{"invalid name", vectorstore.ErrInvalidCollectionName, KindInvalidArgument},
		{"connection", vectorstore.ErrConnectionFailed, KindUpstream},
		{"upstream", vectorstore.ErrUpstream, KindUpstream},
		{"embedding", vectorstore.ErrEmbeddingFailed, KindUpstream},
		{"config", vectorstore.ErrInvalidConfig, KindUpstream},
		{"deadline", context.DeadlineExceeded, KindUpstream},
		{"tool error", invalidArgument("bad"), KindInvalidArgument},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	cause := fmt.Errorf("%w: docs", vectorstore.ErrCollectionNotFound)
	te := storeError(cause, "Failed to get collection '%s'", "docs")

	assert.Equal(t, KindNotFound, te.Kind)
	assert.Equal(t, "Failed to get collection 'docs': collection not found: docs", te.Message)
	assert.ErrorIs(t, te, vectorstore.ErrCollectionNotFound)
}

func TestToToolError(t *testing.T) {
	t.Run("keeps kind and message", func(t *testing.T) {
		orig := invalidArgument("The 'ids' list cannot be empty.")
		te := toToolError("chroma_update_documents", orig)
		assert.Equal(t, "Error executing tool chroma_update_documents: The 'ids' list cannot be empty.", te.Error())
		assert.Equal(t, KindInvalidArgument, te.Kind)
		assert.Empty(t, orig.Tool)
	})

	t.Run("wraps plain errors", func(t *testing.T) {
		te := toToolError("chroma_list_collections", errors.New("boom"))
		assert.Equal(t, KindInternal, te.Kind)
		assert.Equal(t, "boom", te.Message)
	})
}

func TestValidationRules(t *testing.T) {
	assert.NoError(t, validateNonEmptyIDs([]string{"a"}))
	assert.EqualError(t, validateNonEmptyIDs(nil), "Error executing tool : The 'ids' list cannot be empty.")

	assert.NoError(t, validateUpdateFields(nil, nil, []string{}))
	assert.Error(t, validateUpdateFields(nil, nil, nil))

	assert.NoError(t, validateDeleteSelector([]string{"a"}, nil, nil))
	assert.NoError(t, validateDeleteSelector(nil, map[string]any{"k": "v"}, map[string]any{"$contains": "x"}))

	ids := []string{"a", "b"}
	assert.NoError(t, validateDocumentSet(ids, nil, nil, nil))
	assert.NoError(t, validateDocumentSet(ids, []string{"x", "y"}, []map[string]any{{}, {}}, [][]float32{{1}, {2}}))

	err := validateDocumentSet(ids, nil, nil, [][]float32{{1}})
	var te *ToolError
	if assert.ErrorAs(t, err, &te) {
		assert.Equal(t, "Length of 'embeddings' (1) must match length of 'ids' (2)", te.Message)
	}
}
