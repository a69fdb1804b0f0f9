package vectorstore

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChromem(t *testing.T) *ChromemClient {
	t.Helper()
	c, err := NewChromemClient(ChromemConfig{}, stubEmbedder{}, nil)
	require.NoError(t, err)
	return c
}

func seedFruit(t *testing.T, col Collection) {
	t.Helper()
	err := col.Add(context.Background(), AddRequest{
		IDs:       []string{"a", "b", "c"},
		Documents: []string{"apple", "banana", "cherry"},
		Metadatas: []map[string]any{
			{"color": "red", "n": 1.0},
			{"color": "yellow", "n": 2.0},
			{"color": "red", "n": 3.0},
		},
	})
	require.NoError(t, err)
}

func TestNewChromemClient_RequiresEmbedder(t *testing.T) {
	_, err := NewChromemClient(ChromemConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestChromemClient_Collections(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	names, err := c.ListCollections(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.NotNil(t, names)

	col, err := c.CreateCollection(ctx, "notes", map[string]any{"owner": "me"})
	require.NoError(t, err)
	assert.Equal(t, "notes", col.Name())
	assert.Equal(t, map[string]any{"owner": "me"}, col.Metadata())

	_, err = c.CreateCollection(ctx, "notes", nil)
	assert.ErrorIs(t, err, ErrCollectionExists)

	got, err := c.GetCollection(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "me", got.Metadata()["owner"])

	same, err := c.GetOrCreateCollection(ctx, "notes", map[string]any{"owner": "other"})
	require.NoError(t, err)
	assert.Equal(t, "me", same.Metadata()["owner"])

	_, err = c.CreateCollection(ctx, "alpha", nil)
	require.NoError(t, err)
	_, err = c.CreateCollection(ctx, "beta", nil)
	require.NoError(t, err)

	names, err = c.ListCollections(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "notes"}, names)

	names, err = c.ListCollections(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, names)

	require.NoError(t, c.DeleteCollection(ctx, "notes"))
	_, err = c.GetCollection(ctx, "notes")
	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.ErrorIs(t, c.DeleteCollection(ctx, "notes"), ErrCollectionNotFound)

	// recreated collection starts without the old metadata
	again, err := c.CreateCollection(ctx, "notes", nil)
	require.NoError(t, err)
	assert.Empty(t, again.Metadata())
}

func TestChromemClient_InvalidNames(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)

	for _, name := range []string{"", "T", "ab", "-abc", "abc-", "a..b", "192.168.0.1", "has space", metaCollection} {
		_, err := c.CreateCollection(ctx, name, nil)
		assert.ErrorIs(t, err, ErrInvalidCollectionName, name)
	}
	_, err := c.GetCollection(ctx, metaCollection)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemCollection_AddGet(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	col, err := c.CreateCollection(ctx, "fruit", nil)
	require.NoError(t, err)
	seedFruit(t, col)

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	t.Run("insertion order", func(t *testing.T) {
		res, err := col.Get(ctx, GetRequest{})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, res.IDs)
		require.Len(t, res.Documents, 3)
		assert.Equal(t, "banana", *res.Documents[1])
		assert.Equal(t, "yellow", res.Metadatas[1]["color"])
		assert.Nil(t, res.Embeddings)
	})

	t.Run("ids keep request order", func(t *testing.T) {
		res, err := col.Get(ctx, GetRequest{IDs: []string{"c", "missing", "a"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, res.IDs)
	})

	t.Run("where and pagination", func(t *testing.T) {
		res, err := col.Get(ctx, GetRequest{Where: map[string]any{"color": "red"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, res.IDs)

		res, err = col.Get(ctx, GetRequest{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, res.IDs)
	})

	t.Run("where document", func(t *testing.T) {
		res, err := col.Get(ctx, GetRequest{WhereDocument: map[string]any{"$contains": "an"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, res.IDs)
	})

	t.Run("include embeddings only", func(t *testing.T) {
		res, err := col.Get(ctx, GetRequest{IDs: []string{"a"}, Include: []Include{IncludeEmbeddings}})
		require.NoError(t, err)
		assert.Nil(t, res.Documents)
		assert.Nil(t, res.Metadatas)
		require.Len(t, res.Embeddings, 1)
		assert.InDeltaSlice(t, []float32{1, 0, 0}, res.Embeddings[0], 1e-6)
	})

	t.Run("distances are rejected", func(t *testing.T) {
		_, err := col.Get(ctx, GetRequest{Include: []Include{IncludeDistances}})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("empty result has empty lists", func(t *testing.T) {
		res, err := col.Get(ctx, GetRequest{Where: map[string]any{"color": "green"}})
		require.NoError(t, err)
		assert.NotNil(t, res.IDs)
		assert.Empty(t, res.IDs)
		assert.NotNil(t, res.Documents)
	})

	t.Run("peek", func(t *testing.T) {
		res, err := col.Peek(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, res.IDs)
	})
}

func TestChromemCollection_AddValidation(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	col, err := c.CreateCollection(ctx, "fruit", nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  AddRequest
	}{
		{name: "no ids", req: AddRequest{}},
		{name: "misaligned documents", req: AddRequest{IDs: []string{"a", "b"}, Documents: []string{"x"}}},
		{name: "duplicate ids", req: AddRequest{IDs: []string{"a", "a"}, Documents: []string{"x", "y"}}},
		{name: "nothing to embed", req: AddRequest{IDs: []string{"a"}}},
		{name: "wrong dimension", req: AddRequest{IDs: []string{"a"}, Embeddings: [][]float32{{1, 0}}}},
		{name: "reserved key", req: AddRequest{IDs: []string{"a"}, Documents: []string{"x"}, Metadatas: []map[string]any{{"chroma:seq": "1"}}}},
		{name: "nested metadata", req: AddRequest{IDs: []string{"a"}, Documents: []string{"x"}, Metadatas: []map[string]any{{"k": []any{1}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, col.Add(ctx, tt.req), ErrInvalidInput)
		})
	}

	err = col.Add(ctx, AddRequest{IDs: []string{"a"}, Documents: []string{"x"}})
	require.NoError(t, err)

	failing, err := NewChromemClient(ChromemConfig{}, stubEmbedder{fail: true}, nil)
	require.NoError(t, err)
	fcol, err := failing.CreateCollection(ctx, "fruit", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, fcol.Add(ctx, AddRequest{IDs: []string{"a"}, Documents: []string{"x"}}), ErrEmbeddingFailed)
}

func TestChromemCollection_AddSkipsExisting(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	col, err := c.CreateCollection(ctx, "fruit", nil)
	require.NoError(t, err)
	seedFruit(t, col)

	err = col.Add(ctx, AddRequest{IDs: []string{"a", "d"}, Documents: []string{"replaced", "date"}})
	require.NoError(t, err)

	res, err := col.Get(ctx, GetRequest{IDs: []string{"a", "d"}})
	require.NoError(t, err)
	assert.Equal(t, "apple", *res.Documents[0])
	assert.Equal(t, "date", *res.Documents[1])
}

func TestChromemCollection_Update(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	col, err := c.CreateCollection(ctx, "fruit", nil)
	require.NoError(t, err)
	seedFruit(t, col)

	err = col.Update(ctx, UpdateRequest{
		IDs:       []string{"a", "missing"},
		Documents: []string{"cherry", "x"},
		Metadatas: []map[string]any{{"ripe": true}, nil},
	})
	require.NoError(t, err)

	res, err := col.Get(ctx, GetRequest{IDs: []string{"a"}, Include: []Include{IncludeDocuments, IncludeMetadatas, IncludeEmbeddings}})
	require.NoError(t, err)
	require.Len(t, res.IDs, 1)
	assert.Equal(t, "cherry", *res.Documents[0])
	assert.Equal(t, map[string]any{"color": "red", "n": 1.0, "ripe": true}, res.Metadatas[0])
	assert.InDeltaSlice(t, []float32{0, 0, 1}, res.Embeddings[0], 1e-6)

	n, err := col.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.ErrorIs(t, col.Update(ctx, UpdateRequest{IDs: []string{"a"}}), ErrInvalidInput)
}

func TestChromemCollection_Delete(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	col, err := c.CreateCollection(ctx, "fruit", nil)
	require.NoError(t, err)
	seedFruit(t, col)

	assert.ErrorIs(t, col.Delete(ctx, DeleteRequest{}), ErrInvalidInput)

	require.NoError(t, col.Delete(ctx, DeleteRequest{Where: map[string]any{"n": map[string]any{"$gte": 3.0}}}))
	res, err := col.Get(ctx, GetRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.IDs)

	require.NoError(t, col.Delete(ctx, DeleteRequest{IDs: []string{"a", "missing"}}))
	res, err = col.Get(ctx, GetRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.IDs)
}

func TestChromemCollection_Query(t *testing.T) {
	ctx := context.Background()
	c := newTestChromem(t)
	col, err := c.CreateCollection(ctx, "fruit", nil)
	require.NoError(t, err)
	seedFruit(t, col)

	t.Run("nearest first", func(t *testing.T) {
		res, err := col.Query(ctx, QueryRequest{QueryTexts: []string{"banana", "cherry"}, NResults: 2})
		require.NoError(t, err)
		require.Len(t, res.IDs, 2)
		assert.Equal(t, "b", res.IDs[0][0])
		assert.Equal(t, "c", res.IDs[1][0])
		assert.InDelta(t, 0, res.Distances[0][0], 1e-6)
		assert.InDelta(t, 1, res.Distances[0][1], 1e-6)
		assert.Len(t, res.Documents[0], 2)
		assert.Nil(t, res.Embeddings)
	})

	t.Run("n_results beyond count", func(t *testing.T) {
		res, err := col.Query(ctx, QueryRequest{QueryEmbeddings: [][]float32{{1, 0, 0}}, NResults: 10})
		require.NoError(t, err)
		assert.Len(t, res.IDs[0], 3)
		assert.Equal(t, "a", res.IDs[0][0])
	})

	t.Run("filtered", func(t *testing.T) {
		res, err := col.Query(ctx, QueryRequest{
			QueryTexts: []string{"apple"},
			NResults:   5,
			Where:      map[string]any{"color": "red"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, res.IDs[0])
	})

	t.Run("validation", func(t *testing.T) {
		_, err := col.Query(ctx, QueryRequest{NResults: 1})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = col.Query(ctx, QueryRequest{QueryTexts: []string{"x"}, NResults: 0})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = col.Query(ctx, QueryRequest{QueryTexts: []string{"x"}, QueryEmbeddings: [][]float32{{1, 0, 0}}, NResults: 1})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = col.Query(ctx, QueryRequest{QueryEmbeddings: [][]float32{{1}}, NResults: 1})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("empty collection", func(t *testing.T) {
		empty, err := c.CreateCollection(ctx, "empty", nil)
		require.NoError(t, err)
		res, err := empty.Query(ctx, QueryRequest{QueryTexts: []string{"apple"}, NResults: 3})
		require.NoError(t, err)
		require.Len(t, res.IDs, 1)
		assert.Empty(t, res.IDs[0])
	})
}

func TestChromemClient_Persistent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	c, err := NewChromemClient(ChromemConfig{Path: dir}, stubEmbedder{}, nil)
	require.NoError(t, err)
	col, err := c.CreateCollection(ctx, "fruit", map[string]any{"kind": "produce"})
	require.NoError(t, err)
	seedFruit(t, col)
	require.NoError(t, c.Close())

	reopened, err := NewChromemClient(ChromemConfig{Path: dir}, stubEmbedder{}, nil)
	require.NoError(t, err)
	names, err := reopened.ListCollections(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"fruit"}, names)

	col, err = reopened.GetCollection(ctx, "fruit")
	require.NoError(t, err)
	assert.Equal(t, "produce", col.Metadata()["kind"])
	res, err := col.Get(ctx, GetRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, res.IDs)
}

func TestChromemCollection_EmbeddingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	col, err := newTestChromem(t).CreateCollection(ctx, "vectors", nil)
	require.NoError(t, err)

	require.NoError(t, col.Add(ctx, AddRequest{
		IDs:        []string{"a", "b"},
		Embeddings: [][]float32{{3, 4, 0}, {0, 0, 2}},
	}))

	all := []Include{IncludeEmbeddings}
	res, err := col.Get(ctx, GetRequest{Include: all})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 4, 0}, {0, 0, 2}}, res.Embeddings)

	q, err := col.Query(ctx, QueryRequest{
		QueryEmbeddings: [][]float32{{0.6, 0.8, 0}},
		NResults:        1,
		Include:         []Include{IncludeEmbeddings, IncludeDistances},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, q.IDs)
	assert.Equal(t, []float32{3, 4, 0}, q.Embeddings[0][0])
	assert.InDelta(t, 0, q.Distances[0][0], 1e-6)

	require.NoError(t, col.Update(ctx, UpdateRequest{IDs: []string{"a"}, Embeddings: [][]float32{{0, 5, 0}}}))
	res, err = col.Get(ctx, GetRequest{IDs: []string{"a"}, Include: all})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 5, 0}, res.Embeddings[0])
}

func TestChromemCollection_ZeroEmbeddings(t *testing.T) {
	ctx := context.Background()
	col, err := newTestChromem(t).CreateCollection(ctx, "zeros", nil)
	require.NoError(t, err)

	err = col.Add(ctx, AddRequest{IDs: []string{"a"}, Embeddings: [][]float32{{0, 0, 0}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	seedFruit(t, col)
	err = col.Update(ctx, UpdateRequest{IDs: []string{"a"}, Embeddings: [][]float32{{0, 0, 0}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = col.Query(ctx, QueryRequest{QueryEmbeddings: [][]float32{{0, 0, 0}}, NResults: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := col.Query(ctx, QueryRequest{QueryTexts: []string{"apple"}, NResults: 3})
	require.NoError(t, err)
	assert.Equal(t, "a", res.IDs[0][0])
}

func TestNearest_NaNDistance(t *testing.T) {
	candidates := []record{
		{ID: "broken", Embedding: []float32{float32(math.NaN()), 0, 0}},
		{ID: "close", Embedding: []float32{1, 0, 0}},
		{ID: "far", Embedding: []float32{0, 1, 0}},
	}
	hits := nearest(candidates, []float32{1, 0, 0}, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, "close", hits[0].ID)
	for _, h := range hits {
		assert.False(t, math.IsNaN(float64(h.distance)), h.ID)
	}
	assert.Equal(t, float32(1), hits[2].distance)
}
