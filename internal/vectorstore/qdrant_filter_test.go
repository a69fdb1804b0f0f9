package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQdrantFilter_Empty(t *testing.T) {
	f, err := QdrantFilter(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestQdrantFilter_Where(t *testing.T) {
	t.Run("bare value is keyword match", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"color": "red"}, nil)
		require.NoError(t, err)
		require.Len(t, f.GetMust(), 1)
		field := f.GetMust()[0].GetField()
		assert.Equal(t, "metadata.color", field.GetKey())
		assert.Equal(t, "red", field.GetMatch().GetKeyword())
	})

	t.Run("integer and bool", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"n": 3.0, "ok": true}, nil)
		require.NoError(t, err)
		require.Len(t, f.GetMust(), 2)
		// keys are translated in sorted order
		assert.Equal(t, int64(3), f.GetMust()[0].GetField().GetMatch().GetInteger())
		assert.True(t, f.GetMust()[1].GetField().GetMatch().GetBoolean())
	})

	t.Run("fractional equality is a point range", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"score": map[string]any{"$eq": 0.5}}, nil)
		require.NoError(t, err)
		r := f.GetMust()[0].GetField().GetRange()
		require.NotNil(t, r)
		assert.Equal(t, 0.5, r.GetGte())
		assert.Equal(t, 0.5, r.GetLte())
	})

	t.Run("ne is must not", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"color": map[string]any{"$ne": "red"}}, nil)
		require.NoError(t, err)
		assert.Empty(t, f.GetMust())
		require.Len(t, f.GetMustNot(), 1)
		assert.Equal(t, "red", f.GetMustNot()[0].GetField().GetMatch().GetKeyword())
	})

	t.Run("range operators", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"n": map[string]any{"$gt": 2.0}}, nil)
		require.NoError(t, err)
		r := f.GetMust()[0].GetField().GetRange()
		require.NotNil(t, r.Gt)
		assert.Equal(t, 2.0, *r.Gt)
		assert.Nil(t, r.Lt)
	})

	t.Run("in strings uses keyword set", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"tag": map[string]any{"$in": []any{"a", "b"}}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, f.GetMust()[0].GetField().GetMatch().GetKeywords().GetStrings())
	})

	t.Run("in integers uses integer set", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"n": map[string]any{"$in": []any{1.0, 2.0}}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, f.GetMust()[0].GetField().GetMatch().GetIntegers().GetIntegers())
	})

	t.Run("mixed in falls back to should", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"v": map[string]any{"$in": []any{"a", 1.0}}}, nil)
		require.NoError(t, err)
		assert.Len(t, f.GetMust()[0].GetFilter().GetShould(), 2)
	})

	t.Run("nin is must not", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"tag": map[string]any{"$nin": []any{"a"}}}, nil)
		require.NoError(t, err)
		require.Len(t, f.GetMustNot(), 1)
		assert.Equal(t, []string{"a"}, f.GetMustNot()[0].GetField().GetMatch().GetKeywords().GetStrings())
	})

	t.Run("or becomes nested should", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"$or": []any{
			map[string]any{"color": "red"},
			map[string]any{"color": "blue"},
		}}, nil)
		require.NoError(t, err)
		require.Len(t, f.GetMust(), 1)
		group := f.GetMust()[0].GetFilter()
		require.NotNil(t, group)
		require.Len(t, group.GetShould(), 2)
		assert.Empty(t, group.GetMust())
		inner := group.GetShould()[1].GetFilter()
		assert.Equal(t, "blue", inner.GetMust()[0].GetField().GetMatch().GetKeyword())
	})

	t.Run("and becomes nested must", func(t *testing.T) {
		f, err := QdrantFilter(map[string]any{"$and": []any{
			map[string]any{"color": "red"},
			map[string]any{"n": map[string]any{"$lt": 5.0}},
		}}, nil)
		require.NoError(t, err)
		group := f.GetMust()[0].GetFilter()
		assert.Len(t, group.GetMust(), 2)
	})

	t.Run("invalid clause", func(t *testing.T) {
		_, err := QdrantFilter(map[string]any{"n": map[string]any{"$regex": "x"}}, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestQdrantFilter_WhereDocument(t *testing.T) {
	f, err := QdrantFilter(nil, map[string]any{"$contains": "fox"})
	require.NoError(t, err)
	field := f.GetMust()[0].GetField()
	assert.Equal(t, payloadDocument, field.GetKey())
	assert.Equal(t, "fox", field.GetMatch().GetText())

	f, err = QdrantFilter(nil, map[string]any{"$not_contains": "dog"})
	require.NoError(t, err)
	assert.Equal(t, "dog", f.GetMustNot()[0].GetField().GetMatch().GetText())

	f, err = QdrantFilter(map[string]any{"color": "red"}, map[string]any{"$contains": "fox"})
	require.NoError(t, err)
	assert.Len(t, f.GetMust(), 2)
}
