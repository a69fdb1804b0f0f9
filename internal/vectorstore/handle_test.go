package vectorstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCounter struct {
	Client
	closed atomic.Int32
}

func (c *closeCounter) Close() error {
	c.closed.Add(1)
	return nil
}

func TestHandle_BuildsOnce(t *testing.T) {
	var calls atomic.Int32
	inner := &closeCounter{Client: newTestChromem(t)}
	h := NewHandle(func(context.Context) (Client, error) {
		calls.Add(1)
		return inner, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := h.Get(context.Background())
			assert.NoError(t, err)
			assert.Same(t, inner, c)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, h.Reset())
	assert.Equal(t, int32(1), inner.closed.Load())

	_, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHandle_CachesError(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("unreachable")
	h := NewHandle(func(context.Context) (Client, error) {
		calls.Add(1)
		return nil, boom
	})

	for i := 0; i < 3; i++ {
		c, err := h.Get(context.Background())
		assert.Nil(t, c)
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, h.Reset())
	_, _ = h.Get(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}
