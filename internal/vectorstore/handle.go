package vectorstore

import (
	"context"
	"sync"
)

// Factory builds the store client on first use.
type Factory func(ctx context.Context) (Client, error)

// Handle lazily builds one Client and hands the same instance to every caller.
// A construction error is cached and returned to every caller until Reset.
type Handle struct {
	factory Factory

	mu     sync.Mutex
	built  bool
	client Client
	err    error
}

// NewHandle returns a handle that calls factory at most once per Reset cycle.
func NewHandle(factory Factory) *Handle {
	return &Handle{factory: factory}
}

// Get returns the shared client, building it on the first call.
func (h *Handle) Get(ctx context.Context) (Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.built {
		h.client, h.err = h.factory(ctx)
		h.built = true
	}
	return h.client, h.err
}

// Reset closes the cached client, if any, and forgets it and any cached error.
func (h *Handle) Reset() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.client != nil {
		err = h.client.Close()
	}
	h.client, h.err, h.built = nil, nil, false
	return err
}
