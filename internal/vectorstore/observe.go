package vectorstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/chroma-mcp/internal/vectorstore")

// Instrument wraps a client so every call through it, and through the
// collections it returns, gets a span and Prometheus metrics.
func Instrument(c Client, backend string) Client {
	if c == nil {
		return nil
	}
	return &observedClient{next: c, backend: backend}
}

type observedClient struct {
	next    Client
	backend string
}

// observe runs fn inside a span named store.<op> and records metrics.
func observe(ctx context.Context, backend, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "store."+op, trace.WithAttributes(
		append([]attribute.KeyValue{attribute.String("store.backend", backend)}, attrs...)...,
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	StoreOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	StoreOperations.WithLabelValues(backend, op, resultLabel(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func collectionAttr(name string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("store.collection", name)}
}

func (o *observedClient) ListCollections(ctx context.Context, limit, offset int) (names []string, err error) {
	err = observe(ctx, o.backend, "list_collections", nil, func(ctx context.Context) error {
		names, err = o.next.ListCollections(ctx, limit, offset)
		return err
	})
	return names, err
}

func (o *observedClient) CreateCollection(ctx context.Context, name string, metadata map[string]any) (col Collection, err error) {
	err = observe(ctx, o.backend, "create_collection", collectionAttr(name), func(ctx context.Context) error {
		col, err = o.next.CreateCollection(ctx, name, metadata)
		return err
	})
	return o.wrap(col), err
}

func (o *observedClient) GetCollection(ctx context.Context, name string) (col Collection, err error) {
	err = observe(ctx, o.backend, "get_collection", collectionAttr(name), func(ctx context.Context) error {
		col, err = o.next.GetCollection(ctx, name)
		return err
	})
	return o.wrap(col), err
}

func (o *observedClient) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (col Collection, err error) {
	err = observe(ctx, o.backend, "get_or_create_collection", collectionAttr(name), func(ctx context.Context) error {
		col, err = o.next.GetOrCreateCollection(ctx, name, metadata)
		return err
	})
	return o.wrap(col), err
}

func (o *observedClient) DeleteCollection(ctx context.Context, name string) error {
	return observe(ctx, o.backend, "delete_collection", collectionAttr(name), func(ctx context.Context) error {
		return o.next.DeleteCollection(ctx, name)
	})
}

func (o *observedClient) Heartbeat(ctx context.Context) error {
	return observe(ctx, o.backend, "heartbeat", nil, o.next.Heartbeat)
}

func (o *observedClient) Close() error { return o.next.Close() }

func (o *observedClient) wrap(c Collection) Collection {
	if c == nil {
		return nil
	}
	return &observedCollection{next: c, backend: o.backend}
}

type observedCollection struct {
	next    Collection
	backend string
}

func (o *observedCollection) Name() string             { return o.next.Name() }
func (o *observedCollection) Metadata() map[string]any { return o.next.Metadata() }

func (o *observedCollection) attrs(extra ...attribute.KeyValue) []attribute.KeyValue {
	return append(collectionAttr(o.next.Name()), extra...)
}

func (o *observedCollection) Add(ctx context.Context, req AddRequest) error {
	return observe(ctx, o.backend, "add", o.attrs(attribute.Int("store.records", len(req.IDs))), func(ctx context.Context) error {
		return o.next.Add(ctx, req)
	})
}

func (o *observedCollection) Get(ctx context.Context, req GetRequest) (res *GetResult, err error) {
	err = observe(ctx, o.backend, "get", o.attrs(), func(ctx context.Context) error {
		res, err = o.next.Get(ctx, req)
		return err
	})
	return res, err
}

func (o *observedCollection) Peek(ctx context.Context, limit int) (res *GetResult, err error) {
	err = observe(ctx, o.backend, "peek", o.attrs(attribute.Int("store.limit", limit)), func(ctx context.Context) error {
		res, err = o.next.Peek(ctx, limit)
		return err
	})
	return res, err
}

func (o *observedCollection) Update(ctx context.Context, req UpdateRequest) error {
	return observe(ctx, o.backend, "update", o.attrs(attribute.Int("store.records", len(req.IDs))), func(ctx context.Context) error {
		return o.next.Update(ctx, req)
	})
}

func (o *observedCollection) Delete(ctx context.Context, req DeleteRequest) error {
	return observe(ctx, o.backend, "delete", o.attrs(), func(ctx context.Context) error {
		return o.next.Delete(ctx, req)
	})
}

func (o *observedCollection) Count(ctx context.Context) (n int, err error) {
	err = observe(ctx, o.backend, "count", o.attrs(), func(ctx context.Context) error {
		n, err = o.next.Count(ctx)
		return err
	})
	return n, err
}

func (o *observedCollection) Query(ctx context.Context, req QueryRequest) (res *QueryResult, err error) {
	err = observe(ctx, o.backend, "query", o.attrs(attribute.Int("store.n_results", req.NResults)), func(ctx context.Context) error {
		res, err = o.next.Query(ctx, req)
		return err
	})
	return res, err
}
