package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/chroma-mcp/internal/logging"
)

// Payload keys written on every point.
const (
	payloadID       = "id"
	payloadDocument = "document"
	payloadMetadata = "metadata"
	payloadSeq      = "seq"
	// payloadEmbedding keeps the caller's vector; cosine collections store it normalised.
	payloadEmbedding = "embedding"
)

// pointNamespace derives stable UUIDv5 point ids from string record ids.
var pointNamespace = uuid.MustParse("6f1c7c56-5d7e-4b0e-9a61-2f9d3f0c8a11")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string
	// Port is the gRPC port (6334), not the REST port.
	Port int
	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool
	// APIKey is sent with every request when set.
	APIKey string

	// MaxRetries is the retry budget for transient failures. Default 3.
	MaxRetries int
	// RetryBackoff is the first retry delay, doubled per attempt. Default 1s.
	RetryBackoff time.Duration
	// MaxMessageSize caps gRPC messages in bytes. Default 50MB.
	MaxMessageSize int
	// CircuitBreakerThreshold is consecutive failures before the circuit opens. Default 5.
	CircuitBreakerThreshold int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// grpcError maps a gRPC status onto the store sentinels.
func grpcError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCollectionNotFound) || errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrConnectionFailed) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	var sentinel error
	switch st.Code() {
	case grpccodes.NotFound:
		sentinel = ErrCollectionNotFound
	case grpccodes.AlreadyExists:
		sentinel = ErrCollectionExists
	case grpccodes.InvalidArgument:
		sentinel = ErrInvalidInput
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Unauthenticated, grpccodes.PermissionDenied:
		sentinel = ErrConnectionFailed
	default:
		sentinel = ErrUpstream
	}
	return fmt.Errorf("%w: %s: %s", sentinel, op, st.Message())
}

// QdrantClient implements Client on Qdrant's native gRPC API.
type QdrantClient struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *logging.Logger

	locks sync.Map

	circuitBreaker struct {
		mu       sync.Mutex
		failures int
		lastFail time.Time
	}
}

// NewQdrantClient dials Qdrant and runs a health check.
func NewQdrantClient(ctx context.Context, config QdrantConfig, embedder Embedder, logger *logging.Logger) (*QdrantClient, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn(ctx, "qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		APIKey: config.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	q := &QdrantClient{client: client, embedder: embedder, config: config, logger: logger}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.Heartbeat(hctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return q, nil
}

// retryOperation retries transient failures with exponential backoff and
// trips a circuit breaker after repeated failures.
func (q *QdrantClient) retryOperation(ctx context.Context, op string, fn func() error) error {
	backoff := q.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		if q.isCircuitOpen() {
			return fmt.Errorf("%w: %s: circuit breaker open", ErrConnectionFailed, op)
		}
		err := fn()
		if err == nil {
			q.resetCircuitBreaker()
			return nil
		}
		if !IsTransientError(err) {
			return grpcError(op, err)
		}
		q.recordFailure()
		if attempt >= q.config.MaxRetries {
			return fmt.Errorf("%w: %s failed after %d retries: %v", ErrConnectionFailed, op, q.config.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

func (q *QdrantClient) recordFailure() {
	q.circuitBreaker.mu.Lock()
	defer q.circuitBreaker.mu.Unlock()
	q.circuitBreaker.failures++
	q.circuitBreaker.lastFail = time.Now()
}

func (q *QdrantClient) resetCircuitBreaker() {
	q.circuitBreaker.mu.Lock()
	defer q.circuitBreaker.mu.Unlock()
	q.circuitBreaker.failures = 0
}

func (q *QdrantClient) isCircuitOpen() bool {
	q.circuitBreaker.mu.Lock()
	defer q.circuitBreaker.mu.Unlock()
	if q.circuitBreaker.failures < q.config.CircuitBreakerThreshold {
		return false
	}
	// Half-open after 30s.
	if time.Since(q.circuitBreaker.lastFail) > 30*time.Second {
		q.circuitBreaker.failures = 0
		return false
	}
	return true
}

// Heartbeat runs the Qdrant health check.
func (q *QdrantClient) Heartbeat(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: qdrant health check: %v", ErrConnectionFailed, err)
	}
	return nil
}

// Close closes the gRPC connection.
func (q *QdrantClient) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// ListCollections returns collection names in lexical order.
func (q *QdrantClient) ListCollections(ctx context.Context, limit, offset int) ([]string, error) {
	var names []string
	err := q.retryOperation(ctx, "list_collections", func() error {
		res, err := q.client.ListCollections(ctx)
		names = res
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return paginate(names, offset, limit), nil
}

func (q *QdrantClient) exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := q.retryOperation(ctx, "collection_exists", func() error {
		_, err := q.client.GetCollectionInfo(ctx, name)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// CreateCollection creates a cosine-distance collection sized to the embedder.
// Qdrant has no collection metadata, so metadata is not persisted; only the
// returned Collection reports it.
func (q *QdrantClient) CreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	exists, err := q.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	if len(metadata) > 0 {
		q.logger.Debug(ctx, "qdrant collections do not store metadata", zap.String("collection", name))
	}

	err = q.retryOperation(ctx, "create_collection", func() error {
		return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.embedder.Dimension()),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		return nil, err
	}
	return &qdrantCollection{client: q, name: name, metadata: metadata}, nil
}

// GetCollection resolves an existing collection.
func (q *QdrantClient) GetCollection(ctx context.Context, name string) (Collection, error) {
	exists, err := q.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return &qdrantCollection{client: q, name: name}, nil
}

// GetOrCreateCollection returns the collection, creating it when missing.
func (q *QdrantClient) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	col, err := q.GetCollection(ctx, name)
	if errors.Is(err, ErrCollectionNotFound) {
		col, err = q.CreateCollection(ctx, name, metadata)
		if errors.Is(err, ErrCollectionExists) {
			return q.GetCollection(ctx, name)
		}
	}
	return col, err
}

// DeleteCollection deletes a collection and its points.
func (q *QdrantClient) DeleteCollection(ctx context.Context, name string) error {
	exists, err := q.exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	err = q.retryOperation(ctx, "delete_collection", func() error {
		return q.client.DeleteCollection(ctx, name)
	})
	if err != nil {
		return err
	}
	q.locks.Delete(name)
	return nil
}

type qdrantCollection struct {
	client   *QdrantClient
	name     string
	metadata map[string]any
}

func (c *qdrantCollection) Name() string             { return c.name }
func (c *qdrantCollection) Metadata() map[string]any { return c.metadata }

func (c *qdrantCollection) lock() *sync.Mutex {
	mu, _ := c.client.locks.LoadOrStore(c.name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointNamespace, []byte(id)).String())
}

func (c *qdrantCollection) upsert(ctx context.Context, recs []record) error {
	points := make([]*qdrant.PointStruct, len(recs))
	for i, rec := range recs {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: recordPayload(rec),
		}
	}
	return c.client.retryOperation(ctx, "upsert", func() error {
		_, err := c.client.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: c.name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
}

// retrieve fetches points by record id, in request order, skipping missing ids.
func (c *qdrantCollection) retrieve(ctx context.Context, ids []string) ([]record, error) {
	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = pointID(id)
	}
	var points []*qdrant.RetrievedPoint
	err := c.client.retryOperation(ctx, "get", func() error {
		res, err := c.client.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: c.name,
			Ids:            pids,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		points = res
		return err
	})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]record, len(points))
	for _, p := range points {
		rec := payloadRecord(p.GetPayload(), p.GetVectors().GetVector().GetData())
		byID[rec.ID] = rec
	}
	out := make([]record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// scroll fetches every point matching filter, ordered by insertion.
func (c *qdrantCollection) scroll(ctx context.Context, filter *qdrant.Filter) ([]record, error) {
	total, err := c.count(ctx, filter)
	if err != nil || total == 0 {
		return nil, err
	}
	if total > math.MaxUint32 {
		total = math.MaxUint32
	}
	var points []*qdrant.RetrievedPoint
	err = c.client.retryOperation(ctx, "scroll", func() error {
		res, err := c.client.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: c.name,
			Filter:         filter,
			Limit:          qdrant.PtrOf(uint32(total)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		points = res
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]record, len(points))
	for i, p := range points {
		out[i] = payloadRecord(p.GetPayload(), p.GetVectors().GetVector().GetData())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].seq != out[j].seq {
			return out[i].seq < out[j].seq
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *qdrantCollection) count(ctx context.Context, filter *qdrant.Filter) (uint64, error) {
	var n uint64
	err := c.client.retryOperation(ctx, "count", func() error {
		res, err := c.client.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: c.name,
			Filter:         filter,
			Exact:          qdrant.PtrOf(true),
		})
		n = res
		return err
	})
	return n, err
}

// Count returns the exact number of points.
func (c *qdrantCollection) Count(ctx context.Context) (int, error) {
	n, err := c.count(ctx, nil)
	return int(n), err
}

// Add upserts new records. Existing ids are skipped.
func (c *qdrantCollection) Add(ctx context.Context, req AddRequest) error {
	if err := checkAligned(req.IDs, req.Documents, req.Metadatas, req.Embeddings); err != nil {
		return err
	}
	for _, m := range req.Metadatas {
		if err := validateMetadata(m, false); err != nil {
			return err
		}
	}
	embeddings, err := resolveEmbeddings(ctx, c.client.embedder, req.Documents, req.Embeddings)
	if err != nil {
		return err
	}

	mu := c.lock()
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.retrieve(ctx, req.IDs)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[r.ID] = struct{}{}
	}

	seq := timeNow().UnixNano()
	recs := make([]record, 0, len(req.IDs))
	for i, id := range req.IDs {
		if _, ok := seen[id]; ok {
			continue
		}
		rec := record{ID: id, Embedding: embeddings[i], seq: seq + int64(i)}
		if req.Documents != nil {
			rec.Document = strPtr(req.Documents[i])
		}
		if req.Metadatas != nil {
			rec.Metadata = req.Metadatas[i]
		}
		recs = append(recs, rec)
	}
	if len(recs) == 0 {
		return nil
	}
	return c.upsert(ctx, recs)
}

// Get returns records by ids or by filter.
func (c *qdrantCollection) Get(ctx context.Context, req GetRequest) (*GetResult, error) {
	include, err := resolveInclude(req.Include, DefaultGetInclude, false)
	if err != nil {
		return nil, err
	}
	if err := validateSelectors(req.Offset, req.Limit, req.Where, req.WhereDocument); err != nil {
		return nil, err
	}

	var recs []record
	if len(req.IDs) > 0 {
		recs, err = c.retrieve(ctx, req.IDs)
		if err != nil {
			return nil, err
		}
		recs = selectRecords(recs, req.IDs, req.Where, req.WhereDocument)
	} else {
		filter, err := QdrantFilter(req.Where, req.WhereDocument)
		if err != nil {
			return nil, err
		}
		recs, err = c.scroll(ctx, filter)
		if err != nil {
			return nil, err
		}
	}

	res := newGetResult(include)
	for _, r := range paginate(recs, req.Offset, req.Limit) {
		res.append(r)
	}
	return res, nil
}

// Peek returns the first limit records.
func (c *qdrantCollection) Peek(ctx context.Context, limit int) (*GetResult, error) {
	return c.Get(ctx, GetRequest{Limit: limit})
}

// Update merges fields into existing points, re-embedding changed documents.
func (c *qdrantCollection) Update(ctx context.Context, req UpdateRequest) error {
	if err := validateUpdate(c.client.embedder, req, false); err != nil {
		return err
	}

	mu := c.lock()
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.retrieve(ctx, req.IDs)
	if err != nil {
		return err
	}
	updated, err := applyUpdate(ctx, c.client.embedder, existing, req)
	if err != nil || len(updated) == 0 {
		return err
	}
	return c.upsert(ctx, updated)
}

// Delete removes points by id or by filter.
func (c *qdrantCollection) Delete(ctx context.Context, req DeleteRequest) error {
	var selector *qdrant.PointsSelector
	switch {
	case len(req.IDs) > 0 && len(req.Where) == 0 && len(req.WhereDocument) == 0:
		pids := make([]*qdrant.PointId, len(req.IDs))
		for i, id := range req.IDs {
			pids[i] = pointID(id)
		}
		selector = &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pids},
			},
		}
	case len(req.Where) > 0 || len(req.WhereDocument) > 0:
		if err := validateSelectors(0, 0, req.Where, req.WhereDocument); err != nil {
			return err
		}
		filter, err := QdrantFilter(req.Where, req.WhereDocument)
		if err != nil {
			return err
		}
		if len(req.IDs) > 0 {
			ids := make([]string, len(req.IDs))
			copy(ids, req.IDs)
			filter.Must = append(filter.Must, keywordsCondition(payloadID, ids))
		}
		selector = &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		}
	default:
		return fmt.Errorf("%w: ids or filters must be provided", ErrInvalidInput)
	}

	return c.client.retryOperation(ctx, "delete", func() error {
		_, err := c.client.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: c.name,
			Wait:           qdrant.PtrOf(true),
			Points:         selector,
		})
		return err
	})
}

// Query searches each query vector with the translated filter.
func (c *qdrantCollection) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	include, err := resolveInclude(req.Include, DefaultQueryInclude, true)
	if err != nil {
		return nil, err
	}
	if err := validateSelectors(0, 0, req.Where, req.WhereDocument); err != nil {
		return nil, err
	}
	queries, err := queryEmbeddings(ctx, c.client.embedder, req)
	if err != nil {
		return nil, err
	}
	filter, err := QdrantFilter(req.Where, req.WhereDocument)
	if err != nil {
		return nil, err
	}

	res := newQueryResult(include, len(queries))
	for _, vec := range queries {
		var points []*qdrant.ScoredPoint
		err := c.client.retryOperation(ctx, "query", func() error {
			out, err := c.client.client.Query(ctx, &qdrant.QueryPoints{
				CollectionName: c.name,
				Query:          qdrant.NewQuery(vec...),
				Limit:          qdrant.PtrOf(uint64(req.NResults)),
				WithPayload:    qdrant.NewWithPayload(true),
				WithVectors:    qdrant.NewWithVectors(includes(include, IncludeEmbeddings)),
				Filter:         filter,
			})
			points = out
			return err
		})
		if err != nil {
			return nil, err
		}
		hits := make([]scored, len(points))
		for i, p := range points {
			rec := payloadRecord(p.GetPayload(), p.GetVectors().GetVector().GetData())
			hits[i] = scored{record: rec, distance: 1 - p.GetScore()}
		}
		res.appendRow(hits)
	}
	return res, nil
}

func recordPayload(rec record) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		payloadID:  {Kind: &qdrant.Value_StringValue{StringValue: rec.ID}},
		payloadSeq: {Kind: &qdrant.Value_IntegerValue{IntegerValue: rec.seq}},
	}
	if rec.Document != nil {
		payload[payloadDocument] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: *rec.Document}}
	}
	if len(rec.Embedding) > 0 {
		values := make([]*qdrant.Value, len(rec.Embedding))
		for i, x := range rec.Embedding {
			values[i] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: float64(x)}}
		}
		payload[payloadEmbedding] = &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	}
	if len(rec.Metadata) > 0 {
		fields := make(map[string]*qdrant.Value, len(rec.Metadata))
		for k, v := range rec.Metadata {
			fields[k] = toQdrantValue(v)
		}
		payload[payloadMetadata] = &qdrant.Value{Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}}}
	}
	return payload
}

// payloadRecord decodes a point. The stored vector is used only when the
// payload carries no original embedding.
func payloadRecord(payload map[string]*qdrant.Value, vector []float32) record {
	rec := record{Embedding: vector}
	if list := payload[payloadEmbedding].GetListValue(); list != nil {
		rec.Embedding = make([]float32, len(list.GetValues()))
		for i, v := range list.GetValues() {
			rec.Embedding[i] = float32(v.GetDoubleValue())
		}
	}
	rec.ID = payload[payloadID].GetStringValue()
	rec.seq = payload[payloadSeq].GetIntegerValue()
	if v, ok := payload[payloadDocument]; ok {
		rec.Document = strPtr(v.GetStringValue())
	}
	if s := payload[payloadMetadata].GetStructValue(); s != nil && len(s.GetFields()) > 0 {
		rec.Metadata = make(map[string]any, len(s.GetFields()))
		for k, v := range s.GetFields() {
			rec.Metadata[k] = fromQdrantValue(v)
		}
	}
	return rec
}

func toQdrantValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	}
	if f, ok := toFloat(v); ok {
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(f)}}
		}
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: f}}
	}
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprint(v)}}
}

func fromQdrantValue(v *qdrant.Value) any {
	switch val := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	default:
		return nil
	}
}
