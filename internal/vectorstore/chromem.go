package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chroma-mcp/internal/logging"
)

// timeNow is a variable for testing purposes.
var timeNow = time.Now

const (
	// metaCollection stores user collection metadata. Its name fails
	// ValidateCollectionName so users can never address it.
	metaCollection = "_chroma_mcp_collections"
	metaNameKey    = "collection"

	// Reserved record metadata keys. User keys with this prefix are rejected.
	reservedPrefix = "chroma:"
	seqKey         = "chroma:seq"
	hasDocKey      = "chroma:has_document"
	// embeddingKey keeps the caller's vector; chromem stores it normalised.
	embeddingKey = "chroma:embedding"
)

// ChromemConfig configures the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the persistence directory. Empty means in-memory only.
	Path string
	// Compress enables gzip compression of persisted files.
	Compress bool
}

// ChromemClient implements Client on an embedded chromem-go DB.
type ChromemClient struct {
	db       *chromem.DB
	embedder Embedder
	logger   *logging.Logger
	path     string

	// mu serialises collection create and delete.
	mu sync.Mutex
	// locks holds one *sync.Mutex per collection for read-merge-write paths.
	locks sync.Map
}

// NewChromemClient opens an in-memory or persistent chromem DB.
func NewChromemClient(cfg ChromemConfig, embedder Embedder, logger *logging.Logger) (*ChromemClient, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory %s: %v", ErrInvalidConfig, cfg.Path, err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem DB at %s: %v", ErrConnectionFailed, cfg.Path, err)
		}
	}

	logger.Debug(context.Background(), "chromem client initialized",
		zap.String("path", cfg.Path),
		zap.Bool("persistent", cfg.Path != ""),
		zap.Int("dimension", embedder.Dimension()),
	)

	return &ChromemClient{db: db, embedder: embedder, logger: logger, path: cfg.Path}, nil
}

func (c *ChromemClient) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := c.embedder.EmbedDocuments(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return vecs[0], nil
	}
}

// ListCollections returns collection names in lexical order.
func (c *ChromemClient) ListCollections(_ context.Context, limit, offset int) ([]string, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must be non-negative", ErrInvalidInput)
	}
	names := make([]string, 0)
	for name := range c.db.ListCollections() {
		if name != metaCollection {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return paginate(names, offset, limit), nil
}

// CreateCollection creates a new collection. An existing name is ErrCollectionExists.
func (c *ChromemClient) CreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if err := validateMetadata(metadata, false); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db.GetCollection(name, c.embeddingFunc()) != nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	return c.create(ctx, name, metadata)
}

func (c *ChromemClient) create(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	col, err := c.db.CreateCollection(name, nil, c.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("%w: creating collection %s: %v", ErrUpstream, name, err)
	}
	if err := c.putCollectionMetadata(ctx, name, metadata); err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, "created chromem collection", zap.String("collection", name))
	return c.wrap(col, metadata), nil
}

// GetCollection resolves an existing collection.
func (c *ChromemClient) GetCollection(ctx context.Context, name string) (Collection, error) {
	col := c.db.GetCollection(name, c.embeddingFunc())
	if col == nil || name == metaCollection {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	metadata, err := c.collectionMetadata(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.wrap(col, metadata), nil
}

// GetOrCreateCollection returns the named collection, creating it with
// metadata when missing. Metadata of an existing collection is left unchanged.
func (c *ChromemClient) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	if err := ValidateCollectionName(name); err != nil {
		return nil, err
	}
	if err := validateMetadata(metadata, false); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db.GetCollection(name, c.embeddingFunc()) != nil {
		return c.GetCollection(ctx, name)
	}
	return c.create(ctx, name, metadata)
}

// DeleteCollection removes a collection and its records.
func (c *ChromemClient) DeleteCollection(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == metaCollection || c.db.GetCollection(name, c.embeddingFunc()) == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err := c.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("%w: deleting collection %s: %v", ErrUpstream, name, err)
	}
	if meta := c.db.GetCollection(metaCollection, c.embeddingFunc()); meta != nil && meta.Count() > 0 {
		if err := meta.Delete(ctx, map[string]string{metaNameKey: name}, nil); err != nil {
			return fmt.Errorf("%w: deleting metadata for %s: %v", ErrUpstream, name, err)
		}
	}
	c.locks.Delete(name)
	c.logger.Debug(ctx, "deleted chromem collection", zap.String("collection", name))
	return nil
}

// Heartbeat always succeeds for the embedded backend.
func (c *ChromemClient) Heartbeat(context.Context) error { return nil }

// Close is a no-op; persistent writes are flushed per operation.
func (c *ChromemClient) Close() error { return nil }

func (c *ChromemClient) putCollectionMetadata(ctx context.Context, name string, metadata map[string]any) error {
	meta, err := c.db.GetOrCreateCollection(metaCollection, nil, c.embeddingFunc())
	if err != nil {
		return fmt.Errorf("%w: opening metadata collection: %v", ErrUpstream, err)
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%w: encoding collection metadata: %v", ErrInvalidInput, err)
	}
	doc := chromem.Document{
		ID:        name,
		Content:   string(raw),
		Metadata:  map[string]string{metaNameKey: name},
		Embedding: []float32{1},
	}
	if err := meta.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: storing collection metadata: %v", ErrUpstream, err)
	}
	return nil
}

func (c *ChromemClient) collectionMetadata(ctx context.Context, name string) (map[string]any, error) {
	meta := c.db.GetCollection(metaCollection, c.embeddingFunc())
	if meta == nil || meta.Count() == 0 {
		return nil, nil
	}
	res, err := meta.QueryEmbedding(ctx, []float32{1}, 1, map[string]string{metaNameKey: name}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: reading collection metadata: %v", ErrUpstream, err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(res[0].Content), &out); err != nil {
		return nil, fmt.Errorf("%w: decoding collection metadata: %v", ErrUpstream, err)
	}
	return out, nil
}

func (c *ChromemClient) lock(name string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(name, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (c *ChromemClient) wrap(col *chromem.Collection, metadata map[string]any) *chromemCollection {
	return &chromemCollection{client: c, col: col, name: col.Name, metadata: metadata}
}

type chromemCollection struct {
	client   *ChromemClient
	col      *chromem.Collection
	name     string
	metadata map[string]any
}

func (c *chromemCollection) Name() string             { return c.name }
func (c *chromemCollection) Metadata() map[string]any { return c.metadata }

func (c *chromemCollection) Count(context.Context) (int, error) {
	return c.col.Count(), nil
}

// Add inserts new records. Ids that already exist are skipped.
func (c *chromemCollection) Add(ctx context.Context, req AddRequest) error {
	if err := checkAligned(req.IDs, req.Documents, req.Metadatas, req.Embeddings); err != nil {
		return err
	}
	for _, m := range req.Metadatas {
		if err := validateMetadata(m, true); err != nil {
			return err
		}
	}
	embeddings, err := resolveEmbeddings(ctx, c.client.embedder, req.Documents, req.Embeddings)
	if err != nil {
		return err
	}

	mu := c.client.lock(c.name)
	mu.Lock()
	defer mu.Unlock()

	existing, err := c.records(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[r.ID] = struct{}{}
	}

	seq := timeNow().UnixNano()
	docs := make([]chromem.Document, 0, len(req.IDs))
	for i, id := range req.IDs {
		if _, ok := seen[id]; ok {
			c.client.logger.Debug(ctx, "skipping existing id on add", zap.String("collection", c.name), zap.String("id", id))
			continue
		}
		rec := record{ID: id, Embedding: embeddings[i], seq: seq + int64(i)}
		if req.Documents != nil {
			rec.Document = strPtr(req.Documents[i])
		}
		if req.Metadatas != nil {
			rec.Metadata = req.Metadatas[i]
		}
		doc, err := encodeChromemDocument(rec)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil
	}
	if err := c.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: adding documents to %s: %v", ErrUpstream, c.name, err)
	}
	return nil
}

// Get returns records selected by ids and filters, in insertion order unless
// ids are given, in which case request order is kept.
func (c *chromemCollection) Get(ctx context.Context, req GetRequest) (*GetResult, error) {
	include, err := resolveInclude(req.Include, DefaultGetInclude, false)
	if err != nil {
		return nil, err
	}
	if err := validateSelectors(req.Offset, req.Limit, req.Where, req.WhereDocument); err != nil {
		return nil, err
	}

	all, err := c.records(ctx)
	if err != nil {
		return nil, err
	}
	selected := selectRecords(all, req.IDs, req.Where, req.WhereDocument)

	res := newGetResult(include)
	for _, r := range paginate(selected, req.Offset, req.Limit) {
		res.append(r)
	}
	return res, nil
}

// Peek returns the first limit records.
func (c *chromemCollection) Peek(ctx context.Context, limit int) (*GetResult, error) {
	return c.Get(ctx, GetRequest{Limit: limit})
}

// Update merges the given fields into existing records. Metadata is merged by
// key; documents are re-embedded only when no embedding is supplied.
func (c *chromemCollection) Update(ctx context.Context, req UpdateRequest) error {
	if err := validateUpdate(c.client.embedder, req, true); err != nil {
		return err
	}

	mu := c.client.lock(c.name)
	mu.Lock()
	defer mu.Unlock()

	all, err := c.records(ctx)
	if err != nil {
		return err
	}
	updated, err := applyUpdate(ctx, c.client.embedder, all, req)
	if err != nil || len(updated) == 0 {
		return err
	}

	docs := make([]chromem.Document, len(updated))
	for i, rec := range updated {
		doc, err := encodeChromemDocument(rec)
		if err != nil {
			return err
		}
		docs[i] = doc
	}
	if err := c.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: updating documents in %s: %v", ErrUpstream, c.name, err)
	}
	return nil
}

// Delete removes records by ids, or by filter. Unknown ids are ignored.
func (c *chromemCollection) Delete(ctx context.Context, req DeleteRequest) error {
	hasFilter := len(req.Where) > 0 || len(req.WhereDocument) > 0
	if len(req.IDs) == 0 && !hasFilter {
		return fmt.Errorf("%w: ids or filters must be provided", ErrInvalidInput)
	}
	if err := validateSelectors(0, 0, req.Where, req.WhereDocument); err != nil {
		return err
	}

	mu := c.client.lock(c.name)
	mu.Lock()
	defer mu.Unlock()

	all, err := c.records(ctx)
	if err != nil {
		return err
	}
	selected := selectRecords(all, req.IDs, req.Where, req.WhereDocument)
	if len(selected) == 0 {
		return nil
	}
	ids := make([]string, len(selected))
	for i, r := range selected {
		ids[i] = r.ID
	}
	if err := c.col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("%w: deleting documents from %s: %v", ErrUpstream, c.name, err)
	}
	return nil
}

// Query ranks records by cosine distance to each query.
func (c *chromemCollection) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
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

	all, err := c.records(ctx)
	if err != nil {
		return nil, err
	}
	candidates := selectRecords(all, nil, req.Where, req.WhereDocument)

	res := newQueryResult(include, len(queries))
	for _, q := range queries {
		res.appendRow(nearest(candidates, normalize(q), req.NResults))
	}
	return res, nil
}

// records enumerates the whole collection. chromem has no list API, so this
// runs an exhaustive query with a uniform vector.
func (c *chromemCollection) records(ctx context.Context) ([]record, error) {
	n := c.col.Count()
	if n == 0 {
		return nil, nil
	}
	dim := c.client.embedder.Dimension()
	uniform := make([]float32, dim)
	v := float32(1 / math.Sqrt(float64(dim)))
	for i := range uniform {
		uniform[i] = v
	}
	results, err := c.col.QueryEmbedding(ctx, uniform, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: reading collection %s: %v", ErrUpstream, c.name, err)
	}
	out := make([]record, 0, len(results))
	for _, r := range results {
		rec, err := decodeChromemResult(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].seq != out[j].seq {
			return out[i].seq < out[j].seq
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func encodeChromemDocument(rec record) (chromem.Document, error) {
	meta := make(map[string]string, len(rec.Metadata)+2)
	for k, v := range rec.Metadata {
		raw, err := json.Marshal(v)
		if err != nil {
			return chromem.Document{}, fmt.Errorf("%w: metadata %q: %v", ErrInvalidInput, k, err)
		}
		meta[k] = string(raw)
	}
	meta[seqKey] = strconv.FormatInt(rec.seq, 10)
	raw, err := json.Marshal(rec.Embedding)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("%w: embedding of %s: %v", ErrInvalidInput, rec.ID, err)
	}
	meta[embeddingKey] = string(raw)
	doc := chromem.Document{ID: rec.ID, Metadata: meta, Embedding: rec.Embedding}
	if rec.Document != nil {
		meta[hasDocKey] = "true"
		doc.Content = *rec.Document
	}
	return doc, nil
}

func decodeChromemResult(r chromem.Result) (record, error) {
	rec := record{ID: r.ID, Embedding: r.Embedding}
	for k, raw := range r.Metadata {
		switch k {
		case seqKey:
			rec.seq, _ = strconv.ParseInt(raw, 10, 64)
			continue
		case hasDocKey:
			rec.Document = strPtr(r.Content)
			continue
		case embeddingKey:
			var emb []float32
			if err := json.Unmarshal([]byte(raw), &emb); err != nil {
				return record{}, fmt.Errorf("%w: decoding embedding of %s: %v", ErrUpstream, r.ID, err)
			}
			rec.Embedding = emb
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return record{}, fmt.Errorf("%w: decoding metadata %q of %s: %v", ErrUpstream, k, r.ID, err)
		}
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]any)
		}
		rec.Metadata[k] = v
	}
	return rec, nil
}

// selectRecords keeps records matching ids (in request order) and filters.
func selectRecords(all []record, ids []string, where, whereDocument map[string]any) []record {
	if len(ids) > 0 {
		byID := make(map[string]record, len(all))
		for _, r := range all {
			byID[r.ID] = r
		}
		out := make([]record, 0, len(ids))
		for _, id := range ids {
			if r, ok := byID[id]; ok && r.matches(where, whereDocument) {
				out = append(out, r)
			}
		}
		return out
	}
	out := make([]record, 0, len(all))
	for _, r := range all {
		if r.matches(where, whereDocument) {
			out = append(out, r)
		}
	}
	return out
}

// nearest returns up to n candidates by ascending cosine distance. A
// distance that is not a number counts as orthogonal.
func nearest(candidates []record, query []float32, n int) []scored {
	hits := make([]scored, 0, len(candidates))
	for _, r := range candidates {
		d := 1 - dot32(query, normalize(r.Embedding))
		if math.IsNaN(float64(d)) {
			d = 1
		}
		hits = append(hits, scored{record: r, distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	if n < len(hits) {
		hits = hits[:n]
	}
	return hits
}

func dot32(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	scale := float32(1 / math.Sqrt(norm))
	for i, x := range v {
		out[i] = x * scale
	}
	return out
}

// validateMetadata rejects non-scalar values and, for records, reserved keys.
func validateMetadata(m map[string]any, record bool) error {
	for k, v := range m {
		if k == "" {
			return fmt.Errorf("%w: metadata keys cannot be empty", ErrInvalidInput)
		}
		if record && strings.HasPrefix(k, reservedPrefix) {
			return fmt.Errorf("%w: metadata key %q uses the reserved prefix %q", ErrInvalidInput, k, reservedPrefix)
		}
		if !isScalar(v) {
			return fmt.Errorf("%w: metadata value for %q must be a string, number or bool", ErrInvalidInput, k)
		}
	}
	return nil
}
