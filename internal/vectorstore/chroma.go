package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/chroma-mcp/internal/logging"
)

const (
	// DefaultTenant and DefaultDatabase are Chroma's built-in namespace names.
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
)

// ChromaConfig configures the chroma-go v2 HTTP client used for self-hosted
// Chroma and Chroma Cloud.
type ChromaConfig struct {
	// BaseURL is scheme://host:port with no path.
	BaseURL  string
	Tenant   string
	Database string
	// APIKey is sent as x-chroma-token when set.
	APIKey string
	// BasicAuth is "user:password" sent as HTTP basic credentials when set
	// and APIKey is empty.
	BasicAuth string
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	// RateLimit is requests per second. Zero or negative means unlimited.
	RateLimit float64
	// Transport overrides the HTTP round tripper, mainly for tests.
	Transport http.RoundTripper
}

// ChromaClient adapts a chroma-go v2 client to Client. Embeddings are
// computed client-side before add, update and query, and SDK errors are
// mapped onto the package sentinels by HTTP status.
type ChromaClient struct {
	api      chroma.Client
	cfg      ChromaConfig
	http     *http.Client
	ef       embeddings.EmbeddingFunction
	embedder Embedder
	logger   *logging.Logger
}

// NewChromaClient validates cfg and returns a client. It does not contact the server.
func NewChromaClient(cfg ChromaConfig, embedder Embedder, logger *logging.Logger) (*ChromaClient, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid chroma base URL %q", ErrInvalidConfig, cfg.BaseURL)
	}
	if cfg.Tenant == "" {
		cfg.Tenant = DefaultTenant
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &chromaTransport{base: base, limiter: rate.NewLimiter(limit, 1)},
	}

	opts := []chroma.ClientOption{
		chroma.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		chroma.WithDatabaseAndTenant(cfg.Database, cfg.Tenant),
		chroma.WithHTTPClient(httpClient),
	}
	switch {
	case cfg.APIKey != "":
		opts = append(opts, chroma.WithAuth(chroma.NewTokenAuthCredentialsProvider(cfg.APIKey, chroma.XChromaTokenHeader)))
	case cfg.BasicAuth != "":
		user, pass, _ := strings.Cut(cfg.BasicAuth, ":")
		opts = append(opts, chroma.WithAuth(chroma.NewBasicAuthCredentialsProvider(user, pass)))
	}

	api, err := chroma.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating chroma client: %v", ErrInvalidConfig, err)
	}

	return &ChromaClient{
		api:      api,
		cfg:      cfg,
		http:     httpClient,
		ef:       embeddingFunction{embedder},
		embedder: embedder,
		logger:   logger,
	}, nil
}

// ListCollections pages through collection names. Limit 0 means the server default.
func (c *ChromaClient) ListCollections(ctx context.Context, limit, offset int) ([]string, error) {
	var opts []chroma.ListCollectionsOption
	if limit > 0 {
		opts = append(opts, chroma.ListWithLimit(limit))
	}
	if offset > 0 {
		opts = append(opts, chroma.ListWithOffset(offset))
	}

	var cols []chroma.Collection
	err := c.call(ctx, "list collections", func(ctx context.Context) error {
		var err error
		cols, err = c.api.ListCollections(ctx, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name()
	}
	return names, nil
}

func (c *ChromaClient) createOptions(metadata map[string]any, getOrCreate bool) []chroma.CreateCollectionOption {
	opts := []chroma.CreateCollectionOption{chroma.WithEmbeddingFunctionCreate(c.ef)}
	if len(metadata) > 0 {
		opts = append(opts, chroma.WithCollectionMetadataCreate(chroma.NewMetadataFromMap(metadata)))
	}
	if getOrCreate {
		opts = append(opts, chroma.WithIfNotExistsCreate())
	}
	return opts
}

// CreateCollection creates a collection; the server reports conflicts as 409.
func (c *ChromaClient) CreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	var col chroma.Collection
	err := c.call(ctx, "create collection", func(ctx context.Context) error {
		var err error
		col, err = c.api.CreateCollection(ctx, name, c.createOptions(metadata, false)...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.wrap(col), nil
}

// GetOrCreateCollection creates the collection unless it exists.
func (c *ChromaClient) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error) {
	var col chroma.Collection
	err := c.call(ctx, "get or create collection", func(ctx context.Context) error {
		var err error
		col, err = c.api.GetOrCreateCollection(ctx, name, c.createOptions(metadata, true)...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.wrap(col), nil
}

// GetCollection fetches collection details by name.
func (c *ChromaClient) GetCollection(ctx context.Context, name string) (Collection, error) {
	var col chroma.Collection
	err := c.call(ctx, "get collection", func(ctx context.Context) error {
		var err error
		col, err = c.api.GetCollection(ctx, name, chroma.WithEmbeddingFunctionGet(c.ef))
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.wrap(col), nil
}

// DeleteCollection deletes a collection by name.
func (c *ChromaClient) DeleteCollection(ctx context.Context, name string) error {
	return c.call(ctx, "delete collection", func(ctx context.Context) error {
		return c.api.DeleteCollection(ctx, name)
	})
}

// Heartbeat checks the server is reachable.
func (c *ChromaClient) Heartbeat(ctx context.Context) error {
	return c.call(ctx, "heartbeat", c.api.Heartbeat)
}

// Close releases the SDK client and idle connections.
func (c *ChromaClient) Close() error {
	err := c.api.Close()
	c.http.CloseIdleConnections()
	return err
}

// call runs one SDK request and maps its error onto the package sentinels.
func (c *ChromaClient) call(ctx context.Context, op string, fn func(context.Context) error) error {
	status := new(responseStatus)
	err := fn(context.WithValue(ctx, responseStatusKey{}, status))
	if err == nil {
		return nil
	}
	err = chromaError(ctx, int(status.code.Load()), err)
	c.logger.Debug(ctx, "chroma request failed",
		zap.String("op", op),
		zap.Int32("status", status.code.Load()),
		zap.Error(err),
	)
	return err
}

// chromaError wraps an SDK error with the sentinel for the last HTTP status
// seen on the request. Status 0 means no response arrived.
func chromaError(ctx context.Context, status int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if status == 0 {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var sentinel error
	switch status {
	case http.StatusNotFound:
		sentinel = ErrCollectionNotFound
	case http.StatusConflict:
		sentinel = ErrCollectionExists
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = ErrInvalidInput
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrConnectionFailed
	default:
		sentinel = ErrUpstream
	}
	return fmt.Errorf("%w: %v (status %d)", sentinel, err, status)
}

type responseStatusKey struct{}

// responseStatus records the status code of the last response for a call.
type responseStatus struct {
	code atomic.Int32
}

// chromaTransport rate-limits requests and records response statuses for call.
type chromaTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *chromaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if status, ok := req.Context().Value(responseStatusKey{}).(*responseStatus); ok {
		status.code.Store(int32(resp.StatusCode))
	}
	return resp, nil
}

// embeddingFunction exposes an Embedder to chroma-go so collections never
// fall back to the SDK's default model.
type embeddingFunction struct {
	e Embedder
}

func (f embeddingFunction) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	vecs, err := f.e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	return toEmbeddings(vecs), nil
}

func (f embeddingFunction) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	vec, err := f.e.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbeddingFromFloat32(vec), nil
}

func (c *ChromaClient) wrap(col chroma.Collection) *chromaCollection {
	var metadata map[string]any
	if md := col.Metadata(); md != nil {
		_ = remarshal(md, &metadata)
	}
	return &chromaCollection{client: c, col: col, metadata: metadata}
}

type chromaCollection struct {
	client   *ChromaClient
	col      chroma.Collection
	metadata map[string]any
}

func (c *chromaCollection) Name() string             { return c.col.Name() }
func (c *chromaCollection) Metadata() map[string]any { return c.metadata }

// Add embeds documents when no embeddings are given, then adds the records.
func (c *chromaCollection) Add(ctx context.Context, req AddRequest) error {
	if err := checkAligned(req.IDs, req.Documents, req.Metadatas, req.Embeddings); err != nil {
		return err
	}
	vecs, err := resolveEmbeddings(ctx, c.client.embedder, req.Documents, req.Embeddings)
	if err != nil {
		return err
	}

	opts := []chroma.CollectionAddOption{
		chroma.WithIDs(documentIDs(req.IDs)...),
		chroma.WithEmbeddings(toEmbeddings(vecs)...),
	}
	if req.Documents != nil {
		opts = append(opts, chroma.WithTexts(req.Documents...))
	}
	if req.Metadatas != nil {
		metas, err := documentMetadatas(req.Metadatas)
		if err != nil {
			return err
		}
		opts = append(opts, chroma.WithMetadatas(metas...))
	}
	return c.client.call(ctx, "add", func(ctx context.Context) error {
		return c.col.Add(ctx, opts...)
	})
}

// Get fetches records by id and filter. Included fields are never nil.
func (c *chromaCollection) Get(ctx context.Context, req GetRequest) (*GetResult, error) {
	include, err := resolveInclude(req.Include, DefaultGetInclude, false)
	if err != nil {
		return nil, err
	}

	opts := []chroma.CollectionGetOption{chroma.WithIncludeGet(chromaIncludes(include)...)}
	if len(req.IDs) > 0 {
		opts = append(opts, chroma.WithIDsGet(documentIDs(req.IDs)...))
	}
	if len(req.Where) > 0 {
		opts = append(opts, chroma.WithWhereGet(rawFilter(req.Where)))
	}
	if len(req.WhereDocument) > 0 {
		opts = append(opts, chroma.WithWhereDocumentGet(rawFilter(req.WhereDocument)))
	}
	if req.Limit > 0 {
		opts = append(opts, chroma.WithLimitGet(req.Limit))
	}
	if req.Offset > 0 {
		opts = append(opts, chroma.WithOffsetGet(req.Offset))
	}

	var res chroma.GetResult
	err = c.client.call(ctx, "get", func(ctx context.Context) error {
		var err error
		res, err = c.col.Get(ctx, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	recs, err := sdkRecords(res.GetIDs(), res.GetDocuments(), res.GetMetadatas(), res.GetEmbeddings())
	if err != nil {
		return nil, err
	}
	out := newGetResult(include)
	for _, rec := range recs {
		out.append(rec)
	}
	return out, nil
}

// Peek returns the first limit records.
func (c *chromaCollection) Peek(ctx context.Context, limit int) (*GetResult, error) {
	return c.Get(ctx, GetRequest{Limit: limit})
}

// Update embeds changed documents when no embeddings are given. The server
// merges metadata.
func (c *chromaCollection) Update(ctx context.Context, req UpdateRequest) error {
	if err := validateUpdate(c.client.embedder, req, false); err != nil {
		return err
	}
	vecs := req.Embeddings
	if vecs == nil && req.Documents != nil {
		var err error
		vecs, err = c.client.embedder.EmbedDocuments(ctx, req.Documents)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
	}

	opts := []chroma.CollectionUpdateOption{chroma.WithIDsUpdate(documentIDs(req.IDs)...)}
	if vecs != nil {
		opts = append(opts, chroma.WithEmbeddingsUpdate(toEmbeddings(vecs)...))
	}
	if req.Documents != nil {
		opts = append(opts, chroma.WithTextsUpdate(req.Documents...))
	}
	if req.Metadatas != nil {
		metas, err := documentMetadatas(req.Metadatas)
		if err != nil {
			return err
		}
		opts = append(opts, chroma.WithMetadatasUpdate(metas...))
	}
	return c.client.call(ctx, "update", func(ctx context.Context) error {
		return c.col.Update(ctx, opts...)
	})
}

// Delete removes records by ids or filters.
func (c *chromaCollection) Delete(ctx context.Context, req DeleteRequest) error {
	if len(req.IDs) == 0 && len(req.Where) == 0 && len(req.WhereDocument) == 0 {
		return fmt.Errorf("%w: ids or filters must be provided", ErrInvalidInput)
	}
	var opts []chroma.CollectionDeleteOption
	if len(req.IDs) > 0 {
		opts = append(opts, chroma.WithIDsDelete(documentIDs(req.IDs)...))
	}
	if len(req.Where) > 0 {
		opts = append(opts, chroma.WithWhereDelete(rawFilter(req.Where)))
	}
	if len(req.WhereDocument) > 0 {
		opts = append(opts, chroma.WithWhereDocumentDelete(rawFilter(req.WhereDocument)))
	}
	return c.client.call(ctx, "delete", func(ctx context.Context) error {
		return c.col.Delete(ctx, opts...)
	})
}

// Count returns the number of records.
func (c *chromaCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.client.call(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = c.col.Count(ctx)
		return err
	})
	return n, err
}

// Query embeds query texts locally and runs the search server-side.
func (c *chromaCollection) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	include, err := resolveInclude(req.Include, DefaultQueryInclude, true)
	if err != nil {
		return nil, err
	}
	queries, err := queryEmbeddings(ctx, c.client.embedder, req)
	if err != nil {
		return nil, err
	}

	opts := []chroma.CollectionQueryOption{
		chroma.WithQueryEmbeddings(toEmbeddings(queries)...),
		chroma.WithNResults(req.NResults),
		chroma.WithIncludeQuery(chromaIncludes(include)...),
	}
	if len(req.Where) > 0 {
		opts = append(opts, chroma.WithWhereQuery(rawFilter(req.Where)))
	}
	if len(req.WhereDocument) > 0 {
		opts = append(opts, chroma.WithWhereDocumentQuery(rawFilter(req.WhereDocument)))
	}

	var res chroma.QueryResult
	err = c.client.call(ctx, "query", func(ctx context.Context) error {
		var err error
		res, err = c.col.Query(ctx, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	idGroups := res.GetIDGroups()
	docGroups := res.GetDocumentsGroups()
	metaGroups := res.GetMetadatasGroups()
	embGroups := res.GetEmbeddingsGroups()
	var distances [][]float32
	if err := remarshal(res.GetDistancesGroups(), &distances); err != nil {
		return nil, err
	}

	out := newQueryResult(include, len(queries))
	for q := range queries {
		var hits []scored
		if q < len(idGroups) {
			recs, err := sdkRecords(idGroups[q], group(docGroups, q), group(metaGroups, q), group(embGroups, q))
			if err != nil {
				return nil, err
			}
			hits = make([]scored, len(recs))
			for i, rec := range recs {
				hits[i] = scored{record: rec}
				if q < len(distances) && i < len(distances[q]) {
					hits[i].distance = distances[q][i]
				}
			}
		}
		out.appendRow(hits)
	}
	return out, nil
}

func group[T any](groups []T, i int) T {
	var zero T
	if i < len(groups) {
		return groups[i]
	}
	return zero
}

// sdkRecords zips SDK result columns into records. Columns the server
// omitted leave the matching record fields nil.
func sdkRecords(ids chroma.DocumentIDs, docs chroma.Documents, metas chroma.DocumentMetadatas, embs embeddings.Embeddings) ([]record, error) {
	var (
		texts     []*string
		metadatas []map[string]any
	)
	if err := remarshal(docs, &texts); err != nil {
		return nil, err
	}
	if err := remarshal(metas, &metadatas); err != nil {
		return nil, err
	}

	recs := make([]record, len(ids))
	for i, id := range ids {
		recs[i].ID = string(id)
		if i < len(texts) {
			recs[i].Document = texts[i]
		}
		if i < len(metadatas) {
			recs[i].Metadata = metadatas[i]
		}
		if i < len(embs) && embs[i] != nil {
			recs[i].Embedding = embs[i].ContentAsFloat32()
		}
	}
	return recs, nil
}

// remarshal converts an SDK value to plain Go values through its JSON form.
func remarshal(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("%w: encoding chroma result: %v", ErrUpstream, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decoding chroma result: %v", ErrUpstream, err)
	}
	return nil
}

func documentIDs(ids []string) []chroma.DocumentID {
	out := make([]chroma.DocumentID, len(ids))
	for i, id := range ids {
		out[i] = chroma.DocumentID(id)
	}
	return out
}

func toEmbeddings(vecs [][]float32) []embeddings.Embedding {
	out := make([]embeddings.Embedding, len(vecs))
	for i, v := range vecs {
		out[i] = embeddings.NewEmbeddingFromFloat32(v)
	}
	return out
}

func documentMetadatas(metas []map[string]any) ([]chroma.DocumentMetadata, error) {
	out := make([]chroma.DocumentMetadata, len(metas))
	for i, m := range metas {
		if m == nil {
			m = map[string]any{}
		}
		md, err := chroma.NewDocumentMetadataFromMap(m)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata %d: %v", ErrInvalidInput, i, err)
		}
		out[i] = md
	}
	return out, nil
}

func chromaIncludes(include []Include) []chroma.Include {
	out := make([]chroma.Include, len(include))
	for i, inc := range include {
		out[i] = chroma.Include(inc)
	}
	return out
}

// rawFilter passes a where or where_document clause to the SDK as-is. The
// server validates operators.
type rawFilter map[string]any

func (f rawFilter) String() string {
	raw, _ := json.Marshal(map[string]any(f))
	return string(raw)
}

func (f rawFilter) Validate() error { return nil }

func (f rawFilter) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(f))
}

func (f rawFilter) UnmarshalJSON([]byte) error {
	return errors.New("rawFilter is write-only")
}
