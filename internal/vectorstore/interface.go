package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for store operations. Adapters wrap them with %w.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating a collection that already exists.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidInput indicates a malformed request: misaligned lists, bad filters,
	// wrong embedding dimension.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates invalid client configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrUpstream indicates the backend rejected or failed a request.
	ErrUpstream = errors.New("upstream error")
)

// Include names an optional field of a read result.
type Include string

const (
	IncludeDocuments  Include = "documents"
	IncludeMetadatas  Include = "metadatas"
	IncludeEmbeddings Include = "embeddings"
	IncludeDistances  Include = "distances"
)

var (
	// DefaultGetInclude is used by Get and Peek when Include is empty.
	DefaultGetInclude = []Include{IncludeDocuments, IncludeMetadatas}
	// DefaultQueryInclude is used by Query when Include is empty.
	DefaultQueryInclude = []Include{IncludeDocuments, IncludeMetadatas, IncludeDistances}
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension is the length of every vector the embedder returns.
	Dimension() int
}

// AddRequest inserts records. Optional lists are nil or aligned with IDs.
type AddRequest struct {
	IDs        []string
	Documents  []string
	Metadatas  []map[string]any
	Embeddings [][]float32
}

// GetRequest selects records by id and/or filter. Limit 0 means no limit.
type GetRequest struct {
	IDs           []string
	Where         map[string]any
	WhereDocument map[string]any
	Include       []Include
	Limit         int
	Offset        int
}

// UpdateRequest changes the given fields of existing records. Missing ids are skipped.
type UpdateRequest struct {
	IDs        []string
	Documents  []string
	Metadatas  []map[string]any
	Embeddings [][]float32
}

// DeleteRequest removes records by id or by filter.
type DeleteRequest struct {
	IDs           []string
	Where         map[string]any
	WhereDocument map[string]any
}

// QueryRequest runs a nearest-neighbour search per query text or embedding.
type QueryRequest struct {
	QueryTexts      []string
	QueryEmbeddings [][]float32
	NResults        int
	Where           map[string]any
	WhereDocument   map[string]any
	Include         []Include
}

// GetResult holds matched records positionally. A field that was not
// included is nil and encodes as null; an included field is never nil.
type GetResult struct {
	IDs        []string         `json:"ids"`
	Documents  []*string        `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
	Include    []Include        `json:"include"`
}

// QueryResult holds one result row per query.
type QueryResult struct {
	IDs        [][]string         `json:"ids"`
	Documents  [][]*string        `json:"documents"`
	Metadatas  [][]map[string]any `json:"metadatas"`
	Embeddings [][][]float32      `json:"embeddings"`
	Distances  [][]float32        `json:"distances"`
	Include    []Include          `json:"include"`
}

// Client is a connection to one store backend.
type Client interface {
	ListCollections(ctx context.Context, limit, offset int) ([]string, error)
	CreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error)
	GetCollection(ctx context.Context, name string) (Collection, error)
	GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error)
	DeleteCollection(ctx context.Context, name string) error
	Heartbeat(ctx context.Context) error
	Close() error
}

// Collection is a named set of records inside a Client.
type Collection interface {
	Name() string
	Metadata() map[string]any
	Add(ctx context.Context, req AddRequest) error
	Get(ctx context.Context, req GetRequest) (*GetResult, error)
	Peek(ctx context.Context, limit int) (*GetResult, error)
	Update(ctx context.Context, req UpdateRequest) error
	Delete(ctx context.Context, req DeleteRequest) error
	Count(ctx context.Context) (int, error)
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
}
