package vectorstore

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var collectionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*[a-zA-Z0-9]$`)

// ValidateCollectionName applies Chroma's naming rules: 3-512 characters from
// [a-zA-Z0-9._-], starting and ending with an alphanumeric, no "..", and not
// an IPv4 address.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if len(name) < 3 || len(name) > 512 {
		return fmt.Errorf("%w: %q must be between 3 and 512 characters", ErrInvalidCollectionName, name)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q may only contain [a-zA-Z0-9._-] and must start and end with a letter or digit", ErrInvalidCollectionName, name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q cannot contain two consecutive periods", ErrInvalidCollectionName, name)
	}
	if ip := net.ParseIP(name); ip != nil && ip.To4() != nil {
		return fmt.Errorf("%w: %q cannot be an IPv4 address", ErrInvalidCollectionName, name)
	}
	return nil
}

// record is one stored item as adapters see it.
type record struct {
	ID        string
	Document  *string
	Metadata  map[string]any
	Embedding []float32
	seq       int64
}

func checkAligned(ids []string, documents []string, metadatas []map[string]any, embeddings [][]float32) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids cannot be empty", ErrInvalidInput)
	}
	check := func(name string, n int, present bool) error {
		if present && n != len(ids) {
			return fmt.Errorf("%w: length of %s (%d) must match length of ids (%d)", ErrInvalidInput, name, n, len(ids))
		}
		return nil
	}
	if err := check("documents", len(documents), documents != nil); err != nil {
		return err
	}
	if err := check("metadatas", len(metadatas), metadatas != nil); err != nil {
		return err
	}
	if err := check("embeddings", len(embeddings), embeddings != nil); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// resolveEmbeddings returns supplied embeddings after a dimension check, or
// embeds documents.
func resolveEmbeddings(ctx context.Context, e Embedder, documents []string, embeddings [][]float32) ([][]float32, error) {
	if embeddings != nil {
		if err := checkDimensions(e, embeddings); err != nil {
			return nil, err
		}
		return embeddings, nil
	}
	if documents == nil {
		return nil, fmt.Errorf("%w: documents or embeddings must be provided", ErrInvalidInput)
	}
	out, err := e.EmbedDocuments(ctx, documents)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return out, nil
}

// checkDimensions rejects vectors of the wrong length and zero vectors, which
// have no cosine distance to anything.
func checkDimensions(e Embedder, embeddings [][]float32) error {
	want := e.Dimension()
	for i, emb := range embeddings {
		if len(emb) != want {
			return fmt.Errorf("%w: embedding %d has dimension %d, expected %d", ErrInvalidInput, i, len(emb), want)
		}
		if isZero(emb) {
			return fmt.Errorf("%w: embedding %d has zero magnitude", ErrInvalidInput, i)
		}
	}
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// validateUpdate checks an update request before any record is read.
// reserved rejects metadata keys under the adapter's reserved prefix.
func validateUpdate(e Embedder, req UpdateRequest, reserved bool) error {
	if err := checkAligned(req.IDs, req.Documents, req.Metadatas, req.Embeddings); err != nil {
		return err
	}
	if req.Documents == nil && req.Metadatas == nil && req.Embeddings == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	for _, m := range req.Metadatas {
		if err := validateMetadata(m, reserved); err != nil {
			return err
		}
	}
	if req.Embeddings != nil {
		return checkDimensions(e, req.Embeddings)
	}
	return nil
}

// applyUpdate merges req into the existing records it names, in request
// order. Metadata is merged by key. A changed document is re-embedded unless
// an embedding is supplied for it. Ids with no existing record are skipped.
func applyUpdate(ctx context.Context, e Embedder, existing []record, req UpdateRequest) ([]record, error) {
	byID := make(map[string]record, len(existing))
	for _, r := range existing {
		byID[r.ID] = r
	}

	var (
		updated []record
		reembed []int
		texts   []string
	)
	for i, id := range req.IDs {
		rec, ok := byID[id]
		if !ok {
			continue
		}
		if req.Metadatas != nil && req.Metadatas[i] != nil {
			merged := make(map[string]any, len(rec.Metadata)+len(req.Metadatas[i]))
			for k, v := range rec.Metadata {
				merged[k] = v
			}
			for k, v := range req.Metadatas[i] {
				merged[k] = v
			}
			rec.Metadata = merged
		}
		if req.Documents != nil {
			rec.Document = strPtr(req.Documents[i])
		}
		if req.Embeddings != nil {
			rec.Embedding = req.Embeddings[i]
		} else if req.Documents != nil {
			reembed = append(reembed, len(updated))
			texts = append(texts, req.Documents[i])
		}
		updated = append(updated, rec)
	}

	if len(texts) > 0 {
		vecs, err := e.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		for j, idx := range reembed {
			updated[idx].Embedding = vecs[j]
		}
	}
	return updated, nil
}

// queryEmbeddings embeds query texts or validates supplied query embeddings.
func queryEmbeddings(ctx context.Context, e Embedder, req QueryRequest) ([][]float32, error) {
	switch {
	case len(req.QueryTexts) == 0 && len(req.QueryEmbeddings) == 0:
		return nil, fmt.Errorf("%w: query_texts or query_embeddings must be provided", ErrInvalidInput)
	case len(req.QueryTexts) > 0 && len(req.QueryEmbeddings) > 0:
		return nil, fmt.Errorf("%w: provide either query_texts or query_embeddings, not both", ErrInvalidInput)
	case req.NResults <= 0:
		return nil, fmt.Errorf("%w: n_results must be positive, got %d", ErrInvalidInput, req.NResults)
	}
	if len(req.QueryEmbeddings) > 0 {
		if err := checkDimensions(e, req.QueryEmbeddings); err != nil {
			return nil, err
		}
		return req.QueryEmbeddings, nil
	}
	out := make([][]float32, len(req.QueryTexts))
	for i, text := range req.QueryTexts {
		emb, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		out[i] = emb
	}
	return out, nil
}

// resolveInclude applies defaults and rejects unknown fields. Distances are
// only meaningful for queries.
func resolveInclude(include, defaults []Include, allowDistances bool) ([]Include, error) {
	if len(include) == 0 {
		return defaults, nil
	}
	for _, inc := range include {
		switch inc {
		case IncludeDocuments, IncludeMetadatas, IncludeEmbeddings:
		case IncludeDistances:
			if !allowDistances {
				return nil, fmt.Errorf("%w: include %q is only valid for queries", ErrInvalidInput, inc)
			}
		default:
			return nil, fmt.Errorf("%w: unknown include %q", ErrInvalidInput, inc)
		}
	}
	return include, nil
}

func includes(include []Include, field Include) bool {
	for _, inc := range include {
		if inc == field {
			return true
		}
	}
	return false
}

func newGetResult(include []Include) *GetResult {
	r := &GetResult{IDs: []string{}, Include: include}
	if includes(include, IncludeDocuments) {
		r.Documents = []*string{}
	}
	if includes(include, IncludeMetadatas) {
		r.Metadatas = []map[string]any{}
	}
	if includes(include, IncludeEmbeddings) {
		r.Embeddings = [][]float32{}
	}
	return r
}

func (r *GetResult) append(rec record) {
	r.IDs = append(r.IDs, rec.ID)
	if r.Documents != nil {
		r.Documents = append(r.Documents, rec.Document)
	}
	if r.Metadatas != nil {
		r.Metadatas = append(r.Metadatas, rec.Metadata)
	}
	if r.Embeddings != nil {
		r.Embeddings = append(r.Embeddings, rec.Embedding)
	}
}

func newQueryResult(include []Include, queries int) *QueryResult {
	r := &QueryResult{IDs: make([][]string, 0, queries), Include: include}
	if includes(include, IncludeDocuments) {
		r.Documents = make([][]*string, 0, queries)
	}
	if includes(include, IncludeMetadatas) {
		r.Metadatas = make([][]map[string]any, 0, queries)
	}
	if includes(include, IncludeEmbeddings) {
		r.Embeddings = make([][][]float32, 0, queries)
	}
	if includes(include, IncludeDistances) {
		r.Distances = make([][]float32, 0, queries)
	}
	return r
}

// scored is a record with its cosine distance to a query.
type scored struct {
	record
	distance float32
}

func (r *QueryResult) appendRow(hits []scored) {
	ids := make([]string, 0, len(hits))
	docs := make([]*string, 0, len(hits))
	metas := make([]map[string]any, 0, len(hits))
	embs := make([][]float32, 0, len(hits))
	dists := make([]float32, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
		docs = append(docs, h.Document)
		metas = append(metas, h.Metadata)
		embs = append(embs, h.Embedding)
		dists = append(dists, h.distance)
	}
	r.IDs = append(r.IDs, ids)
	if r.Documents != nil {
		r.Documents = append(r.Documents, docs)
	}
	if r.Metadatas != nil {
		r.Metadatas = append(r.Metadatas, metas)
	}
	if r.Embeddings != nil {
		r.Embeddings = append(r.Embeddings, embs)
	}
	if r.Distances != nil {
		r.Distances = append(r.Distances, dists)
	}
}

// paginate applies offset then limit; limit 0 keeps everything after offset.
func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func validateSelectors(offset, limit int, where, whereDocument map[string]any) error {
	if offset < 0 {
		return fmt.Errorf("%w: offset must be non-negative, got %d", ErrInvalidInput, offset)
	}
	if limit < 0 {
		return fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidInput, limit)
	}
	if err := ValidateWhere(where); err != nil {
		return err
	}
	return ValidateWhereDocument(whereDocument)
}

func strPtr(s string) *string { return &s }
