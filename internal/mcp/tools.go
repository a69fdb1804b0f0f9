package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/chroma-mcp/internal/vectorstore"
)

// Default include lists, as JSON schema defaults.
const (
	defaultGetInclude   = `["documents","metadatas"]`
	defaultQueryInclude = `["documents","metadatas","distances"]`
)

type listCollectionsInput struct {
	Limit  int `json:"limit,omitempty" jsonschema:"Maximum number of collections to return"`
	Offset int `json:"offset,omitempty" jsonschema:"Number of collections to skip"`
}

type createCollectionInput struct {
	CollectionName string         `json:"collection_name" jsonschema:"Name of the collection to create"`
	Metadata       map[string]any `json:"metadata,omitempty" jsonschema:"Optional collection metadata"`
}

type collectionInput struct {
	CollectionName string `json:"collection_name" jsonschema:"Name of the collection"`
}

type peekCollectionInput struct {
	CollectionName string `json:"collection_name" jsonschema:"Name of the collection to peek into"`
	Limit          int    `json:"limit,omitempty" jsonschema:"Number of documents to return"`
}

type addDocumentsInput struct {
	CollectionName string           `json:"collection_name" jsonschema:"Name of the collection to add documents to"`
	Documents      []string         `json:"documents" jsonschema:"Document texts to add"`
	IDs            []string         `json:"ids,omitempty" jsonschema:"Document ids; generated when omitted"`
	Metadatas      []map[string]any `json:"metadatas,omitempty" jsonschema:"Metadata per document"`
	Embeddings     [][]float32      `json:"embeddings,omitempty" jsonschema:"Precomputed embedding per document"`
}

type getDocumentsInput struct {
	CollectionName string         `json:"collection_name" jsonschema:"Name of the collection to read from"`
	IDs            []string       `json:"ids,omitempty" jsonschema:"Document ids to fetch"`
	Where          map[string]any `json:"where,omitempty" jsonschema:"Metadata filter"`
	WhereDocument  map[string]any `json:"where_document,omitempty" jsonschema:"Document text filter"`
	Include        []string       `json:"include,omitempty" jsonschema:"Fields to include: documents, metadatas, embeddings"`
	Limit          int            `json:"limit,omitempty" jsonschema:"Maximum number of documents to return"`
	Offset         int            `json:"offset,omitempty" jsonschema:"Number of documents to skip"`
}

type updateDocumentsInput struct {
	CollectionName string           `json:"collection_name" jsonschema:"Name of the collection to update"`
	IDs            []string         `json:"ids" jsonschema:"Ids of the documents to update"`
	Embeddings     [][]float32      `json:"embeddings,omitempty" jsonschema:"New embedding per id"`
	Metadatas      []map[string]any `json:"metadatas,omitempty" jsonschema:"Metadata to merge per id"`
	Documents      []string         `json:"documents,omitempty" jsonschema:"New document text per id"`
}

type deleteDocumentsInput struct {
	CollectionName string         `json:"collection_name" jsonschema:"Name of the collection to delete from"`
	IDs            []string       `json:"ids,omitempty" jsonschema:"Ids of the documents to delete"`
	Where          map[string]any `json:"where,omitempty" jsonschema:"Metadata filter selecting documents to delete"`
	WhereDocument  map[string]any `json:"where_document,omitempty" jsonschema:"Document text filter selecting documents to delete"`
}

type queryDocumentsInput struct {
	CollectionName  string         `json:"collection_name" jsonschema:"Name of the collection to query"`
	QueryTexts      []string       `json:"query_texts,omitempty" jsonschema:"Texts to search for"`
	QueryEmbeddings [][]float32    `json:"query_embeddings,omitempty" jsonschema:"Embeddings to search for"`
	NResults        int            `json:"n_results,omitempty" jsonschema:"Number of results per query"`
	Where           map[string]any `json:"where,omitempty" jsonschema:"Metadata filter"`
	WhereDocument   map[string]any `json:"where_document,omitempty" jsonschema:"Document text filter"`
	Include         []string       `json:"include,omitempty" jsonschema:"Fields to include: documents, metadatas, embeddings, distances"`
}

type collectionInfo struct {
	Name            string                 `json:"name"`
	Count           int                    `json:"count"`
	Metadata        map[string]any         `json:"metadata"`
	SampleDocuments *vectorstore.GetResult `json:"sample_documents"`
}

// toolset implements the chroma tools against a shared client handle.
type toolset struct {
	store *vectorstore.Handle
}

func (ts *toolset) tools() []*Tool {
	return []*Tool{
		newTool("chroma_list_collections",
			"List all collection names in the Chroma database with pagination support.",
			CategoryCollection, []string{"list", "collections"}, nil, ts.listCollections),
		newTool("chroma_create_collection",
			"Create a new Chroma collection with optional metadata.",
			CategoryCollection, []string{"create", "new"}, nil, ts.createCollection),
		newTool("chroma_peek_collection",
			"Peek at the first documents in a Chroma collection.",
			CategoryCollection, []string{"sample", "preview"}, map[string]string{"limit": "5"}, ts.peekCollection),
		newTool("chroma_get_collection_info",
			"Get the name, document count, metadata and a sample of documents of a Chroma collection.",
			CategoryCollection, []string{"describe", "details"}, nil, ts.getCollectionInfo),
		newTool("chroma_get_collection_count",
			"Get the number of documents in a Chroma collection.",
			CategoryCollection, []string{"size", "total"}, nil, ts.getCollectionCount),
		newTool("chroma_delete_collection",
			"Delete a Chroma collection and all of its documents.",
			CategoryCollection, []string{"drop", "remove"}, nil, ts.deleteCollection),
		newTool("chroma_add_documents",
			"Add documents to a Chroma collection, creating it if needed.",
			CategoryDocument, []string{"insert", "index", "write"}, nil, ts.addDocuments),
		newTool("chroma_get_documents",
			"Get documents from a Chroma collection by ids or filters.",
			CategoryDocument, []string{"fetch", "read", "filter"}, map[string]string{"include": defaultGetInclude}, ts.getDocuments),
		newTool("chroma_update_documents",
			"Update the documents, metadata or embeddings of existing documents in a Chroma collection.",
			CategoryDocument, []string{"modify", "edit"}, nil, ts.updateDocuments),
		newTool("chroma_delete_documents",
			"Delete documents from a Chroma collection by ids or filters.",
			CategoryDocument, []string{"remove"}, nil, ts.deleteDocuments),
		newTool("chroma_query_documents",
			"Query documents in a Chroma collection by semantic similarity with optional filters.",
			CategoryDocument, []string{"search", "similarity", "semantic", "nearest"},
			map[string]string{"n_results": "5", "include": defaultQueryInclude}, ts.queryDocuments),
	}
}

func (ts *toolset) client(ctx context.Context) (vectorstore.Client, error) {
	c, err := ts.store.Get(ctx)
	if err != nil {
		return nil, storeError(err, "Failed to initialize store client")
	}
	return c, nil
}

func (ts *toolset) collection(ctx context.Context, name string) (vectorstore.Collection, error) {
	c, err := ts.client(ctx)
	if err != nil {
		return nil, err
	}
	col, err := c.GetCollection(ctx, name)
	if err != nil {
		return nil, storeError(err, "Failed to get collection '%s'", name)
	}
	return col, nil
}

func jsonText(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(raw), nil
}

func toIncludes(in []string) []vectorstore.Include {
	out := make([]vectorstore.Include, len(in))
	for i, s := range in {
		out[i] = vectorstore.Include(s)
	}
	return out
}

func (ts *toolset) listCollections(ctx context.Context, in listCollectionsInput) (string, error) {
	c, err := ts.client(ctx)
	if err != nil {
		return "", err
	}
	names, err := c.ListCollections(ctx, in.Limit, in.Offset)
	if err != nil {
		return "", storeError(err, "Failed to list collections")
	}
	if names == nil {
		names = []string{}
	}
	return jsonText(names)
}

func (ts *toolset) createCollection(ctx context.Context, in createCollectionInput) (string, error) {
	if err := validateCollectionName(in.CollectionName); err != nil {
		return "", err
	}
	c, err := ts.client(ctx)
	if err != nil {
		return "", err
	}
	if _, err := c.CreateCollection(ctx, in.CollectionName, in.Metadata); err != nil {
		return "", storeError(err, "Failed to create collection '%s'", in.CollectionName)
	}
	return fmt.Sprintf("Successfully created collection '%s'", in.CollectionName), nil
}

func (ts *toolset) peekCollection(ctx context.Context, in peekCollectionInput) (string, error) {
	col, err := ts.collection(ctx, in.CollectionName)
	if err != nil {
		return "", err
	}
	res, err := col.Peek(ctx, in.Limit)
	if err != nil {
		return "", storeError(err, "Failed to peek collection '%s'", in.CollectionName)
	}
	return jsonText(res)
}

func (ts *toolset) getCollectionInfo(ctx context.Context, in collectionInput) (string, error) {
	col, err := ts.collection(ctx, in.CollectionName)
	if err != nil {
		return "", err
	}
	count, err := col.Count(ctx)
	if err != nil {
		return "", storeError(err, "Failed to count collection '%s'", in.CollectionName)
	}
	sample, err := col.Peek(ctx, 3)
	if err != nil {
		return "", storeError(err, "Failed to peek collection '%s'", in.CollectionName)
	}
	return jsonText(collectionInfo{
		Name:            col.Name(),
		Count:           count,
		Metadata:        col.Metadata(),
		SampleDocuments: sample,
	})
}

func (ts *toolset) getCollectionCount(ctx context.Context, in collectionInput) (string, error) {
	col, err := ts.collection(ctx, in.CollectionName)
	if err != nil {
		return "", err
	}
	count, err := col.Count(ctx)
	if err != nil {
		return "", storeError(err, "Failed to count collection '%s'", in.CollectionName)
	}
	return strconv.Itoa(count), nil
}

func (ts *toolset) deleteCollection(ctx context.Context, in collectionInput) (string, error) {
	c, err := ts.client(ctx)
	if err != nil {
		return "", err
	}
	if _, err := c.GetCollection(ctx, in.CollectionName); err != nil {
		return "", storeError(err, "Failed to get collection '%s'", in.CollectionName)
	}
	if err := c.DeleteCollection(ctx, in.CollectionName); err != nil {
		return "", storeError(err, "Failed to delete collection '%s'", in.CollectionName)
	}
	return fmt.Sprintf("Successfully deleted collection '%s'", in.CollectionName), nil
}

func (ts *toolset) addDocuments(ctx context.Context, in addDocumentsInput) (string, error) {
	if err := validateNonEmptyDocuments(in.Documents); err != nil {
		return "", err
	}
	ids := in.IDs
	if ids == nil {
		ids = make([]string, len(in.Documents))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	} else if err := validateNonEmptyIDs(ids); err != nil {
		return "", err
	}
	if err := validateDocumentSet(ids, in.Documents, in.Metadatas, in.Embeddings); err != nil {
		return "", err
	}

	c, err := ts.client(ctx)
	if err != nil {
		return "", err
	}
	col, err := c.GetOrCreateCollection(ctx, in.CollectionName, nil)
	if err != nil {
		return "", storeError(err, "Failed to get or create collection '%s'", in.CollectionName)
	}
	err = col.Add(ctx, vectorstore.AddRequest{
		IDs:        ids,
		Documents:  in.Documents,
		Metadatas:  in.Metadatas,
		Embeddings: in.Embeddings,
	})
	if err != nil {
		return "", storeError(err, "Failed to add documents to collection '%s'", in.CollectionName)
	}
	return fmt.Sprintf("Successfully added %d documents to collection '%s'", len(ids), in.CollectionName), nil
}

func (ts *toolset) getDocuments(ctx context.Context, in getDocumentsInput) (string, error) {
	col, err := ts.collection(ctx, in.CollectionName)
	if err != nil {
		return "", err
	}
	res, err := col.Get(ctx, vectorstore.GetRequest{
		IDs:           in.IDs,
		Where:         in.Where,
		WhereDocument: in.WhereDocument,
		Include:       toIncludes(in.Include),
		Limit:         in.Limit,
		Offset:        in.Offset,
	})
	if err != nil {
		return "", storeError(err, "Failed to get documents from collection '%s'", in.CollectionName)
	}
	return jsonText(res)
}

// updateDocuments never checks that ids exist; the store skips missing ones.
func (ts *toolset) updateDocuments(ctx context.Context, in updateDocumentsInput) (string, error) {
	if err := validateNonEmptyIDs(in.IDs); err != nil {
		return "", err
	}
	if err := validateUpdateFields(in.Embeddings, in.Metadatas, in.Documents); err != nil {
		return "", err
	}
	if err := validateDocumentSet(in.IDs, in.Documents, in.Metadatas, in.Embeddings); err != nil {
		return "", err
	}

	col, err := ts.collection(ctx, in.CollectionName)
	if err != nil {
		return "", err
	}
	err = col.Update(ctx, vectorstore.UpdateRequest{
		IDs:        in.IDs,
		Documents:  in.Documents,
		Metadatas:  in.Metadatas,
		Embeddings: in.Embeddings,
	})
	if err != nil {
		return "", storeError(err, "Failed to update documents in collection '%s'", in.CollectionName)
	}
	return fmt.Sprintf("Successfully processed update request for %d documents", len(in.IDs)), nil
}

func (ts *toolset) deleteDocuments(ctx context.Context, in deleteDocumentsInput) (string, error) {
	if err := validateDeleteSelector(in.IDs, in.Where, in.WhereDocument); err != nil {
		return "", err
	}
	col, err := ts.collection(ctx, in.CollectionName)
	if err != nil {
		return "", err
	}
	err = col.Delete(ctx, vectorstore.DeleteRequest{
		IDs:           in.IDs,
		Where:         in.Where,
		WhereDocument: in.WhereDocument,
	})
	if err != nil {
		return "", storeError(err, "Failed to delete documents from collection '%s'", in.CollectionName)
	}
	return fmt.Sprintf("Successfully processed delete request for collection '%s'", in.CollectionName), nil
}

// queryDocuments leaves query_texts/query_embeddings checks to the store.
func (ts *toolset) queryDocuments(ctx context.Context, in queryDocumentsInput) (string, error) {
	col, err := ts.collection(ctx, in.CollectionName)
	if err != nil {
		return "", err
	}
	res, err := col.Query(ctx, vectorstore.QueryRequest{
		QueryTexts:      in.QueryTexts,
		QueryEmbeddings: in.QueryEmbeddings,
		NResults:        in.NResults,
		Where:           in.Where,
		WhereDocument:   in.WhereDocument,
		Include:         toIncludes(in.Include),
	})
	if err != nil {
		return "", storeError(err, "Failed to query documents from collection '%s'", in.CollectionName)
	}
	return jsonText(res)
}
