// Package vectorstore provides the collection and record store behind the MCP tools.
//
// A Client manages named collections and a Collection manages records, each
// an id with an optional document, optional metadata and an embedding. Four
// backends implement the same interfaces:
//   - ChromaClient talks to a Chroma server or Chroma Cloud through chroma-go's v2 HTTP client
//   - ChromemClient embeds chromem-go, in memory or persisted to disk
//   - QdrantClient talks to Qdrant over gRPC with native filter translation
//
// Embeddings are computed client-side through the Embedder interface, so every
// backend sees the same vectors for the same text.
//
// # Filters
//
// Metadata filters (where) support $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin,
// $and and $or. A bare value means $eq. Document filters (where_document)
// support $contains, $not_contains, $and and $or. ValidateWhere and
// ValidateWhereDocument reject malformed clauses with ErrInvalidInput.
//
// # Usage
//
//	client, err := vectorstore.NewClient(ctx, cfg, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	col, err := client.GetOrCreateCollection(ctx, "notes", nil)
//	err = col.Add(ctx, vectorstore.AddRequest{
//	    IDs:       []string{"a"},
//	    Documents: []string{"hello world"},
//	})
//	res, err := col.Query(ctx, vectorstore.QueryRequest{
//	    QueryTexts: []string{"hello"},
//	    NResults:   5,
//	})
//
// Handle builds a client lazily and shares it between callers. Instrument
// adds OpenTelemetry spans and Prometheus metrics to any Client.
package vectorstore
