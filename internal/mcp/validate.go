package mcp

// Validation rules run before any store call. Each returns nil or an
// InvalidArgument *ToolError with a stable message.

func validateNonEmptyIDs(ids []string) error {
	if len(ids) == 0 {
		return invalidArgument("The 'ids' list cannot be empty.")
	}
	return nil
}

func validateNonEmptyDocuments(documents []string) error {
	if len(documents) == 0 {
		return invalidArgument("The 'documents' list cannot be empty.")
	}
	return nil
}

func validateCollectionName(name string) error {
	if name == "" {
		return invalidArgument("Collection name cannot be empty")
	}
	return nil
}

// validateUpdateFields requires at least one field besides ids.
func validateUpdateFields(embeddings [][]float32, metadatas []map[string]any, documents []string) error {
	if embeddings == nil && metadatas == nil && documents == nil {
		return invalidArgument("At least one of 'embeddings', 'metadatas', or 'documents' must be provided")
	}
	return nil
}

// validateDeleteSelector requires ids or filters, never both.
func validateDeleteSelector(ids []string, where, whereDocument map[string]any) error {
	hasFilter := len(where) > 0 || len(whereDocument) > 0
	switch {
	case len(ids) > 0 && hasFilter:
		return invalidArgument("Cannot provide both 'ids' and filtering conditions")
	case len(ids) == 0 && !hasFilter:
		return invalidArgument("No deletion criteria provided")
	}
	return nil
}

// validateAligned checks a present parallel list has one entry per id.
func validateAligned(ids []string, name string, n int, present bool) error {
	if present && n != len(ids) {
		return invalidArgument("Length of '%s' (%d) must match length of 'ids' (%d)", name, n, len(ids))
	}
	return nil
}

func validateUniqueIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return invalidArgument("Duplicate id '%s' in 'ids'", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// validateDocumentSet applies alignment and uniqueness to a document set.
func validateDocumentSet(ids []string, documents []string, metadatas []map[string]any, embeddings [][]float32) error {
	if err := validateAligned(ids, "documents", len(documents), documents != nil); err != nil {
		return err
	}
	if err := validateAligned(ids, "metadatas", len(metadatas), metadatas != nil); err != nil {
		return err
	}
	if err := validateAligned(ids, "embeddings", len(embeddings), embeddings != nil); err != nil {
		return err
	}
	return validateUniqueIDs(ids)
}
