package vectorstore

import (
	"context"

	"compliance-backend/internal/documents"
)

// Retriever is the retrieval surface the answer engine consumes.
type Retriever interface {
	Search(ctx context.Context, documentID, query string, topK int) ([]SearchResult, error)
}

// Builder is the index-lifecycle surface the orchestrator consumes.
type Builder interface {
	Build(ctx context.Context, documentID string, chunks []documents.Chunk) bool
	Has(documentID string) bool
	Delete(ctx context.Context, documentID string) error
}
