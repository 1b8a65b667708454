package documents

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = errors.New("document not found")

// Repo defines persistence operations for documents. The analysis core only
// reads text and chunks; ingestion owns the rest.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, documentID string) (Document, error)
	GetText(ctx context.Context, documentID string) (string, error)
	GetChunks(ctx context.Context, documentID string) ([]Chunk, error)
	// MarkIndexed records that the vector index was built; implementations may
	// drop the raw chunk payload at that point to bound storage.
	MarkIndexed(ctx context.Context, documentID string, at time.Time) error
}
