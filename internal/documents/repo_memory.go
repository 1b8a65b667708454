package documents

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo stores documents in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Document)}
}

// Create stores the document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[doc.ID] = doc
	return nil
}

// GetByID returns a document by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// GetText returns the extracted text for a document.
func (r *MemoryRepo) GetText(ctx context.Context, documentID string) (string, error) {
	doc, err := r.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	return doc.Text, nil
}

// GetChunks returns the page-tagged chunks for a document.
func (r *MemoryRepo) GetChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	doc, err := r.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return doc.Chunks, nil
}

// MarkIndexed records index completion and drops the raw chunk payload.
func (r *MemoryRepo) MarkIndexed(ctx context.Context, documentID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.byID[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.IndexedAt = &at
	doc.Chunks = nil
	r.byID[documentID] = doc
	return nil
}
