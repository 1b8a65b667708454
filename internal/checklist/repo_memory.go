package checklist

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepo holds checklists in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Checklist
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Checklist)}
}

// Put stores a checklist for the given framework/standard.
func (r *MemoryRepo) Put(framework, standard string, cl Checklist) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cl.Framework = framework
	cl.Standard = standard
	r.byID[framework+"/"+standard] = cl
}

// Load returns the stored checklist or ErrNotFound.
func (r *MemoryRepo) Load(ctx context.Context, framework, standard string) (Checklist, error) {
	if err := ctx.Err(); err != nil {
		return Checklist{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cl, ok := r.byID[framework+"/"+standard]
	if !ok {
		return Checklist{}, fmt.Errorf("checklist %s/%s: %w", framework, standard, ErrNotFound)
	}
	return cl, nil
}
