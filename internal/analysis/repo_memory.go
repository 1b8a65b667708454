package analysis

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryRepo keeps run records in a map. Records are stored as encoded JSON
// so readers never observe a snapshot mid-mutation.
type MemoryRepo struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{runs: make(map[string][]byte)}
}

func (r *MemoryRepo) Save(_ context.Context, run *AnalysisRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.DocumentID] = data
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, documentID string) (*AnalysisRun, error) {
	r.mu.RLock()
	data, ok := r.runs[documentID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	var run AnalysisRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

var _ Repo = (*MemoryRepo)(nil)
