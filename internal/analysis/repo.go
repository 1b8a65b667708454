package analysis

import (
	"context"
	"errors"
)

// ErrRunNotFound is returned when no run record exists for a document.
var ErrRunNotFound = errors.New("analysis run not found")

// Repo persists AnalysisRun records keyed by document id. Each save
// overwrites the whole record so pollers always read a consistent snapshot.
type Repo interface {
	Save(ctx context.Context, run *AnalysisRun) error
	Get(ctx context.Context, documentID string) (*AnalysisRun, error)
}
