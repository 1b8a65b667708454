package checklist

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no checklist exists for a framework/standard pair.
var ErrNotFound = errors.New("checklist not found")

// Repository loads checklist question sets. Checklists are externally owned
// and read-only to the analysis core.
type Repository interface {
	Load(ctx context.Context, framework, standard string) (Checklist, error)
}
