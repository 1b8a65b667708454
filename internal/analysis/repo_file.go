package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileRepo writes one JSON file per document under Dir, committing through a
// temp file and rename so pollers never read a torn record.
type FileRepo struct {
	Dir string
}

func NewFileRepo(dir string) (*FileRepo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &FileRepo{Dir: dir}, nil
}

func (r *FileRepo) path(documentID string) string {
	name := strings.Map(func(c rune) rune {
		switch c {
		case '/', '\\', ':':
			return '_'
		}
		return c
	}, documentID)
	return filepath.Join(r.Dir, name+".json")
}

func (r *FileRepo) Save(_ context.Context, run *AnalysisRun) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	target := r.path(run.DocumentID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func (r *FileRepo) Get(_ context.Context, documentID string) (*AnalysisRun, error) {
	data, err := os.ReadFile(r.path(documentID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	var run AnalysisRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}

var _ Repo = (*FileRepo)(nil)
