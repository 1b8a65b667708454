package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileRepo loads checklists from JSON files laid out as
// <dir>/<framework>/<standard>.json.
type FileRepo struct {
	Dir string
}

// NewFileRepo constructs a FileRepo rooted at dir.
func NewFileRepo(dir string) *FileRepo {
	return &FileRepo{Dir: dir}
}

// Load reads and parses the checklist file for the given framework/standard.
func (r *FileRepo) Load(ctx context.Context, framework, standard string) (Checklist, error) {
	if err := ctx.Err(); err != nil {
		return Checklist{}, err
	}
	framework = sanitizeName(framework)
	standard = sanitizeName(standard)
	if framework == "" || standard == "" {
		return Checklist{}, fmt.Errorf("framework and standard are required")
	}

	path := filepath.Join(r.Dir, framework, standard+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checklist{}, fmt.Errorf("checklist %s/%s: %w", framework, standard, ErrNotFound)
		}
		return Checklist{}, fmt.Errorf("checklist %s/%s: %w", framework, standard, err)
	}

	var cl Checklist
	if err := json.Unmarshal(data, &cl); err != nil {
		return Checklist{}, fmt.Errorf("checklist %s/%s: parse: %w", framework, standard, err)
	}
	if cl.Sections == nil {
		return Checklist{}, fmt.Errorf("checklist %s/%s: missing sections", framework, standard)
	}
	cl.Framework = framework
	cl.Standard = standard
	return cl, nil
}

// sanitizeName strips path separators so a standard id can't escape the checklist dir.
func sanitizeName(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, "/", "")
	raw = strings.ReplaceAll(raw, "\\", "")
	return strings.ReplaceAll(raw, "..", "")
}
