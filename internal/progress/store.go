package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no progress exists for a document.
var ErrNotFound = errors.New("progress not found")

// Store persists progress snapshots keyed by document id.
type Store interface {
	Save(documentID string, snapshot *AnalysisProgress) error
	Load(documentID string) (*AnalysisProgress, error)
	Delete(documentID string) error
}

// FileStore writes one JSON file per document under Dir. Saves go through a
// temp file and rename so a crash mid-write never leaves a torn snapshot.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(documentID string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, documentID)
	return filepath.Join(s.Dir, name+".json")
}

func (s *FileStore) Save(documentID string, snapshot *AnalysisProgress) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	target := s.path(documentID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit progress: %w", err)
	}
	return nil
}

func (s *FileStore) Load(documentID string) (*AnalysisProgress, error) {
	data, err := os.ReadFile(s.path(documentID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read progress: %w", err)
	}
	var snapshot AnalysisProgress
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &snapshot, nil
}

func (s *FileStore) Delete(documentID string) error {
	err := os.Remove(s.path(documentID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

// MemoryStore keeps snapshots in a map for tests and DB-less deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

func (s *MemoryStore) Save(documentID string, snapshot *AnalysisProgress) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[documentID] = data
	return nil
}

func (s *MemoryStore) Load(documentID string) (*AnalysisProgress, error) {
	s.mu.RLock()
	data, ok := s.snapshots[documentID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var snapshot AnalysisProgress
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *MemoryStore) Delete(documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, documentID)
	return nil
}
