package vectorstore

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver for index persistence

	"compliance-backend/internal/documents"
	"compliance-backend/internal/embedding"
	"compliance-backend/internal/shared/telemetry"
)

const (
	embedRetries    = 3
	embedRetryDelay = 500 * time.Millisecond
	buildWorkers    = 8
)

// entry is one indexed chunk: a normalized embedding plus retrieval metadata.
type entry struct {
	vector     []float32
	text       string
	pageNumber int
	chunkIndex int
	chunkType  string
}

// SearchResult is a retrieval hit ranked by similarity. Score is cosine
// similarity, so higher is always better.
type SearchResult struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	PageNumber int     `json:"page_number"`
	ChunkIndex int     `json:"chunk_index"`
}

// Index provides brute-force vector search over per-document chunk
// embeddings. Vectors are normalized on insert so dot product equals cosine
// similarity, kept in memory for search, and persisted as SQLite BLOBs so an
// index survives a restart. One index per document; rebuilding with the same
// document id overwrites the previous index.
type Index struct {
	embedder embedding.Service
	db       *sql.DB

	mu        sync.RWMutex
	documents map[string][]entry
}

// NewIndex creates a vector index persisted at path. An empty path keeps the
// index memory-only, which the tests rely on.
func NewIndex(path string, embedder embedding.Service) (*Index, error) {
	idx := &Index{
		embedder:  embedder,
		documents: make(map[string][]entry),
	}
	if path == "" {
		return idx, nil
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore open: %w", err)
	}
	idx.db = db
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore migrate: %w", err)
	}
	if err := idx.loadAll(); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorstore load: %w", err)
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS vectors (
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			page_number INTEGER NOT NULL,
			chunk_type  TEXT NOT NULL,
			text        TEXT NOT NULL,
			embedding   BLOB NOT NULL,
			dimensions  INTEGER NOT NULL,
			PRIMARY KEY (document_id, chunk_index)
		)
	`)
	return err
}

func (idx *Index) loadAll() error {
	rows, err := idx.db.Query(`SELECT document_id, chunk_index, page_number, chunk_type, text, embedding, dimensions FROM vectors`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var docID, chunkType, text string
		var chunkIndex, pageNumber, dims int
		var blob []byte
		if err := rows.Scan(&docID, &chunkIndex, &pageNumber, &chunkType, &text, &blob, &dims); err != nil {
			return err
		}
		idx.documents[docID] = append(idx.documents[docID], entry{
			vector:     blobToFloat32(blob, dims),
			text:       text,
			pageNumber: pageNumber,
			chunkIndex: chunkIndex,
			chunkType:  chunkType,
		})
	}
	return rows.Err()
}

// Build embeds the given chunks and assembles the index for documentID,
// replacing any previous index for that document. Chunks whose embedding call
// fails after retries are dropped rather than aborting the build. Returns
// false only when no chunk produced a valid embedding.
func (idx *Index) Build(ctx context.Context, documentID string, chunks []documents.Chunk) bool {
	if len(chunks) == 0 {
		return false
	}

	type result struct {
		pos    int
		vector []float32
	}

	jobs := make(chan int)
	results := make(chan result, len(chunks))
	var wg sync.WaitGroup

	workers := buildWorkers
	if workers > len(chunks) {
		workers = len(chunks)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range jobs {
				vector, err := idx.embedChunk(ctx, chunks[pos].Text)
				if err != nil {
					telemetry.Warn("vectorstore.chunk_dropped", map[string]any{
						"document_id": documentID,
						"chunk_index": chunks[pos].ChunkIndex,
						"error":       err.Error(),
					})
					continue
				}
				results <- result{pos: pos, vector: vector}
			}
		}()
	}

	for pos := range chunks {
		jobs <- pos
	}
	close(jobs)
	wg.Wait()
	close(results)

	entries := make([]entry, 0, len(chunks))
	for res := range results {
		chunk := chunks[res.pos]
		entries = append(entries, entry{
			vector:     normalize(res.vector),
			text:       chunk.Text,
			pageNumber: chunk.PageNumber,
			chunkIndex: chunk.ChunkIndex,
			chunkType:  chunk.ChunkType,
		})
	}
	if len(entries) == 0 {
		telemetry.Error("vectorstore.build", map[string]any{
			"document_id": documentID,
			"error":       "no chunk produced a valid embedding",
		})
		return false
	}

	idx.mu.Lock()
	idx.documents[documentID] = entries
	idx.mu.Unlock()

	if err := idx.persist(ctx, documentID, entries); err != nil {
		telemetry.Warn("vectorstore.persist", map[string]any{
			"document_id": documentID,
			"error":       err.Error(),
		})
	}

	telemetry.Info("vectorstore.build", map[string]any{
		"document_id":    documentID,
		"chunks_total":   len(chunks),
		"chunks_indexed": len(entries),
	})
	return true
}

func (idx *Index) embedChunk(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt < embedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(embedRetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		vector, err := idx.embedder.Embed(ctx, text)
		if err == nil && len(vector) > 0 {
			return vector, nil
		}
		if err == nil {
			err = fmt.Errorf("empty embedding")
		}
		lastErr = err
	}
	return nil, lastErr
}

func (idx *Index) persist(ctx context.Context, documentID string, entries []entry) error {
	if idx.db == nil {
		return nil
	}
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE document_id = ?`, documentID); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vectors (document_id, chunk_index, page_number, chunk_type, text, embedding, dimensions)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, documentID, e.chunkIndex, e.pageNumber, e.chunkType, e.text, float32ToBlob(e.vector), len(e.vector)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Search returns the top-K chunks for documentID ranked by cosine similarity
// to the query. A missing index yields an empty result, not an error: callers
// treat that as "no evidence available."
func (idx *Index) Search(ctx context.Context, documentID, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}

	idx.mu.RLock()
	entries, ok := idx.documents[documentID]
	idx.mu.RUnlock()
	if !ok || len(entries) == 0 {
		return nil, nil
	}

	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	normalizedQuery := normalize(queryVec)

	h := &minHeap{}
	heap.Init(h)
	for i := range entries {
		if len(entries[i].vector) != len(normalizedQuery) {
			continue
		}
		score := dotProduct(normalizedQuery, entries[i].vector)
		if h.Len() < topK {
			heap.Push(h, scored{score: score, pos: i})
		} else if score > (*h)[0].score {
			(*h)[0] = scored{score: score, pos: i}
			heap.Fix(h, 0)
		}
	}

	results := make([]SearchResult, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		item := heap.Pop(h).(scored)
		e := entries[item.pos]
		results[i] = SearchResult{
			Text:       e.text,
			Score:      item.score,
			PageNumber: e.pageNumber,
			ChunkIndex: e.chunkIndex,
		}
	}
	return results, nil
}

// Has reports whether an index exists for documentID.
func (idx *Index) Has(documentID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.documents[documentID]
	return ok
}

// Delete removes the index for documentID from memory and disk.
func (idx *Index) Delete(ctx context.Context, documentID string) error {
	idx.mu.Lock()
	delete(idx.documents, documentID)
	idx.mu.Unlock()

	if idx.db == nil {
		return nil
	}
	_, err := idx.db.ExecContext(ctx, `DELETE FROM vectors WHERE document_id = ?`, documentID)
	return err
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	if idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

type scored struct {
	score float64
	pos   int
}

type minHeap []scored

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].score < h[j].score }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)         { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() any           { old := *h; n := len(old); item := old[n-1]; *h = old[:n-1]; return item }

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func float32ToBlob(vec []float32) []byte {
	blob := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func blobToFloat32(blob []byte, dims int) []float32 {
	vec := make([]float32, dims)
	for i := 0; i < dims && i*4+4 <= len(blob); i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
