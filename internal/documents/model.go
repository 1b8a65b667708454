package documents

import "time"

// Chunk types distinguish front-matter (entity name, report metadata) from body content.
const (
	ChunkTypeMetadata = "metadata"
	ChunkTypeContent  = "content"
)

// Chunk is a bounded slice of document text with page/position metadata.
// Chunks are immutable once created.
type Chunk struct {
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkType  string `json:"chunk_type"`
}

// Document represents an ingested financial report.
type Document struct {
	ID        string     `json:"id"`
	FileName  string     `json:"fileName"`
	MimeType  string     `json:"mimeType"`
	SizeBytes int64      `json:"sizeBytes"`
	Text      string     `json:"-"`
	Chunks    []Chunk    `json:"-"`
	IndexedAt *time.Time `json:"indexedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
