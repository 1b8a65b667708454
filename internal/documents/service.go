package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"compliance-backend/internal/shared/telemetry"
)

// Service ingests uploaded report files: extracts per-page text, chunks it
// for indexing, and records the document. Raw file bytes are never stored;
// only the extracted text and chunks survive ingestion.
type Service struct {
	Repo Repo
}

// Ingest extracts and stores a document from an uploaded file.
func (s *Service) Ingest(ctx context.Context, fileName, mimeType string, data []byte) (Document, error) {
	pages, err := ExtractPages(ctx, data, mimeType, fileName)
	if err != nil {
		return Document{}, fmt.Errorf("extract %s: %w", fileName, err)
	}
	if len(pages) == 0 {
		return Document{}, fmt.Errorf("no readable text in %s", fileName)
	}

	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.Text)
	}
	doc := Document{
		ID:        uuid.NewString(),
		FileName:  fileName,
		MimeType:  normalizeMimeType(mimeType, fileName),
		SizeBytes: int64(len(data)),
		Text:      strings.Join(texts, "\n\n"),
		Chunks:    BuildChunks(pages),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, fmt.Errorf("store document: %w", err)
	}

	telemetry.Info("documents.ingested", map[string]any{
		"document_id": doc.ID,
		"file_name":   doc.FileName,
		"pages":       len(pages),
		"chunks":      len(doc.Chunks),
		"size_bytes":  doc.SizeBytes,
	})
	return doc, nil
}
