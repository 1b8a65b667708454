package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create stores the document row with its chunk payload as JSONB.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	chunks, err := json.Marshal(doc.Chunks)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO documents (id, file_name, mime_type, size_bytes, text, chunks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			text = EXCLUDED.text,
			chunks = EXCLUDED.chunks
	`, doc.ID, doc.FileName, doc.MimeType, doc.SizeBytes, doc.Text, chunks, doc.CreatedAt)
	return err
}

// GetByID returns a document by its ID.
func (r *PGRepo) GetByID(ctx context.Context, documentID string) (Document, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, file_name, mime_type, size_bytes, text, chunks, indexed_at, created_at
		FROM documents WHERE id = $1
	`, documentID)

	var doc Document
	var chunks []byte
	var indexedAt sql.NullTime
	err := row.Scan(&doc.ID, &doc.FileName, &doc.MimeType, &doc.SizeBytes, &doc.Text, &chunks, &indexedAt, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	if indexedAt.Valid {
		t := indexedAt.Time
		doc.IndexedAt = &t
	}
	if len(chunks) > 0 {
		if err := json.Unmarshal(chunks, &doc.Chunks); err != nil {
			return Document{}, err
		}
	}
	return doc, nil
}

// GetText returns the extracted text for a document.
func (r *PGRepo) GetText(ctx context.Context, documentID string) (string, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT text FROM documents WHERE id = $1`, documentID)
	var text string
	err := row.Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return text, err
}

// GetChunks returns the page-tagged chunks for a document.
func (r *PGRepo) GetChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT chunks FROM documents WHERE id = $1`, documentID)
	var raw []byte
	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var chunks []Chunk
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &chunks); err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// MarkIndexed records index completion and clears the raw chunk payload.
func (r *PGRepo) MarkIndexed(ctx context.Context, documentID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE documents SET indexed_at = $2, chunks = '[]'::jsonb WHERE id = $1
	`, documentID, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
