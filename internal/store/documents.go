package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/askdoc/askdoc-go/internal/chunker"
)

// DocumentStatus tracks a document through its ingestion lifecycle.
type DocumentStatus string

const (
	// StatusProcessing means the document is uploaded but not yet indexed.
	StatusProcessing DocumentStatus = "processing"
	// StatusProcessed means the document is fully chunked and indexed.
	StatusProcessed DocumentStatus = "processed"
	// StatusFailed means ingestion failed after the record was created.
	StatusFailed DocumentStatus = "failed"
)

// Document is a persisted document record.
type Document struct {
	// ID uniquely identifies the document.
	ID string
	// Filename is the original upload filename.
	Filename string
	// FileType is the lowercased extension without the dot (e.g. "pdf").
	FileType string
	// FilePath is where the raw upload is stored on disk.
	FilePath string
	// FileSize is the upload size in bytes.
	FileSize int64
	// ChunksCount is the number of chunks produced by ingestion.
	ChunksCount int
	// Status is the ingestion lifecycle state.
	Status DocumentStatus
	// ErrorMessage explains a failed status. Empty otherwise.
	ErrorMessage string
	// CreatedAt is when the record was created.
	CreatedAt time.Time
	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time
}

// DocumentStore persists document records and their extracted chunks.
// Implementations must be safe for concurrent use.
type DocumentStore interface {
	// CreateDocument inserts a new document record in processing state.
	CreateDocument(ctx context.Context, doc *Document) error
	// GetDocument returns the document with the given ID, or ErrNotFound.
	GetDocument(ctx context.Context, id string) (*Document, error)
	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]Document, error)
	// SetDocumentProcessed marks ingestion complete with the chunk count.
	SetDocumentProcessed(ctx context.Context, id string, chunksCount int) error
	// SetDocumentFailed marks ingestion failed with a reason.
	SetDocumentFailed(ctx context.Context, id string, reason string) error
	// DeleteDocument removes the document and its chunk rows.
	DeleteDocument(ctx context.Context, id string) error
	// InsertChunks persists the chunks produced for a document.
	InsertChunks(ctx context.Context, documentID string, chunks []chunker.Chunk) error
	// ChunksByDocument returns a document's chunks ordered by chunk index.
	ChunksByDocument(ctx context.Context, documentID string) ([]chunker.Chunk, error)
}

// CreateDocument inserts a new document record in processing state.
func (s *SQLiteStore) CreateDocument(ctx context.Context, doc *Document) error {
	now := time.Now().Unix()
	const q = `
INSERT INTO documents (id, filename, file_type, file_path, file_size, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		doc.ID, doc.Filename, doc.FileType, doc.FilePath, doc.FileSize,
		string(StatusProcessing), now, now)
	if err != nil {
		return fmt.Errorf("store: create document: %w", err)
	}
	return nil
}

// GetDocument returns the document with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	const q = `
SELECT id, filename, file_type, file_path, file_size, chunks_count, status, error_message, created_at, updated_at
FROM documents WHERE id = ?`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("store: document %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]Document, error) {
	const q = `
SELECT id, filename, file_type, file_path, file_size, chunks_count, status, error_message, created_at, updated_at
FROM documents ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list documents scan: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list documents rows: %w", err)
	}
	return docs, nil
}

// SetDocumentProcessed marks ingestion complete with the chunk count.
func (s *SQLiteStore) SetDocumentProcessed(ctx context.Context, id string, chunksCount int) error {
	return s.updateStatus(ctx, id, StatusProcessed, chunksCount, "")
}

// SetDocumentFailed marks ingestion failed with a reason. The record is kept
// so the failure is visible in document listings.
func (s *SQLiteStore) SetDocumentFailed(ctx context.Context, id string, reason string) error {
	return s.updateStatus(ctx, id, StatusFailed, 0, reason)
}

func (s *SQLiteStore) updateStatus(ctx context.Context, id string, status DocumentStatus, chunksCount int, reason string) error {
	const q = `
UPDATE documents SET status = ?, chunks_count = ?, error_message = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, string(status), chunksCount, reason, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: update document status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: document %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDocument removes the document and its chunk rows. Deleting a missing
// document returns ErrNotFound.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("store: document %s: %w", id, ErrNotFound)
	}
	// The FK cascade covers chunks, but sweep explicitly in case the
	// connection was opened without foreign_keys enabled.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete document chunks: %w", err)
	}
	return nil
}

// InsertChunks persists the chunks produced for a document in one transaction.
func (s *SQLiteStore) InsertChunks(ctx context.Context, documentID string, chunks []chunker.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: insert chunks begin: %w", err)
	}
	defer tx.Rollback()

	const q = `
INSERT INTO document_chunks (document_id, chunk_index, content, start_char, end_char)
VALUES (?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: insert chunks prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, documentID, c.Index, c.Content, c.StartChar, c.EndChar); err != nil {
			return fmt.Errorf("store: insert chunk %d: %w", c.Index, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: insert chunks commit: %w", err)
	}
	return nil
}

// ChunksByDocument returns a document's chunks ordered by chunk index.
func (s *SQLiteStore) ChunksByDocument(ctx context.Context, documentID string) ([]chunker.Chunk, error) {
	const q = `
SELECT chunk_index, content, start_char, end_char
FROM document_chunks WHERE document_id = ? ORDER BY chunk_index ASC`
	rows, err := s.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, fmt.Errorf("store: chunks by document: %w", err)
	}
	defer rows.Close()

	var chunks []chunker.Chunk
	for rows.Next() {
		var c chunker.Chunk
		if err := rows.Scan(&c.Index, &c.Content, &c.StartChar, &c.EndChar); err != nil {
			return nil, fmt.Errorf("store: chunks scan: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: chunks rows: %w", err)
	}
	return chunks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var status string
	var created, updated int64
	err := row.Scan(&doc.ID, &doc.Filename, &doc.FileType, &doc.FilePath, &doc.FileSize,
		&doc.ChunksCount, &status, &doc.ErrorMessage, &created, &updated)
	if err != nil {
		return nil, err
	}
	doc.Status = DocumentStatus(status)
	doc.CreatedAt = time.Unix(created, 0)
	doc.UpdatedAt = time.Unix(updated, 0)
	return &doc, nil
}
