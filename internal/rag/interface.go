// Package rag defines the retrieval interfaces and types for the document
// question-answering pipeline: vector index storage, similarity search, and
// embedding. Concrete implementations (Qdrant, etc.) satisfy these interfaces
// so the orchestration layer never depends on a specific backend.
package rag

import (
	"context"

	"github.com/askdoc/askdoc-go/internal/chunker"
)

// Metadata is the per-record key-value set stored alongside every embedding.
// The reserved core fields are explicit struct members so lookups are typed;
// anything else travels in Extra.
type Metadata struct {
	// DocumentID is the owning document's opaque identifier.
	DocumentID string

	// ChunkIndex is the zero-based position of the chunk in its document.
	ChunkIndex int

	// Filename is the original upload filename.
	Filename string

	// FileType is the upload's file type label (e.g. "pdf", "txt").
	FileType string

	// Extra holds open key-value pairs merged from the chunk's own metadata.
	// May be nil.
	Extra map[string]string
}

// DocumentInfo carries the document-level fields merged into every record's
// metadata at upsert time.
type DocumentInfo struct {
	// Filename is the original upload filename.
	Filename string
	// FileType is the upload's file type label.
	FileType string
}

// Match is one similarity-search hit. Matches are ephemeral — produced per
// query and never persisted.
type Match struct {
	// ChunkID is the record identifier, "<document_id>_<chunk_index>".
	ChunkID string

	// Content is the stored chunk text.
	Content string

	// Metadata is the record's stored metadata.
	Metadata Metadata

	// Distance is the cosine distance to the query vector; lower is better.
	Distance float32
}

// Similarity converts the match's cosine distance to a similarity score.
// Anti-correlated vectors yield a negative similarity; the value is never
// clamped.
func (m Match) Similarity() float32 {
	return 1 - m.Distance
}

// Record is one stored embedding record returned by a bulk fetch.
type Record struct {
	// ChunkID is the record identifier, "<document_id>_<chunk_index>".
	ChunkID string

	// Content is the stored chunk text.
	Content string

	// Metadata is the record's stored metadata.
	Metadata Metadata
}

// VectorIndex is the interface for persisting and searching chunk embeddings.
// Each document's records live in their own collection, named by
// [CollectionName], and every operation additionally filters on document_id.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Upsert writes one record per chunk. The embeddings slice must be
	// parallel to chunks. Record ids are deterministic
	// ("<document_id>_<chunk_index>") so retried upserts overwrite rather
	// than duplicate.
	Upsert(ctx context.Context, documentID string, chunks []chunker.Chunk, embeddings [][]float32, info DocumentInfo) error

	// Query returns the k nearest records for the query vector, ordered by
	// ascending distance (best match first). Fewer than k are returned when
	// the collection holds fewer eligible records; a missing or empty
	// collection yields an empty slice, not an error.
	Query(ctx context.Context, documentID string, queryVector []float32, k int) ([]Match, error)

	// GetAll returns up to limit records for the document, sorted by
	// chunk_index ascending. A missing collection yields an empty slice.
	GetAll(ctx context.Context, documentID string, limit int) ([]Record, error)

	// Delete removes every record for the document. Deleting a missing
	// document or collection is not an error.
	Delete(ctx context.Context, documentID string) error

	// Close releases any resources held by the index.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice; empty input yields
	// empty output.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
