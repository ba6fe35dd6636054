// Package ingestion runs the document upload pipeline: save the raw file,
// extract its text, chunk it, persist the chunks, embed them, and index the
// vectors. A document that fails anywhere after its record is created ends in
// failed state with the reason recorded, never in limbo.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc-go/internal/chunker"
	"github.com/askdoc/askdoc-go/internal/extract"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/rag"
	"github.com/askdoc/askdoc-go/internal/store"
)

// Pipeline coordinates the upload-to-index flow. Safe for concurrent use;
// distinct documents can be ingested in parallel.
type Pipeline struct {
	// store persists document records and chunk rows.
	store *store.SQLiteStore
	// embedder converts chunk text to vectors.
	embedder rag.Embedder
	// index receives the embedded chunks.
	index rag.VectorIndex
	// uploadDir is where raw uploads are kept.
	uploadDir string
	// chunkSize is the target chunk length in characters.
	chunkSize int
	// overlap is the character overlap between consecutive chunks.
	overlap int
}

// Config holds the settings for constructing a Pipeline.
type Config struct {
	// Store persists document records and chunk rows. Required.
	Store *store.SQLiteStore
	// Embedder converts chunk text to vectors. Required.
	Embedder rag.Embedder
	// Index receives the embedded chunks. Required.
	Index rag.VectorIndex
	// UploadDir is where raw uploads are kept. Defaults to "./uploads".
	UploadDir string
	// ChunkSize is the target chunk length. Defaults to chunker.DefaultChunkSize.
	ChunkSize int
	// Overlap is the inter-chunk overlap. Defaults to chunker.DefaultOverlap.
	Overlap int
}

// NewPipeline constructs a Pipeline, filling in defaults for unset fields.
func NewPipeline(cfg *Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ingestion: store is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("ingestion: vector index is required")
	}
	uploadDir := cfg.UploadDir
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultChunkSize
	}
	overlap := cfg.Overlap
	if overlap < 0 {
		overlap = chunker.DefaultOverlap
	}
	return &Pipeline{
		store:     cfg.Store,
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		uploadDir: uploadDir,
		chunkSize: chunkSize,
		overlap:   overlap,
	}, nil
}

// Upload validates and saves an uploaded file and creates its document record
// in processing state. It does NOT index the document; call Process next,
// typically from a background goroutine so the upload response returns fast.
func (p *Pipeline) Upload(ctx context.Context, filename string, r io.Reader) (*store.Document, error) {
	fileType, err := extract.FileType(filename)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.uploadDir, 0o700); err != nil {
		return nil, fmt.Errorf("ingestion: create upload dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(p.uploadDir, id+"."+fileType)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: save upload: %w", err)
	}
	size, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("ingestion: save upload: %w", err)
	}

	doc := &store.Document{
		ID:       id,
		Filename: filepath.Base(filename),
		FileType: fileType,
		FilePath: path,
		FileSize: size,
		Status:   store.StatusProcessing,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return doc, nil
}

// Process runs extraction, chunking, embedding, and indexing for an uploaded
// document. On success the document becomes processed; on any failure it
// becomes failed with the reason recorded, and the error is also returned.
func (p *Pipeline) Process(ctx context.Context, doc *store.Document) error {
	log := logging.FromContext(ctx).With(
		slog.String("document_id", doc.ID),
		slog.String("filename", doc.Filename),
	)
	started := time.Now()

	chunks, err := p.process(ctx, doc)
	if err != nil {
		log.Error("document ingestion failed", slog.String("error", err.Error()))
		if failErr := p.store.SetDocumentFailed(ctx, doc.ID, err.Error()); failErr != nil {
			log.Error("could not record ingestion failure", slog.String("error", failErr.Error()))
		}
		return err
	}

	if err := p.store.SetDocumentProcessed(ctx, doc.ID, len(chunks)); err != nil {
		return err
	}
	log.Info("document ingested",
		slog.Int("chunks", len(chunks)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (p *Pipeline) process(ctx context.Context, doc *store.Document) ([]chunker.Chunk, error) {
	text, err := extract.Text(doc.FilePath, doc.FileType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("ingestion: document %s contains no extractable text", doc.Filename)
	}

	chunks := chunker.Split(text, p.chunkSize, p.overlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("ingestion: document %s produced no chunks", doc.Filename)
	}

	if err := p.store.InsertChunks(ctx, doc.ID, chunks); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingestion: embed chunks: %w", err)
	}

	info := rag.DocumentInfo{Filename: doc.Filename, FileType: doc.FileType}
	if err := p.index.Upsert(ctx, doc.ID, chunks, embeddings, info); err != nil {
		return nil, fmt.Errorf("ingestion: index chunks: %w", err)
	}
	return chunks, nil
}

// Remove deletes a document everywhere: vector index, database record and
// chunk rows, and the raw upload file. Index and file cleanup failures are
// logged but do not block the database delete.
func (p *Pipeline) Remove(ctx context.Context, id string) error {
	log := logging.FromContext(ctx).With(slog.String("document_id", id))

	doc, err := p.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	if err := p.index.Delete(ctx, id); err != nil {
		log.Warn("vector index cleanup failed", slog.String("error", err.Error()))
	}
	if err := p.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		log.Warn("upload file cleanup failed", slog.String("error", err.Error()))
	}
	log.Info("document removed")
	return nil
}
