package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/store"
)

// processTimeout bounds background document processing. Large PDFs with slow
// embedding backends can take minutes; the bound exists so a hung backend
// cannot leak goroutines forever.
const processTimeout = 10 * time.Minute

// handleUpload handles POST /api/documents. The document is accepted from a
// multipart form field named "file", persisted with status "processing", and
// chunked and embedded in the background. The response returns immediately
// with the document record so clients can poll its status.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusBadRequest, "form field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := s.pipeline.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.metrics.uploadsTotal.WithLabelValues("rejected").Inc()
		log.Warn("upload rejected",
			slog.String("filename", header.Filename),
			slog.Any("error", err),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.metrics.uploadsTotal.WithLabelValues("accepted").Inc()
	s.metrics.documentsProcessing.Inc()

	// Processing runs detached from the request context so a client
	// disconnect does not abort chunking. The request logger is carried over
	// so background log lines keep the originating request_id.
	bgCtx := logging.WithLogger(context.Background(), log)
	go func() {
		bgCtx, cancel := context.WithTimeout(bgCtx, processTimeout)
		defer cancel()
		defer s.metrics.documentsProcessing.Dec()

		if err := s.pipeline.Process(bgCtx, doc); err != nil {
			s.metrics.processedTotal.WithLabelValues("failed").Inc()
			return
		}
		s.metrics.processedTotal.WithLabelValues("processed").Inc()
	}()

	writeJSON(w, http.StatusAccepted, toDocumentResponse(doc))
}

// handleListDocuments handles GET /api/documents, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		log.Error("list documents failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	resp := make([]documentResponse, 0, len(docs))
	for i := range docs {
		resp = append(resp, toDocumentResponse(&docs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetDocument handles GET /api/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logging.FromContext(r.Context()).Error("get document failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load document")
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}

// handleDeleteDocument handles DELETE /api/documents/{id}. The document's
// vectors, rows, and stored file are all removed.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.pipeline.Remove(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logging.FromContext(r.Context()).Error("delete document failed",
			slog.String("document_id", id),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// toDocumentResponse converts a stored document to its JSON representation.
func toDocumentResponse(doc *store.Document) documentResponse {
	return documentResponse{
		ID:           doc.ID,
		Filename:     doc.Filename,
		FileType:     doc.FileType,
		FileSize:     doc.FileSize,
		ChunksCount:  doc.ChunksCount,
		Status:       string(doc.Status),
		ErrorMessage: doc.ErrorMessage,
		CreatedAt:    doc.CreatedAt.UTC().Format(time.RFC3339),
	}
}
