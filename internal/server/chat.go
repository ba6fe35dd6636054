package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc-go/internal/budget"
	"github.com/askdoc/askdoc-go/internal/docqa"
	"github.com/askdoc/askdoc-go/internal/llm"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/store"
)

// handleQuestion handles POST /api/chat/question. Document-scoped questions
// require the document to exist and be fully processed. Both the question and
// the answer are persisted to the session so later questions carry the
// conversation context.
func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	if req.DocumentID != "" {
		doc, err := s.store.GetDocument(r.Context(), req.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "document not found")
				return
			}
			log.Error("get document failed", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to load document")
			return
		}
		switch doc.Status {
		case store.StatusProcessing:
			writeError(w, http.StatusBadRequest, "Document is still being processed. Please wait.")
			return
		case store.StatusFailed:
			writeError(w, http.StatusBadRequest, "Document processing failed. Please re-upload the document.")
			return
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := s.store.EnsureSession(r.Context(), sessionID, req.DocumentID); err != nil {
		log.Error("ensure session failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	// History is loaded before the new question is appended so the model does
	// not see the question twice.
	history, err := s.loadHistory(r, sessionID, req.Question)
	if err != nil {
		log.Error("load history failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load conversation history")
		return
	}

	start := time.Now()
	answer, err := s.router.Ask(r.Context(), &docqa.Request{
		Question:    req.Question,
		DocumentID:  req.DocumentID,
		UseInternet: req.UseInternet,
		History:     history,
	})
	if err != nil {
		s.metrics.questionsTotal.WithLabelValues("unknown", "error").Inc()
		log.Error("question failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}
	elapsed := time.Since(start)

	s.metrics.questionsTotal.WithLabelValues(string(answer.Intent), "ok").Inc()
	s.metrics.questionDurationSeconds.WithLabelValues(string(answer.Intent)).
		Observe(elapsed.Seconds())
	log.Info("question answered",
		slog.String("session_id", sessionID),
		slog.String("intent", string(answer.Intent)),
		slog.Duration("duration", elapsed),
	)

	s.persistExchange(r, sessionID, &req, answer)

	writeJSON(w, http.StatusOK, questionResponse{
		Answer:     answer.Text,
		Sources:    answer.Sources,
		SessionID:  sessionID,
		DocumentID: req.DocumentID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// loadHistory returns the session's recent messages as conversation turns,
// trimmed oldest-first to the configured token budget. The current question
// counts against the budget but is not part of the returned history.
func (s *Server) loadHistory(r *http.Request, sessionID, question string) ([]llm.Turn, error) {
	msgs, err := s.store.RecentMessages(r.Context(), sessionID, s.cfg.HistoryWindow)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Turn, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, llm.Turn{Role: llm.Role(m.Role), Content: m.Content})
	}

	fixed := []llm.Turn{{Role: llm.RoleUser, Content: question}}
	return budget.TrimHistory(fixed, history, s.cfg.MaxContextTokens), nil
}

// persistExchange appends the user question and the assistant answer to the
// session. Persistence failures are logged but do not fail the request —
// the answer has already been produced.
func (s *Server) persistExchange(r *http.Request, sessionID string, req *questionRequest, answer *docqa.Answer) {
	log := logging.FromContext(r.Context())

	userMsg := &store.ChatMessage{
		SessionID:  sessionID,
		DocumentID: req.DocumentID,
		Role:       store.RoleUser,
		Content:    req.Question,
	}
	if err := s.store.AppendMessage(r.Context(), userMsg); err != nil {
		log.Warn("persist user message failed", slog.Any("error", err))
		return
	}

	assistantMsg := &store.ChatMessage{
		SessionID:  sessionID,
		DocumentID: req.DocumentID,
		Role:       store.RoleAssistant,
		Content:    answer.Text,
		Sources:    sourceStrings(answer.Sources),
	}
	if err := s.store.AppendMessage(r.Context(), assistantMsg); err != nil {
		log.Warn("persist assistant message failed", slog.Any("error", err))
	}
}

// sourceStrings flattens answer sources for storage: the grounding excerpt
// for document answers, the page URL for search answers.
func sourceStrings(sources []docqa.Source) []string {
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		if src.URL != "" {
			out = append(out, src.URL)
			continue
		}
		out = append(out, src.Content)
	}
	return out
}

// handleHistory handles GET /api/chat/history/{session_id}, oldest first.
// An unknown session returns an empty message list rather than 404 — the
// session may simply have no messages yet.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	msgs, err := s.store.SessionHistory(r.Context(), sessionID)
	if err != nil {
		logging.FromContext(r.Context()).Error("load history failed",
			slog.String("session_id", sessionID),
			slog.Any("error", err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	resp := historyResponse{SessionID: sessionID, Messages: make([]historyMessage, 0, len(msgs))}
	for _, m := range msgs {
		sources := m.Sources
		if sources == nil {
			sources = []string{}
		}
		resp.Messages = append(resp.Messages, historyMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Sources:   sources,
			Timestamp: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
