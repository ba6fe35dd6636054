// Package server implements the HTTP server that exposes document ingestion
// and question answering via a REST API.
// The server is started by the `askdoc serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askdoc/askdoc-go/internal/budget"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/store"
)

// defaultMaxUploadBytes caps document uploads at 50 MiB.
const defaultMaxUploadBytes = 50 << 20

// defaultHistoryWindow is how many prior messages are loaded as conversation
// context when the caller does not configure a window.
const defaultHistoryWindow = 10

// Deps are the collaborators the server routes requests to.
type Deps struct {
	// Pipeline ingests, processes, and removes documents.
	Pipeline uploader
	// Router answers questions.
	Router asker
	// Store persists documents and conversations.
	Store *store.SQLiteStore
}

// New constructs a Server from the provided collaborators and config.
// Metrics are registered against reg; pass a fresh prometheus.Registry in
// tests and prometheus.DefaultRegisterer in production.
func New(deps *Deps, cfg *Config, reg prometheus.Registerer) (*Server, error) {
	if deps == nil || deps.Pipeline == nil {
		return nil, fmt.Errorf("server: ingestion pipeline must not be nil")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("server: question router must not be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("server: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full model generation round-trip.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = budget.DefaultMaxContextTokens
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	if cfg.APIKey == "" {
		log.Warn("API key not configured, authentication is disabled")
	}

	s := &Server{
		pipeline: deps.Pipeline,
		router:   deps.Router,
		store:    deps.Store,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /api/documents", s.instrument("documents_upload", s.handleUpload))
	mux.Handle("GET /api/documents", s.instrument("documents_list", s.handleListDocuments))
	mux.Handle("GET /api/documents/{id}", s.instrument("documents_get", s.handleGetDocument))
	mux.Handle("DELETE /api/documents/{id}", s.instrument("documents_delete", s.handleDeleteDocument))
	mux.Handle("POST /api/chat/question", s.instrument("chat_question", s.handleQuestion))
	mux.Handle("GET /api/chat/history/{session_id}", s.instrument("chat_history", s.handleHistory))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gathererFor(reg), promhttp.HandlerOpts{}))

	// Middleware order (outermost first): request logging happens for every
	// request including rejected ones; auth runs before the rate limiter so
	// unauthenticated clients cannot consume another IP's budget.
	var handler http.Handler = mux
	handler = rl.middleware(handler)
	handler = authMiddleware(cfg.APIKey, handler)
	handler = requestLogger(log, handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// gathererFor returns reg as a prometheus.Gatherer when it is one, falling
// back to the default gatherer. prometheus.Registry satisfies both interfaces.
func gathererFor(reg prometheus.Registerer) prometheus.Gatherer {
	if g, ok := reg.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError sends a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
