package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/askdoc/askdoc-go/internal/docqa"
	"github.com/askdoc/askdoc-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for a full model generation round-trip.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MaxUploadBytes caps the size of a document upload. Defaults to 50 MiB.
	MaxUploadBytes int64
	// HistoryWindow is how many prior messages are loaded as conversation
	// context for general-chat questions. Defaults to 10.
	HistoryWindow int
	// MaxContextTokens is the input token budget for general-chat requests.
	// History is trimmed oldest-first to fit. Defaults to
	// [budget.DefaultMaxContextTokens].
	MaxContextTokens int
}

// uploader is the interface the document handlers call to ingest and remove
// documents. *ingestion.Pipeline satisfies it; tests inject a fake.
type uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*store.Document, error)
	Process(ctx context.Context, doc *store.Document) error
	Remove(ctx context.Context, id string) error
}

// asker is the interface handleQuestion calls to answer a question.
// *docqa.Router satisfies it; tests inject a fake.
type asker interface {
	Ask(ctx context.Context, req *docqa.Request) (*docqa.Answer, error)
}

// Server is the HTTP server that exposes document ingestion and question
// answering over a REST API.
type Server struct {
	// pipeline ingests, processes, and removes documents.
	pipeline uploader
	// router answers questions.
	router asker
	// store is the relational store for documents and conversations.
	store *store.SQLiteStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus metrics owned by this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// questionRequest is the JSON body for POST /api/chat/question.
type questionRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// DocumentID scopes the question to an uploaded document when non-empty.
	DocumentID string `json:"document_id,omitempty"`
	// SessionID continues an existing conversation. A new session is created
	// when empty.
	SessionID string `json:"session_id,omitempty"`
	// UseInternet forces the web search path.
	UseInternet bool `json:"use_internet,omitempty"`
}

// questionResponse is the JSON response for POST /api/chat/question.
type questionResponse struct {
	// Answer is the generated answer text.
	Answer string `json:"answer"`
	// Sources mirror the material the answer was grounded on.
	Sources []docqa.Source `json:"sources"`
	// SessionID identifies the conversation, echoed or newly created.
	SessionID string `json:"session_id"`
	// DocumentID echoes the scoping document, if any.
	DocumentID string `json:"document_id,omitempty"`
	// Timestamp is when the answer was produced, RFC 3339.
	Timestamp string `json:"timestamp"`
}

// documentResponse is the JSON representation of a stored document.
type documentResponse struct {
	// ID is the document's unique identifier.
	ID string `json:"id"`
	// Filename is the original name of the uploaded file.
	Filename string `json:"filename"`
	// FileType is the lowercased extension without the dot.
	FileType string `json:"file_type"`
	// FileSize is the upload size in bytes.
	FileSize int64 `json:"file_size"`
	// ChunksCount is the number of chunks produced; zero until processed.
	ChunksCount int `json:"chunks_count"`
	// Status is "processing", "processed", or "failed".
	Status string `json:"status"`
	// ErrorMessage is the failure reason when Status is "failed".
	ErrorMessage string `json:"error_message,omitempty"`
	// CreatedAt is when the document was uploaded, RFC 3339.
	CreatedAt string `json:"created_at"`
}

// historyMessage is one message in the GET /api/chat/history response.
type historyMessage struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// Sources holds the grounding excerpts for assistant messages.
	Sources []string `json:"sources"`
	// Timestamp is when the message was persisted, RFC 3339.
	Timestamp string `json:"timestamp"`
}

// historyResponse is the JSON response for GET /api/chat/history/{session_id}.
type historyResponse struct {
	// SessionID identifies the conversation.
	SessionID string `json:"session_id"`
	// Messages are the session's messages, oldest first.
	Messages []historyMessage `json:"messages"`
}

// errorResponse is the JSON body for all error statuses.
type errorResponse struct {
	// Error is the human-readable failure description.
	Error string `json:"error"`
}
