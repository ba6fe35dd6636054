package docqa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askdoc/askdoc-go/internal/llm"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/search"
)

// Intent classifies how a question was (or will be) answered.
type Intent string

const (
	// IntentDocumentAnswer is a question answered from a document's chunks.
	IntentDocumentAnswer Intent = "document_answer"
	// IntentSummarize is a whole-document summary request.
	IntentSummarize Intent = "summarize"
	// IntentSearchChat is general chat supplemented with web search.
	IntentSearchChat Intent = "search_chat"
	// IntentChat is general chat answered from the model alone.
	IntentChat Intent = "chat"
	// IntentFallback is the rule-based offline path.
	IntentFallback Intent = "fallback"
)

// summarizeKeywords route a document question to the summary path when any of
// them appears in the lowercased question.
var summarizeKeywords = []string{
	"summarize",
	"summarise",
	"summary",
	"overview",
	"key points",
	"main points",
	"tl;dr",
	"tldr",
	"gist",
}

// currentInfoKeywords mark a general question as needing web search.
var currentInfoKeywords = []string{
	"current",
	"latest",
	"today",
	"recent",
	"this year",
	"news",
	"president",
	"prime minister",
	"ceo",
	"weather",
	"price",
	"stock",
	"score",
	"release date",
}

// searchSources is how many web results supplement a search-backed answer.
const searchSources = 3

// Searcher is the slice of the web search client the router needs.
type Searcher interface {
	SearchAndExtract(ctx context.Context, query string, maxResults int) (string, []search.Result, error)
}

// Request is one incoming question with its routing hints.
type Request struct {
	// Question is the user's question.
	Question string
	// DocumentID scopes the question to a document when non-empty.
	DocumentID string
	// UseInternet forces the web search path even for document questions.
	UseInternet bool
	// History is the bounded recent conversation window, oldest first.
	// Only the general-chat paths use it.
	History []llm.Turn
}

// Router classifies questions and drives the control flow across the
// orchestrator, the model, and web search. Stateless per request.
type Router struct {
	orch   *Orchestrator
	model  llm.Client
	search Searcher
}

// NewRouter constructs a Router. search may be nil, in which case questions
// needing current information fall through to plain chat with a notice.
func NewRouter(orch *Orchestrator, model llm.Client, searcher Searcher) (*Router, error) {
	if orch == nil {
		return nil, fmt.Errorf("docqa: orchestrator is required")
	}
	if model == nil {
		return nil, fmt.Errorf("docqa: model client is required")
	}
	return &Router{orch: orch, model: model, search: searcher}, nil
}

// Classify returns the intent the router would pursue for the request,
// without performing any I/O. The fallback intent is not predicted here
// because it depends on the model's availability at answer time.
func (r *Router) Classify(req *Request) Intent {
	if req.DocumentID != "" && !req.UseInternet {
		if wantsSummary(req.Question) {
			return IntentSummarize
		}
		return IntentDocumentAnswer
	}
	if req.UseInternet || needsCurrentInfo(req.Question) {
		return IntentSearchChat
	}
	return IntentChat
}

// Ask answers the request. Document-scoped questions fail hard when the model
// backend is down; general questions degrade to the rule-based fallback and
// never return an error from that path.
func (r *Router) Ask(ctx context.Context, req *Request) (*Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("docqa: question must not be empty")
	}

	if req.DocumentID != "" && !req.UseInternet {
		if wantsSummary(question) {
			return r.orch.SummarizeDocument(ctx, req.DocumentID)
		}
		return r.orch.AnswerQuestion(ctx, req.DocumentID, question)
	}

	// General path: probe availability first so the offline fallback kicks in
	// before any search spend.
	if err := r.model.CheckAvailability(ctx); err != nil {
		logging.FromContext(ctx).Warn("model backend unavailable, using rule-based fallback",
			slog.String("error", err.Error()),
		)
		return fallbackAnswer(question), nil
	}

	finalTurn := question
	var sources []Source
	intent := IntentChat

	if req.UseInternet || needsCurrentInfo(question) {
		intent = IntentSearchChat
		finalTurn, sources = r.searchContext(ctx, question)
	}

	turns := make([]llm.Turn, 0, len(req.History)+2)
	turns = append(turns, llm.Turn{Role: llm.RoleSystem, Content: chatSystemPrompt})
	turns = append(turns, req.History...)
	turns = append(turns, llm.Turn{Role: llm.RoleUser, Content: finalTurn})

	text, err := r.model.Chat(ctx, turns)
	if err != nil {
		if errors.Is(err, llm.ErrUnavailable) {
			// The backend died between the probe and the call.
			return fallbackAnswer(question), nil
		}
		return nil, err
	}
	return &Answer{Text: strings.TrimSpace(text), Sources: sources, Intent: intent}, nil
}

// searchContext runs the web search and builds the final user turn. Search
// failure is never fatal; the model gets an unavailability notice instead.
func (r *Router) searchContext(ctx context.Context, question string) (string, []Source) {
	if r.search == nil {
		return question + "\n\n" + searchUnavailableNotice, nil
	}

	block, used, err := r.search.SearchAndExtract(ctx, question, searchSources)
	if err != nil {
		logging.FromContext(ctx).Warn("web search failed, answering without it",
			slog.String("error", err.Error()),
		)
		return question + "\n\n" + searchUnavailableNotice, nil
	}
	if block == "" {
		return question + "\n\n" + searchUnavailableNotice, nil
	}

	sources := make([]Source, len(used))
	for i, result := range used {
		sources[i] = Source{
			Title:   result.Title,
			URL:     result.URL,
			Content: truncateContent(result.Snippet),
		}
	}
	return searchContextPrompt(question, block), sources
}

// wantsSummary reports whether a document question asks for a summary.
func wantsSummary(question string) bool {
	lower := strings.ToLower(strings.TrimSpace(question))
	for _, kw := range summarizeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// needsCurrentInfo reports whether a general question likely depends on
// information newer than the model's training data.
func needsCurrentInfo(question string) bool {
	lower := strings.ToLower(strings.TrimSpace(question))
	if strings.HasPrefix(lower, "who is") || strings.HasPrefix(lower, "who are") {
		return true
	}
	for _, kw := range currentInfoKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
