// Package docqa answers user questions. Document-scoped questions go through
// the retrieval pipeline: nearest chunks become prompt context and the model
// answers from that context only. General questions go through the chat path,
// optionally supplemented with web search, with a rule-based fallback when
// the model backend is down.
package docqa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askdoc/askdoc-go/internal/chunker"
	"github.com/askdoc/askdoc-go/internal/llm"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/rag"
)

// Fixed user-facing answers. These are returned verbatim so clients and the
// frontend can rely on them.
const (
	// AnswerNotFound is returned when no chunk passes the similarity filter.
	AnswerNotFound = "I couldn't find relevant information in the document to answer this question."
	// AnswerNothingToSummarize is returned when a document has no chunks anywhere.
	AnswerNothingToSummarize = "I couldn't find any content in the document to summarize. The document may not have been processed yet or there was an error during processing."
)

// sourceContentLimit caps the excerpt length shown per source.
const sourceContentLimit = 200

// DefaultMaxSummaryChunks bounds how many chunks feed a summary.
const DefaultMaxSummaryChunks = 50

// maxSummarySources caps how many chunks are echoed back as summary sources.
const maxSummarySources = 10

// Source describes one piece of material that grounded an answer. Document
// answers fill ChunkID/Similarity; search answers fill Title/URL. Content is
// always truncated for display.
type Source struct {
	// ChunkID identifies the retrieved chunk (document answers only).
	ChunkID string `json:"chunk_id,omitempty"`
	// Content is the grounding excerpt, truncated to 200 characters.
	Content string `json:"content"`
	// Similarity is the retrieval similarity score (document answers only).
	Similarity float32 `json:"similarity,omitempty"`
	// Title is the page title (search answers only).
	Title string `json:"title,omitempty"`
	// URL is the page URL (search answers only).
	URL string `json:"url,omitempty"`
}

// Answer is the result of answering a question by any path.
type Answer struct {
	// Text is the answer shown to the user.
	Text string `json:"answer"`
	// Sources mirror exactly the material used to build the answer's context.
	Sources []Source `json:"sources"`
	// Intent records which path produced the answer.
	Intent Intent `json:"-"`
}

// ChunkLister is the relational fallback used when the vector index cannot
// supply a document's chunks for summarization.
type ChunkLister interface {
	// ChunksByDocument returns a document's chunks ordered by chunk index.
	ChunksByDocument(ctx context.Context, documentID string) ([]chunker.Chunk, error)
}

// Orchestrator runs the document-scoped answer paths. Stateless per request;
// safe for concurrent use.
type Orchestrator struct {
	retriever *rag.Retriever
	index     rag.VectorIndex
	chunks    ChunkLister
	model     llm.Client

	// minSimilarity filters retrieved matches. Zero keeps everything.
	minSimilarity float32
	// topK is how many chunks to retrieve per question.
	topK int
	// maxSummaryChunks bounds how many chunks feed a summary.
	maxSummaryChunks int
}

// OrchestratorConfig holds the settings for constructing an Orchestrator.
type OrchestratorConfig struct {
	// Retriever performs similarity retrieval. Required.
	Retriever *rag.Retriever
	// Index supplies bulk chunk reads for summarization. Required.
	Index rag.VectorIndex
	// Chunks is the relational fallback for summarization. Required.
	Chunks ChunkLister
	// Model generates answers. Required.
	Model llm.Client
	// MinSimilarity filters retrieved matches. Default 0 (unfiltered).
	MinSimilarity float32
	// TopK is how many chunks to retrieve. Defaults to 5.
	TopK int
	// MaxSummaryChunks bounds summary input. Defaults to 50.
	MaxSummaryChunks int
}

// NewOrchestrator constructs an Orchestrator, filling in defaults.
func NewOrchestrator(cfg *OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("docqa: retriever is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("docqa: vector index is required")
	}
	if cfg.Chunks == nil {
		return nil, fmt.Errorf("docqa: chunk lister is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("docqa: model client is required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	maxSummary := cfg.MaxSummaryChunks
	if maxSummary <= 0 {
		maxSummary = DefaultMaxSummaryChunks
	}
	return &Orchestrator{
		retriever:        cfg.Retriever,
		index:            cfg.Index,
		chunks:           cfg.Chunks,
		model:            cfg.Model,
		minSimilarity:    cfg.MinSimilarity,
		topK:             topK,
		maxSummaryChunks: maxSummary,
	}, nil
}

// AnswerQuestion retrieves the document's most relevant chunks and asks the
// model to answer from them. When nothing relevant is found the fixed
// not-found answer is returned and the model is never called. Model
// unavailability is a hard failure here; there is no fallback text for
// arbitrary document questions.
func (o *Orchestrator) AnswerQuestion(ctx context.Context, documentID, question string) (*Answer, error) {
	matches, err := o.retriever.Retrieve(ctx, documentID, question, o.topK)
	if err != nil {
		return nil, err
	}

	matches = rag.FilterBySimilarity(matches, o.minSimilarity)
	if len(matches) == 0 {
		return &Answer{Text: AnswerNotFound, Sources: []Source{}, Intent: IntentDocumentAnswer}, nil
	}

	// Context keeps the retrieval ranking: best match first, not document order.
	var parts []string
	sources := make([]Source, len(matches))
	for i, m := range matches {
		parts = append(parts, fmt.Sprintf("[Section %d]\n%s\n", m.Metadata.ChunkIndex, m.Content))
		sources[i] = Source{
			ChunkID:    m.ChunkID,
			Content:    truncateContent(m.Content),
			Similarity: m.Similarity(),
		}
	}

	text, err := o.model.Complete(ctx, answerPrompt(question, strings.Join(parts, "\n")))
	if err != nil {
		return nil, err
	}
	return &Answer{Text: strings.TrimSpace(text), Sources: sources, Intent: IntentDocumentAnswer}, nil
}

// SummarizeDocument builds a whole-document context and asks the model for a
// summary. The vector index is tried first; on error or empty result the
// relational chunk rows are used instead, in chunk index order.
func (o *Orchestrator) SummarizeDocument(ctx context.Context, documentID string) (*Answer, error) {
	records, err := o.index.GetAll(ctx, documentID, o.maxSummaryChunks)
	if err != nil {
		logging.FromContext(ctx).Warn("vector index unavailable for summary, using chunk rows",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()),
		)
		records = nil
	}

	if len(records) == 0 {
		chunks, err := o.chunks.ChunksByDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if len(chunks) > o.maxSummaryChunks {
			chunks = chunks[:o.maxSummaryChunks]
		}
		for _, c := range chunks {
			records = append(records, rag.Record{
				ChunkID: rag.ChunkID(documentID, c.Index),
				Content: c.Content,
				Metadata: rag.Metadata{
					DocumentID: documentID,
					ChunkIndex: c.Index,
				},
			})
		}
	}

	if len(records) == 0 {
		return &Answer{Text: AnswerNothingToSummarize, Sources: []Source{}, Intent: IntentSummarize}, nil
	}

	var parts []string
	for _, r := range records {
		parts = append(parts, fmt.Sprintf("[Section %d]\n%s\n", r.Metadata.ChunkIndex, r.Content))
	}

	text, err := o.model.Chat(ctx, []llm.Turn{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: summaryPrompt(strings.Join(parts, "\n"))},
	})
	if err != nil {
		return nil, err
	}

	sourceCount := len(records)
	if sourceCount > maxSummarySources {
		sourceCount = maxSummarySources
	}
	sources := make([]Source, sourceCount)
	for i := 0; i < sourceCount; i++ {
		sources[i] = Source{
			ChunkID: records[i].ChunkID,
			Content: truncateContent(records[i].Content),
		}
	}
	return &Answer{Text: strings.TrimSpace(text), Sources: sources, Intent: IntentSummarize}, nil
}

// truncateContent shortens an excerpt for display.
func truncateContent(content string) string {
	if len(content) > sourceContentLimit {
		return content[:sourceContentLimit] + "..."
	}
	return content
}
