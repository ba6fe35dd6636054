package docqa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/askdoc/askdoc-go/internal/chunker"
	"github.com/askdoc/askdoc-go/internal/llm"
	"github.com/askdoc/askdoc-go/internal/rag"
	"github.com/askdoc/askdoc-go/internal/search"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.1, 0.9}
	}
	return out, nil
}

type fakeIndex struct {
	matches   []rag.Match
	queryErr  error
	records   []rag.Record
	getAllErr error
}

func (f *fakeIndex) Upsert(context.Context, string, []chunker.Chunk, [][]float32, rag.DocumentInfo) error {
	return nil
}

func (f *fakeIndex) Query(context.Context, string, []float32, int) ([]rag.Match, error) {
	return f.matches, f.queryErr
}

func (f *fakeIndex) GetAll(context.Context, string, int) ([]rag.Record, error) {
	return f.records, f.getAllErr
}

func (f *fakeIndex) Delete(context.Context, string) error { return nil }
func (f *fakeIndex) Close() error                         { return nil }

type fakeChunks struct {
	chunks []chunker.Chunk
	err    error
}

func (f *fakeChunks) ChunksByDocument(context.Context, string) ([]chunker.Chunk, error) {
	return f.chunks, f.err
}

type fakeModel struct {
	availErr        error
	completeText    string
	completeErr     error
	chatText        string
	chatErr         error
	completePrompts []string
	chatCalls       [][]llm.Turn
}

func (f *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	f.completePrompts = append(f.completePrompts, prompt)
	return f.completeText, f.completeErr
}

func (f *fakeModel) Chat(_ context.Context, turns []llm.Turn) (string, error) {
	f.chatCalls = append(f.chatCalls, turns)
	return f.chatText, f.chatErr
}

func (f *fakeModel) CheckAvailability(context.Context) error { return f.availErr }
func (f *fakeModel) ListModels(context.Context) ([]string, error) {
	return []string{"llama3"}, nil
}
func (f *fakeModel) Model() string { return "llama3" }

type fakeSearcher struct {
	block   string
	results []search.Result
	err     error
	calls   int
}

func (f *fakeSearcher) SearchAndExtract(context.Context, string, int) (string, []search.Result, error) {
	f.calls++
	return f.block, f.results, f.err
}

func newTestOrchestrator(t *testing.T, index *fakeIndex, chunks ChunkLister, model llm.Client, minSimilarity float32) *Orchestrator {
	t.Helper()
	retriever, err := rag.NewRetriever(fakeEmbedder{}, index, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	if chunks == nil {
		chunks = &fakeChunks{}
	}
	orch, err := NewOrchestrator(&OrchestratorConfig{
		Retriever:     retriever,
		Index:         index,
		Chunks:        chunks,
		Model:         model,
		MinSimilarity: minSimilarity,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch
}

func Test_AnswerQuestion_Hit(t *testing.T) {
	t.Parallel()

	longContent := strings.Repeat("relevant detail ", 20) // > 200 chars
	index := &fakeIndex{matches: []rag.Match{
		{
			ChunkID:  "doc1_2",
			Content:  longContent,
			Metadata: rag.Metadata{DocumentID: "doc1", ChunkIndex: 2},
			Distance: 0.2,
		},
	}}
	model := &fakeModel{completeText: "It is covered in section 2."}
	orch := newTestOrchestrator(t, index, nil, model, 0)

	answer, err := orch.AnswerQuestion(context.Background(), "doc1", "what is covered?")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if answer.Text != "It is covered in section 2." {
		t.Errorf("unexpected answer %q", answer.Text)
	}
	if len(model.completePrompts) != 1 {
		t.Fatalf("expected one model call, got %d", len(model.completePrompts))
	}
	if !strings.Contains(model.completePrompts[0], "[Section 2]") {
		t.Errorf("context missing section label:\n%s", model.completePrompts[0])
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected one source, got %d", len(answer.Sources))
	}
	src := answer.Sources[0]
	if src.ChunkID != "doc1_2" {
		t.Errorf("unexpected source chunk %q", src.ChunkID)
	}
	if len(src.Content) != sourceContentLimit+3 || !strings.HasSuffix(src.Content, "...") {
		t.Errorf("source content not truncated: %d chars", len(src.Content))
	}
	if got := src.Similarity; got < 0.79 || got > 0.81 {
		t.Errorf("similarity: want 0.8, got %v", got)
	}
}

func Test_AnswerQuestion_MissNeverCallsModel(t *testing.T) {
	t.Parallel()

	model := &fakeModel{completeText: "should not appear"}
	orch := newTestOrchestrator(t, &fakeIndex{}, nil, model, 0)

	answer, err := orch.AnswerQuestion(context.Background(), "doc1", "anything")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if answer.Text != AnswerNotFound {
		t.Errorf("want fixed not-found answer, got %q", answer.Text)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("want empty sources, got %v", answer.Sources)
	}
	if len(model.completePrompts) != 0 {
		t.Error("model must not be invoked on a retrieval miss")
	}
}

func Test_AnswerQuestion_SimilarityThresholdFiltersAll(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{matches: []rag.Match{
		{ChunkID: "d_0", Content: "a", Distance: 0.5},
		{ChunkID: "d_1", Content: "b", Distance: 0.9},
	}}
	model := &fakeModel{}
	orch := newTestOrchestrator(t, index, nil, model, 0.6)

	answer, err := orch.AnswerQuestion(context.Background(), "d", "q")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if answer.Text != AnswerNotFound {
		t.Errorf("want fixed not-found answer, got %q", answer.Text)
	}
	if len(model.completePrompts) != 0 {
		t.Error("model must not be invoked when every match is filtered")
	}
}

func Test_AnswerQuestion_ContextKeepsRetrievalOrder(t *testing.T) {
	t.Parallel()

	// Best match is chunk 7, then chunk 1: the context must not re-sort them.
	index := &fakeIndex{matches: []rag.Match{
		{ChunkID: "d_7", Content: "later section", Metadata: rag.Metadata{ChunkIndex: 7}, Distance: 0.1},
		{ChunkID: "d_1", Content: "earlier section", Metadata: rag.Metadata{ChunkIndex: 1}, Distance: 0.3},
	}}
	model := &fakeModel{completeText: "ok"}
	orch := newTestOrchestrator(t, index, nil, model, 0)

	if _, err := orch.AnswerQuestion(context.Background(), "d", "q"); err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	prompt := model.completePrompts[0]
	if strings.Index(prompt, "[Section 7]") > strings.Index(prompt, "[Section 1]") {
		t.Errorf("context re-sorted by index:\n%s", prompt)
	}
}

func Test_SummarizeDocument_VectorIndexFirst(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{records: []rag.Record{
		{ChunkID: "d_0", Content: "first part", Metadata: rag.Metadata{ChunkIndex: 0}},
		{ChunkID: "d_1", Content: "second part", Metadata: rag.Metadata{ChunkIndex: 1}},
	}}
	model := &fakeModel{chatText: "a summary"}
	orch := newTestOrchestrator(t, index, nil, model, 0)

	answer, err := orch.SummarizeDocument(context.Background(), "d")
	if err != nil {
		t.Fatalf("SummarizeDocument: %v", err)
	}
	if answer.Text != "a summary" {
		t.Errorf("unexpected answer %q", answer.Text)
	}
	if len(model.chatCalls) != 1 {
		t.Fatalf("expected one chat call, got %d", len(model.chatCalls))
	}
	turns := model.chatCalls[0]
	if turns[0].Role != llm.RoleSystem || !strings.Contains(turns[0].Content, "summarizing documents") {
		t.Errorf("summary system prompt missing: %+v", turns[0])
	}
	if !strings.Contains(turns[1].Content, "[Section 0]") || !strings.Contains(turns[1].Content, "[Section 1]") {
		t.Errorf("summary context incomplete:\n%s", turns[1].Content)
	}
	if len(answer.Sources) != 2 {
		t.Errorf("expected 2 sources, got %d", len(answer.Sources))
	}
}

func Test_SummarizeDocument_FallsBackToChunkRows(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{getAllErr: errors.New("qdrant down")}
	chunks := &fakeChunks{chunks: []chunker.Chunk{
		{Index: 0, Content: "opening"},
		{Index: 1, Content: "middle"},
		{Index: 2, Content: "closing"},
	}}
	model := &fakeModel{chatText: "summary from rows"}
	orch := newTestOrchestrator(t, index, chunks, model, 0)

	answer, err := orch.SummarizeDocument(context.Background(), "d")
	if err != nil {
		t.Fatalf("SummarizeDocument: %v", err)
	}
	if answer.Text != "summary from rows" {
		t.Errorf("unexpected answer %q", answer.Text)
	}
	prompt := model.chatCalls[0][1].Content
	for i, want := range []string{"opening", "middle", "closing"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("chunk %d missing from fallback context", i)
		}
	}
	if strings.Index(prompt, "opening") > strings.Index(prompt, "closing") {
		t.Error("fallback context not in index order")
	}
}

func Test_SummarizeDocument_NothingAnywhere(t *testing.T) {
	t.Parallel()

	model := &fakeModel{}
	orch := newTestOrchestrator(t, &fakeIndex{}, &fakeChunks{}, model, 0)

	answer, err := orch.SummarizeDocument(context.Background(), "d")
	if err != nil {
		t.Fatalf("SummarizeDocument: %v", err)
	}
	if answer.Text != AnswerNothingToSummarize {
		t.Errorf("want fixed nothing-to-summarize answer, got %q", answer.Text)
	}
	if len(model.chatCalls) != 0 {
		t.Error("model must not be invoked with no content")
	}
}

func newTestRouter(t *testing.T, model llm.Client, searcher Searcher) *Router {
	t.Helper()
	orch := newTestOrchestrator(t, &fakeIndex{}, nil, model, 0)
	router, err := NewRouter(orch, model, searcher)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router
}

func Test_Router_Classify(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, &fakeModel{}, nil)

	cases := []struct {
		req  Request
		want Intent
	}{
		{Request{Question: "what is chapter 3 about?", DocumentID: "d"}, IntentDocumentAnswer},
		{Request{Question: "Give me a summary of this", DocumentID: "d"}, IntentSummarize},
		{Request{Question: "What are the key points?", DocumentID: "d"}, IntentSummarize},
		{Request{Question: "who is the president of France?"}, IntentSearchChat},
		{Request{Question: "what's the latest on the election?"}, IntentSearchChat},
		{Request{Question: "explain recursion"}, IntentChat},
		{Request{Question: "explain recursion", UseInternet: true}, IntentSearchChat},
		{Request{Question: "summarize this", DocumentID: "d", UseInternet: true}, IntentSearchChat},
	}
	for _, tc := range cases {
		if got := router.Classify(&tc.req); got != tc.want {
			t.Errorf("Classify(%q doc=%q internet=%v): want %s, got %s",
				tc.req.Question, tc.req.DocumentID, tc.req.UseInternet, tc.want, got)
		}
	}
}

func Test_Router_OfflineGreetingFallback(t *testing.T) {
	t.Parallel()

	model := &fakeModel{availErr: llm.ErrUnavailable}
	searcher := &fakeSearcher{}
	router := newTestRouter(t, model, searcher)

	answer, err := router.Ask(context.Background(), &Request{Question: "hello"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != "Hi there! What would you like to know?" {
		t.Errorf("unexpected fallback %q", answer.Text)
	}
	if answer.Intent != IntentFallback {
		t.Errorf("want fallback intent, got %s", answer.Intent)
	}
	if searcher.calls != 0 {
		t.Error("search must not be attempted when the model is down")
	}
	if len(model.chatCalls) != 0 {
		t.Error("chat must not be attempted when the model is down")
	}
}

func Test_Router_OfflineUnmatchedQuestionGetsInstructions(t *testing.T) {
	t.Parallel()

	model := &fakeModel{availErr: llm.ErrUnavailable}
	router := newTestRouter(t, model, nil)

	answer, err := router.Ask(context.Background(), &Request{Question: "explain entropy"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(answer.Text, "ollama pull llama3") {
		t.Errorf("remediation instructions missing: %q", answer.Text)
	}
}

func Test_Router_SearchChatInjectsContext(t *testing.T) {
	t.Parallel()

	model := &fakeModel{chatText: "The president is X."}
	searcher := &fakeSearcher{
		block: "Source 1 (Wikipedia):\nX has been president since 2024.",
		results: []search.Result{
			{Title: "Wikipedia", URL: "https://en.wikipedia.org/wiki/X", Snippet: "X has been president since 2024."},
		},
	}
	router := newTestRouter(t, model, searcher)

	answer, err := router.Ask(context.Background(), &Request{
		Question: "who is the president of France?",
		History:  []llm.Turn{{Role: llm.RoleUser, Content: "bonjour"}, {Role: llm.RoleAssistant, Content: "bonjour!"}},
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if searcher.calls != 1 {
		t.Fatalf("expected one search, got %d", searcher.calls)
	}
	turns := model.chatCalls[0]
	// system + 2 history + final user turn
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	final := turns[len(turns)-1]
	if final.Role != llm.RoleUser {
		t.Errorf("final turn must be the user turn, got %s", final.Role)
	}
	if !strings.Contains(final.Content, "Source 1 (Wikipedia)") {
		t.Errorf("search context not injected:\n%s", final.Content)
	}
	if !strings.Contains(final.Content, "who is the president of France?") {
		t.Errorf("question missing from final turn:\n%s", final.Content)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].URL != "https://en.wikipedia.org/wiki/X" {
		t.Errorf("search sources not mirrored: %v", answer.Sources)
	}
}

func Test_Router_SearchFailureDegradesToNotice(t *testing.T) {
	t.Parallel()

	model := &fakeModel{chatText: "best effort answer"}
	searcher := &fakeSearcher{err: search.ErrRateLimited}
	router := newTestRouter(t, model, searcher)

	answer, err := router.Ask(context.Background(), &Request{Question: "latest news on Go"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	final := model.chatCalls[0][len(model.chatCalls[0])-1]
	if !strings.Contains(final.Content, "web search is currently unavailable") {
		t.Errorf("unavailability notice missing:\n%s", final.Content)
	}
	if len(answer.Sources) != 0 {
		t.Errorf("no sources expected, got %v", answer.Sources)
	}
}

func Test_Router_PlainChatSkipsSearch(t *testing.T) {
	t.Parallel()

	model := &fakeModel{chatText: "recursion is when..."}
	searcher := &fakeSearcher{}
	router := newTestRouter(t, model, searcher)

	answer, err := router.Ask(context.Background(), &Request{Question: "explain recursion"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if searcher.calls != 0 {
		t.Error("search must not run for a plain chat question")
	}
	if answer.Intent != IntentChat {
		t.Errorf("want chat intent, got %s", answer.Intent)
	}
}

func Test_Router_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, &fakeModel{}, nil)

	if _, err := router.Ask(context.Background(), &Request{Question: "   "}); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func Test_FallbackAnswer_TableOrder(t *testing.T) {
	t.Parallel()

	// "this morning" contains "hi"; the canned tables are substring matches,
	// same as the greeting behavior for "hi there".
	if got := fallbackAnswer("hi there"); got.Text != "Hello! How can I help you today?" {
		t.Errorf("greeting lookup: %q", got.Text)
	}
	if got := fallbackAnswer("what can you do"); !strings.Contains(got.Text, "uploaded documents") {
		t.Errorf("common response lookup: %q", got.Text)
	}
}
