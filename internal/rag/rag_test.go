package rag

import (
	"context"
	"testing"

	"github.com/askdoc/askdoc-go/internal/chunker"
)

func Test_Similarity_NotClamped(t *testing.T) {
	t.Parallel()
	cases := []struct {
		distance float32
		want     float32
	}{
		{0, 1},
		{0.1, 0.9},
		{1, 0},
		{1.5, -0.5}, // anti-correlated — similarity stays negative
	}
	for _, tc := range cases {
		m := Match{Distance: tc.distance}
		if got := m.Similarity(); got != tc.want {
			t.Errorf("Similarity(distance=%v) = %v, want %v", tc.distance, got, tc.want)
		}
	}
}

func Test_FilterBySimilarity(t *testing.T) {
	t.Parallel()
	matches := []Match{
		{ChunkID: "a", Distance: 0.1},
		{ChunkID: "b", Distance: 0.5},
		{ChunkID: "c", Distance: 0.9},
	}

	got := FilterBySimilarity(matches, 0.6)
	if len(got) != 1 || got[0].ChunkID != "a" {
		t.Fatalf("want only the distance-0.1 match, got %+v", got)
	}

	// Threshold 0 passes everything here.
	if got := FilterBySimilarity(matches, 0); len(got) != 3 {
		t.Errorf("threshold 0: want 3 matches, got %d", len(got))
	}
}

func Test_CollectionName_Deterministic(t *testing.T) {
	t.Parallel()
	if got := CollectionName("abc-123"); got != "documents_abc-123" {
		t.Errorf("CollectionName = %q", got)
	}
}

func Test_ChunkID_RoundTrip(t *testing.T) {
	t.Parallel()
	id := ChunkID("doc-42", 7)
	if id != "doc-42_7" {
		t.Fatalf("ChunkID = %q", id)
	}
	docID, idx, err := ParseChunkID(id)
	if err != nil {
		t.Fatalf("ParseChunkID: %v", err)
	}
	if docID != "doc-42" || idx != 7 {
		t.Errorf("ParseChunkID = (%q, %d)", docID, idx)
	}
}

func Test_ParseChunkID_Malformed(t *testing.T) {
	t.Parallel()
	for _, id := range []string{"", "noseparator", "_5", "doc_"} {
		if _, _, err := ParseChunkID(id); err == nil {
			t.Errorf("ParseChunkID(%q): want error", id)
		}
	}
}

// fakeEmbedder returns a fixed vector per input text.
type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// queryOnlyIndex records the query it received and returns canned matches.
type queryOnlyIndex struct {
	gotDocumentID string
	gotK          int
	matches       []Match
}

func (f *queryOnlyIndex) Upsert(context.Context, string, []chunker.Chunk, [][]float32, DocumentInfo) error {
	return nil
}

func (f *queryOnlyIndex) Query(_ context.Context, documentID string, _ []float32, k int) ([]Match, error) {
	f.gotDocumentID = documentID
	f.gotK = k
	return f.matches, nil
}

func (f *queryOnlyIndex) GetAll(context.Context, string, int) ([]Record, error) { return nil, nil }
func (f *queryOnlyIndex) Delete(context.Context, string) error                  { return nil }
func (f *queryOnlyIndex) Close() error                                          { return nil }

func Test_Retriever_Defaults(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{}
	idx := &queryOnlyIndex{matches: []Match{{ChunkID: "d_0", Distance: 0.2}}}

	r, err := NewRetriever(emb, idx, 0)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	matches, err := r.Retrieve(context.Background(), "d", "what is this", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("want 1 match, got %d", len(matches))
	}
	if idx.gotK != 5 {
		t.Errorf("default topK = %d, want 5", idx.gotK)
	}
	if idx.gotDocumentID != "d" {
		t.Errorf("documentID = %q, want %q", idx.gotDocumentID, "d")
	}
	if emb.calls != 1 {
		t.Errorf("embedder called %d times, want 1", emb.calls)
	}
}
