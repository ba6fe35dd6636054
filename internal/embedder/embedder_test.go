package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_OllamaEmbedder_BatchesLargeInput(t *testing.T) {
	t.Parallel()

	var requests int
	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		requests++
		batchSizes = append(batchSizes, len(req.Input))

		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float32{float32(i), 0.5}
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: embeddings})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text", BatchSize: 3})

	texts := []string{"a", "b", "c", "d", "e", "f", "g"}
	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	if requests != 3 {
		t.Errorf("expected 3 requests, got %d", requests)
	}
	want := []int{3, 3, 1}
	for i, size := range batchSizes {
		if size != want[i] {
			t.Errorf("batch %d: expected %d texts, got %d", i, want[i], size)
		}
	}
}

func Test_OllamaEmbedder_EmptyInput(t *testing.T) {
	t.Parallel()

	e := NewOllamaEmbedder(&OllamaConfig{Host: "http://localhost:0", Model: "nomic-embed-text"})
	vectors, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("expected no vectors, got %d", len(vectors))
	}
}

func Test_OllamaEmbedder_SurfacesServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: `model "missing" not found`})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(&OllamaConfig{Host: srv.URL, Model: "missing"})
	if _, err := e.Embed(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func Test_OpenAIEmbedder_HonorsIndexOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		// Entries deliberately out of order.
		w.Write([]byte(`{"data":[{"index":1,"embedding":[2,2]},{"index":0,"embedding":[1,1]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&OpenAIConfig{BaseURL: srv.URL, APIKey: "test-key"})
	vectors, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][0] != 2 {
		t.Errorf("vectors not reordered by index: %v", vectors)
	}
}

func Test_DefaultDimensions(t *testing.T) {
	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("ollama dimensions: expected 768, got %d", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai dimensions: expected 1536, got %d", got)
	}
}

func Test_LooksLikeChatModel(t *testing.T) {
	t.Parallel()

	chat := []string{"gpt-4o", "llama3.2", "Mistral-7B"}
	for _, m := range chat {
		if !looksLikeChatModel(m) {
			t.Errorf("expected %q to look like a chat model", m)
		}
	}
	embedding := []string{"nomic-embed-text", "text-embedding-3-small"}
	for _, m := range embedding {
		if looksLikeChatModel(m) {
			t.Errorf("did not expect %q to look like a chat model", m)
		}
	}
}
