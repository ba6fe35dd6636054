package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OpenAIEmbedder implements rag.Embedder using the OpenAI embeddings API.
// It also works with Azure OpenAI deployments when constructed with an Azure
// base URL and api-key header style.
type OpenAIEmbedder struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1").
	baseURL string
	// apiKey authenticates the request.
	apiKey string
	// model is the embedding model name (e.g. "text-embedding-3-small").
	model string
	// azure switches auth to the "api-key" header and appends the Azure
	// api-version query parameter.
	azure bool
	// batchSize is the maximum number of texts per request.
	batchSize int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base. Defaults to "https://api.openai.com/v1".
	BaseURL string
	// APIKey authenticates requests.
	APIKey string
	// Model is the embedding model name. Defaults to "text-embedding-3-small".
	Model string
	// Azure enables Azure OpenAI auth and URL conventions.
	Azure bool
	// BatchSize overrides the default texts-per-request cap when > 0.
	BatchSize int
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config,
// filling in defaults for unset fields.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &OpenAIEmbedder{
		baseURL:   base,
		apiKey:    cfg.APIKey,
		model:     model,
		azure:     cfg.Azure,
		batchSize: batch,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// openaiEmbedRequest is the JSON body sent to the embeddings endpoint.
type openaiEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// openaiEmbedResponse is the JSON body returned from the embeddings endpoint.
type openaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}

	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(openaiEmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: marshal request: %w", err)
	}

	url := e.baseURL + "/embeddings"
	if e.azure {
		url += "?api-version=2024-02-01"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.azure {
		req.Header.Set("api-key", e.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openai embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("openai embedder: %s", msg)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API is documented to return entries in input order, but each entry
	// carries its index so we honor it.
	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embedder: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}

	return vectors, nil
}
