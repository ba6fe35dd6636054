package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/askdoc/askdoc-go/internal/logging"
)

// availabilityTimeout bounds the /api/tags probe so health checks and the
// pre-answer availability gate stay fast even when the server is gone.
const availabilityTimeout = 3 * time.Second

// OllamaClient implements Client against a locally running Ollama server.
// It speaks the Ollama HTTP API directly rather than going through an SDK so
// the availability probe and model listing stay under our control.
type OllamaClient struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the chat model name (e.g. "llama3").
	model string
	// temperature controls response randomness.
	temperature float32
	// maxTokens caps generated tokens per response (Ollama num_predict).
	maxTokens int
	// client is used for generation requests.
	client *http.Client
	// probeClient is used for availability checks, with a much shorter timeout.
	probeClient *http.Client
}

// OllamaClientConfig holds the settings for constructing an OllamaClient.
type OllamaClientConfig struct {
	// Host is the Ollama server base URL. Defaults to "http://localhost:11434".
	Host string
	// Model is the chat model name. Defaults to "llama3".
	Model string
	// Temperature controls response randomness.
	Temperature float32
	// MaxTokens caps generated tokens per response. Zero means no cap.
	MaxTokens int
}

// NewOllamaClient constructs an OllamaClient, filling in defaults for unset
// fields.
func NewOllamaClient(cfg *OllamaClientConfig) *OllamaClient {
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	return &OllamaClient{
		host:        host,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: 120 * time.Second},
		probeClient: &http.Client{Timeout: availabilityTimeout},
	}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string { return c.model }

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Complete generates a response to a single prompt via /api/generate.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	body, err := c.post(ctx, "/api/generate", payload)
	if err != nil {
		return "", err
	}

	var result ollamaGenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama: %s", result.Error)
	}
	return result.Response, nil
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  ollamaOptions       `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Error   string            `json:"error,omitempty"`
}

// Chat generates the next assistant turn for a conversation via /api/chat.
func (c *OllamaClient) Chat(ctx context.Context, turns []Turn) (string, error) {
	messages := make([]ollamaChatMessage, len(turns))
	for i, turn := range turns {
		messages[i] = ollamaChatMessage{Role: string(turn.Role), Content: turn.Content}
	}

	payload, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: c.temperature,
			NumPredict:  c.maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	body, err := c.post(ctx, "/api/chat", payload)
	if err != nil {
		return "", err
	}

	var result ollamaChatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama: %s", result.Error)
	}
	return result.Message.Content, nil
}

// CheckAvailability probes the server's /api/tags endpoint with a short
// timeout. It wraps failures in ErrUnavailable so callers can route to a
// remediation message instead of a generic error.
func (c *OllamaClient) CheckAvailability(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("ollama: create probe request: %w", err)
	}
	resp, err := c.probeClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s not reachable: %v", ErrUnavailable, c.host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned HTTP %d", ErrUnavailable, c.host, resp.StatusCode)
	}
	return nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the names of all models the server currently serves.
// Listing is informational only, so any transport or decode failure yields
// an empty list rather than an error.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	log := logging.FromContext(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, nil
	}
	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug("list models failed", slog.String("error", err.Error()))
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Debug("list models failed", slog.Int("status", resp.StatusCode))
		return nil, nil
	}

	var result ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Debug("list models failed", slog.String("error", err.Error()))
		return nil, nil
	}
	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// post sends a JSON request to the given path and returns the raw response
// body. Transport-level failures are classified as ErrUnavailable; HTTP error
// statuses are reported with the server's error message when present.
func (c *OllamaClient) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not reachable: %v", ErrUnavailable, c.host, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("ollama: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(buf.Bytes(), &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("ollama: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("ollama: HTTP %d", resp.StatusCode)
	}

	return buf.Bytes(), nil
}
