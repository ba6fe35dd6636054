package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/askdoc/askdoc-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name. Callers that pre-configure the vector index (Qdrant collection
// creation) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := envInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// ResolveBackend returns the effective embedding backend name. When
// EMBEDDING_PROVIDER is unset it inherits MODEL_PROVIDER, defaulting to
// "ollama" so a fresh install works against a local Ollama server.
func ResolveBackend() string {
	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		return v
	}
	return envOrDefault("MODEL_PROVIDER", "ollama")
}

// NewFromEnv constructs a rag.Embedder using cascading defaults that inherit
// from the chat model configuration when embedding-specific overrides are not
// set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER; if unset, inherits MODEL_PROVIDER (default: ollama)
//  2. Per-backend credentials are inherited from the chat backend's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
func NewFromEnv() (rag.Embedder, error) {
	backend := ResolveBackend()

	switch backend {
	case "ollama":
		host := os.Getenv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = envOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: envOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL: os.Getenv("EMBEDDING_ENDPOINT"),
			APIKey:  apiKey,
			Model:   envOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
		}), nil

	case "azure":
		apiKey := os.Getenv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := os.Getenv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL: endpoint + "/openai",
			APIKey:  apiKey,
			Model:   envOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Azure:   true,
		}), nil

	case "gemini", "bedrock":
		return nil, fmt.Errorf("embedder: %s embedding support is not yet implemented — set EMBEDDING_PROVIDER to ollama, openai, or azure", backend)

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, azure", backend)
	}
}

// envOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
