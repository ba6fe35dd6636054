package llm

import (
	"context"
	"fmt"
	"os"
	"strconv"

	einoark "github.com/cloudwego/eino-ext/components/model/ark"
	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"google.golang.org/genai"
)

// Backend enumerates the supported chat model backends.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// Config holds backend selection and tuning resolved from environment
// variables or explicit caller-supplied values.
type Config struct {
	// Backend identifies which backend to use.
	Backend Backend
	// Model is the model name or deployment ID (e.g. "llama3", "gpt-4o").
	Model string
	// BaseURL overrides the default API endpoint (required for Azure).
	BaseURL string
	// APIKey is the authentication credential for the selected backend.
	APIKey string
	// AzureAPIVersion is the Azure OpenAI REST API version (Azure only).
	AzureAPIVersion string
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0-1.0).
	Temperature float32
}

// NewFromEnv constructs a Client by reading backend configuration from
// environment variables. MODEL_PROVIDER selects the backend; each backend
// uses its own native credential env vars.
//
// Environment variables:
//
//	MODEL_PROVIDER = ollama | openai | azure | bedrock | gemini (default: ollama)
//
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o)
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Bedrock: BEDROCK_API_KEY, BEDROCK_ENDPOINT, BEDROCK_MODEL_ID
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-pro)
//
//	Shared:  MODEL_MAX_TOKENS (default: 2048), MODEL_TEMPERATURE (default: 0.7)
func NewFromEnv(ctx context.Context) (Client, error) {
	backend := Backend(envString("MODEL_PROVIDER", string(BackendOllama)))

	cfg := &Config{
		Backend:     backend,
		MaxTokens:   envNum("MODEL_MAX_TOKENS", 2048),
		Temperature: envFloat("MODEL_TEMPERATURE", 0.7),
	}

	switch backend {
	case BackendOllama:
		cfg.BaseURL = envString("OLLAMA_HOST", "http://localhost:11434")
		cfg.Model = envString("OLLAMA_MODEL", "llama3")
	case BackendOpenAI:
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.Model = envString("OPENAI_MODEL", "gpt-4o")
	case BackendAzure:
		cfg.APIKey = os.Getenv("AZURE_OPENAI_API_KEY")
		cfg.BaseURL = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.Model = os.Getenv("AZURE_OPENAI_DEPLOYMENT")
		cfg.AzureAPIVersion = envString("AZURE_OPENAI_API_VERSION", "2024-02-01")
	case BackendBedrock:
		cfg.APIKey = os.Getenv("BEDROCK_API_KEY")
		cfg.BaseURL = os.Getenv("BEDROCK_ENDPOINT")
		cfg.Model = os.Getenv("BEDROCK_MODEL_ID")
	case BackendGemini:
		cfg.APIKey = os.Getenv("GOOGLE_API_KEY")
		cfg.Model = envString("GEMINI_MODEL", "gemini-1.5-pro")
	}

	return New(ctx, cfg)
}

// New constructs a Client from an explicit Config, delegating to the
// appropriate backend constructor. Misconfiguration is reported here so
// callers get a clear error at startup rather than on the first question.
func New(ctx context.Context, cfg *Config) (Client, error) {
	switch cfg.Backend {
	case BackendOllama:
		return NewOllamaClient(&OllamaClientConfig{
			Host:        cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil

	case BackendOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: OPENAI_API_KEY is required for openai backend")
		}
		chatModel, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("llm: create openai client: %w", err)
		}
		return NewEinoClient(chatModel, "openai", cfg.Model), nil

	case BackendAzure:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: AZURE_OPENAI_API_KEY is required for azure backend")
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm: AZURE_OPENAI_ENDPOINT is required for azure backend")
		}
		if cfg.Model == "" {
			return nil, fmt.Errorf("llm: AZURE_OPENAI_DEPLOYMENT is required for azure backend")
		}
		chatModel, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			ByAzure:     true,
			APIVersion:  cfg.AzureAPIVersion,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
			// Use the deployment name as-is; the default mapper strips
			// dots and colons, which breaks names like "gpt-4.1".
			AzureModelMapperFunc: func(model string) string { return model },
		})
		if err != nil {
			return nil, fmt.Errorf("llm: create azure client: %w", err)
		}
		return NewEinoClient(chatModel, "azure", cfg.Model), nil

	case BackendBedrock:
		if cfg.Model == "" {
			return nil, fmt.Errorf("llm: BEDROCK_MODEL_ID is required for bedrock backend")
		}
		// Ark speaks an OpenAI-compatible protocol; pointed at a
		// Bedrock-compatible endpoint it covers the Bedrock case until a
		// dedicated implementation lands in eino-ext.
		maxTokens := cfg.MaxTokens
		temp := cfg.Temperature
		chatModel, err := einoark.NewChatModel(ctx, &einoark.ChatModelConfig{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			MaxTokens:   &maxTokens,
			Temperature: &temp,
		})
		if err != nil {
			return nil, fmt.Errorf("llm: create bedrock client: %w", err)
		}
		return NewEinoClient(chatModel, "bedrock", cfg.Model), nil

	case BackendGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: GOOGLE_API_KEY is required for gemini backend")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("llm: create gemini client: %w", err)
		}
		chatModel, err := einogemini.NewChatModel(ctx, &einogemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("llm: create gemini chat model: %w", err)
		}
		return NewEinoClient(chatModel, "gemini", cfg.Model), nil

	default:
		return nil, fmt.Errorf("llm: unknown backend %q — valid values: ollama, openai, azure, bedrock, gemini", cfg.Backend)
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envNum(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
