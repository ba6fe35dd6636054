package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelFragments contains name fragments that identify
// chat/completion models which are NOT suitable for embedding. If
// EMBEDDING_MODEL matches any of these, a warning is emitted so the operator
// knows they may have misconfigured the pipeline.
var knownChatModelFragments = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"deepseek",
	"qwen",
	"vicuna",
	"falcon",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, fragment := range knownChatModelFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// Validate checks that the embedder configuration is usable before the first
// document is ingested. It returns an error if the configuration is clearly
// broken (e.g. azure backend with no API key), and logs a warning if
// EMBEDDING_MODEL looks like a chat model rather than an embedding model.
//
// This is a pre-flight check. Call it at startup so operators get a clear
// error instead of a cryptic failure during the first upload.
func Validate(log *slog.Logger) error {
	backend := ResolveBackend()

	if backend != "ollama" && os.Getenv("EMBEDDING_PROVIDER") == "" {
		log.Warn("embedder: EMBEDDING_PROVIDER is not set, inheriting chat backend for embeddings",
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure) to be explicit"),
		)
	}

	switch backend {
	case "openai":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "azure":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found — set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if os.Getenv("EMBEDDING_ENDPOINT") == "" && os.Getenv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found — set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}

	case "gemini", "bedrock":
		return fmt.Errorf("embedder: %s embedding is not yet implemented — set EMBEDDING_PROVIDER to ollama, openai, or azure", backend)
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small"),
		)
	}

	return nil
}
