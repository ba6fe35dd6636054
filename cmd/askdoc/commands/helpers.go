package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/askdoc/askdoc-go/internal/docqa"
	"github.com/askdoc/askdoc-go/internal/embedder"
	"github.com/askdoc/askdoc-go/internal/ingestion"
	"github.com/askdoc/askdoc-go/internal/llm"
	"github.com/askdoc/askdoc-go/internal/rag"
	"github.com/askdoc/askdoc-go/internal/search"
	"github.com/askdoc/askdoc-go/internal/store"
)

// stack bundles every collaborator the serve and ask commands need, together
// with a close function releasing the store and index connections.
type stack struct {
	store    *store.SQLiteStore
	index    *rag.QdrantIndex
	model    llm.Client
	pipeline *ingestion.Pipeline
	router   *docqa.Router
	close    func()
}

// buildStack wires the full answering stack from environment configuration:
// SQLite store, embedder, Qdrant index, ingestion pipeline, model client,
// web search client, orchestrator, and router.
func buildStack(ctx context.Context, log *slog.Logger) (*stack, error) {
	dbPath := os.Getenv("ASKDOC_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Info("store opened", slog.String("path", dbPath))

	if err := embedder.Validate(log); err != nil {
		st.Close()
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initialise embedder: %w", err)
	}
	embBackend := embedder.ResolveBackend()
	log.Info("embedder initialised", slog.String("provider", embBackend))

	index, err := rag.NewQdrantIndex(&rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connect to Qdrant: %w", err)
	}

	closeAll := func() {
		_ = index.Close()
		_ = st.Close()
	}

	pipeline, err := ingestion.NewPipeline(&ingestion.Config{
		Store:     st,
		Embedder:  emb,
		Index:     index,
		UploadDir: os.Getenv("UPLOAD_DIR"),
		ChunkSize: getEnvInt("CHUNK_SIZE", 0),
		Overlap:   getEnvInt("CHUNK_OVERLAP", 0),
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("create ingestion pipeline: %w", err)
	}

	model, err := llm.NewFromEnv(ctx)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("initialise model provider: %w", err)
	}
	log.Info("model initialised", slog.String("model", model.Model()))

	retriever, err := rag.NewRetriever(emb, index, getEnvInt("RETRIEVAL_TOP_K", rag.DefaultTopK))
	if err != nil {
		closeAll()
		return nil, err
	}

	orch, err := docqa.NewOrchestrator(&docqa.OrchestratorConfig{
		Retriever:     retriever,
		Index:         index,
		Chunks:        st,
		Model:         model,
		MinSimilarity: getEnvFloat32("MIN_SIMILARITY", 0),
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	searcher := search.NewClient(&search.ClientConfig{
		Endpoint:   os.Getenv("SEARCH_ENDPOINT"),
		MaxResults: getEnvInt("SEARCH_MAX_RESULTS", 0),
	})

	router, err := docqa.NewRouter(orch, model, searcher)
	if err != nil {
		closeAll()
		return nil, err
	}

	return &stack{
		store:    st,
		index:    index,
		model:    model,
		pipeline: pipeline,
		router:   router,
		close:    closeAll,
	}, nil
}

// getEnvOrDefault returns the env var value or def when unset.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the env var parsed as int, or def when unset or invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvFloat32 returns the env var parsed as float32, or def when unset or
// invalid.
func getEnvFloat32(key string, def float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return def
	}
	return float32(f)
}
