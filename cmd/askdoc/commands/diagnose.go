package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc-go/internal/embedder"
	"github.com/askdoc/askdoc-go/internal/llm"
	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/rag"
	"github.com/askdoc/askdoc-go/internal/store"
)

// NewDiagnoseCmd constructs the `askdoc diagnose` command, which checks every
// dependency the service needs and reports what is reachable.
func NewDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check model, embedding, Qdrant, and database connectivity",
		Long: `Run connectivity checks against every configured dependency:

  - model backend (and the models it serves, where listable)
  - embedding configuration
  - Qdrant vector store
  - SQLite database path

Exits non-zero when any check fails, so it can gate deployment scripts.

Examples:
  askdoc diagnose
  MODEL_PROVIDER=openai askdoc diagnose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			failed := 0
			check := func(name string, err error) {
				if err != nil {
					failed++
					fmt.Printf("FAIL  %-12s %v\n", name, err)
					return
				}
				fmt.Printf("ok    %s\n", name)
			}

			// Model backend.
			model, err := llm.NewFromEnv(ctx)
			check("model", err)
			if err == nil {
				availErr := model.CheckAvailability(ctx)
				check("model reach", availErr)
				if availErr == nil {
					if models, lerr := model.ListModels(ctx); lerr == nil && len(models) > 0 {
						fmt.Printf("      models: %s\n", strings.Join(models, ", "))
					}
				}
			}

			// Embedding configuration.
			check("embedding", embedder.Validate(log))

			// Qdrant.
			embBackend := embedder.ResolveBackend()
			index, err := rag.NewQdrantIndex(&rag.QdrantConfig{
				Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
				Port:       getEnvInt("QDRANT_PORT", 6334),
				VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				UseTLS:     os.Getenv("QDRANT_TLS") == "true",
			})
			if err == nil {
				_, herr := index.Client().HealthCheck(ctx)
				check("qdrant", herr)
				_ = index.Close()
			} else {
				check("qdrant", err)
			}

			// Database.
			dbPath := os.Getenv("ASKDOC_DB")
			if dbPath == "" {
				dbPath, err = store.DefaultDBPath()
				check("database", err)
			}
			if dbPath != "" {
				st, serr := store.Open(dbPath)
				check("database open", serr)
				if serr == nil {
					_ = st.Close()
				}
			}

			if failed > 0 {
				return fmt.Errorf("diagnose: %d check(s) failed", failed)
			}
			fmt.Println("all checks passed")
			return nil
		},
	}

	return cmd
}
