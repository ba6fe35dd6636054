package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc-go/internal/logging"
	"github.com/askdoc/askdoc-go/internal/server"
	"github.com/askdoc/askdoc-go/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
)

// NewServeCmd constructs the `askdoc serve` command, which starts the HTTP
// server exposing document upload and chat endpoints.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the askdoc HTTP server",
		Long: `Start the askdoc HTTP server on localhost.

The server exposes a REST API for document upload, document-scoped question
answering, summarization, general chat, and web-search-backed chat.

Examples:
  askdoc serve
  askdoc serve --port 9090
  MODEL_PROVIDER=azure askdoc serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Config-file values surface as env vars; explicit flags win.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("ASKDOC_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("ASKDOC_PORT", port)
			}

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			stk, err := buildStack(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stk.close()

			pingers := []server.Pinger{
				server.NewModelPinger(stk.model, getEnvOrDefault("MODEL_PROVIDER", "ollama")),
				server.NewQdrantPinger(stk.index.Client()),
			}

			srv, err := server.New(
				&server.Deps{Pipeline: stk.pipeline, Router: stk.router, Store: stk.store},
				&server.Config{
					Host:    host,
					Port:    port,
					Logger:  log,
					Pingers: pingers,
					APIKey:  os.Getenv("ASKDOC_API_KEY"),
				},
				prometheus.DefaultRegisterer,
			)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
