package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc-go/internal/logging"
)

// NewUploadCmd constructs the `askdoc upload` command, which ingests one or
// more local files: extraction, chunking, embedding, and indexing run
// synchronously so the documents are ready to query when the command exits.
func NewUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [file...]",
		Short: "Upload and index documents for question answering",
		Long: `Upload local PDF, text, or Markdown files and index them.

Each file is chunked, embedded, and written to the vector store. The
printed document ID is what 'askdoc ask --document' and the HTTP API use
to scope questions.

Examples:
  askdoc upload contract.pdf
  askdoc upload notes.md meeting.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			stk, err := buildStack(ctx, log)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			defer stk.close()

			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("upload: open %s: %w", path, err)
				}

				doc, err := stk.pipeline.Upload(ctx, filepath.Base(path), f)
				f.Close()
				if err != nil {
					return fmt.Errorf("upload: %s: %w", path, err)
				}

				if err := stk.pipeline.Process(ctx, doc); err != nil {
					return fmt.Errorf("upload: process %s: %w", path, err)
				}

				fmt.Printf("%s  %s\n", doc.ID, doc.Filename)
			}
			return nil
		},
	}

	return cmd
}
