package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/askdoc/askdoc-go/internal/docqa"
	"github.com/askdoc/askdoc-go/internal/logging"
)

// NewAskCmd constructs the `askdoc ask` command, which answers a single
// question from the command line and prints the answer to stdout.
func NewAskCmd() *cobra.Command {
	var documentID string
	var useInternet bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about a document, or chat generally",
		Long: `Ask a single question and print the answer.

With --document the question is answered from the document's indexed content.
Without it the question goes to general chat, with web search pulled in
automatically when the question needs current information (or with --internet).

Examples:
  askdoc ask --document 3f2a... "what are the termination clauses?"
  askdoc ask --document 3f2a... "summarize this document"
  askdoc ask "what is retrieval augmented generation?"
  askdoc ask --internet "who won the latest world cup?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			stk, err := buildStack(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer stk.close()

			answer, err := stk.router.Ask(ctx, &docqa.Request{
				Question:    args[0],
				DocumentID:  documentID,
				UseInternet: useInternet,
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer.Text)

			if len(answer.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, src := range answer.Sources {
					if src.URL != "" {
						fmt.Printf("  %d. %s (%s)\n", i+1, src.Title, src.URL)
						continue
					}
					fmt.Printf("  %d. %s\n", i+1, src.Content)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&documentID, "document", "d", "", "Document ID to answer from")
	cmd.Flags().BoolVar(&useInternet, "internet", false, "Force web search for the answer")

	return cmd
}
