// Command askdoc is the entry point for the askdoc document question-answering
// service. It provides a CLI interface (via Cobra) and an HTTP server exposing
// document upload and chat endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/askdoc/askdoc-go/cmd/askdoc/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
