// Command pdfqa answers questions about uploaded documents. It provides a
// CLI (via Cobra) and an HTTP server exposing the same retrieval session.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/pdfqa-go/cmd/pdfqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
