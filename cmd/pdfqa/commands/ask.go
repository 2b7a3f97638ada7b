package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfqa-go/internal/logging"
	"github.com/54b3r/pdfqa-go/internal/rag"
	"github.com/54b3r/pdfqa-go/internal/tracing"
)

// NewAskCmd constructs the `pdfqa ask` command, which ingests the given
// files in-process and answers one question from them.
func NewAskCmd() *cobra.Command {
	var files []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask --file <doc> [--file <doc>...] <question>",
		Short: "Answer one question from local documents",
		Long: `Ingest one or more local documents and answer a single question from them.
Nothing is persisted: the index lives only for the duration of the command.

Examples:
  pdfqa ask --file manual.pdf "How do I reset the boiler?"
  pdfqa ask -f a.pdf -f notes.md --json "What is the warranty period?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			if len(files) == 0 {
				return fmt.Errorf("ask: at least one --file is required")
			}
			docs, err := readFiles(files)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			flush := tracing.Setup(log)
			defer flush()

			rt, err := buildRuntime(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = rt.Close() }()

			if _, err := rt.session.Ingest(ctx, docs); err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			answer, err := rt.session.Query(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			return printAnswer(cmd.OutOrStdout(), answer, asJSON)
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Document to ingest (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")

	return cmd
}

// readFiles loads each path as a document named after its base name.
func readFiles(paths []string) ([]rag.Document, error) {
	docs := make([]rag.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", p, err)
		}
		docs = append(docs, rag.Document{Name: filepath.Base(p), Data: data})
	}
	return docs, nil
}

// printAnswer writes the answer and its citations.
func printAnswer(w io.Writer, answer rag.Answer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	fmt.Fprintln(w, answer.Response)
	if len(answer.Citations) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nSources:")
	for i, c := range answer.Citations {
		page := "Unknown"
		if c.Page > 0 {
			page = fmt.Sprintf("%d", c.Page)
		}
		fmt.Fprintf(w, "  [%d] page %s: %s\n", i+1, page, snippet(c.Content, 120))
	}
	return nil
}

// snippet collapses whitespace and truncates s to n runes.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
