package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfqa-go/internal/store"
)

// NewHistoryCmd constructs the `pdfqa history` command, which prints the
// most recent turns from the transcript store.
func NewHistoryCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent questions and answers from the transcript",
		Long: `Show the most recent turns persisted by 'pdfqa serve', across all runs.
The transcript lives at PDFQA_HISTORY_DB (default ~/.pdfqa/history.db).

Examples:
  pdfqa history
  pdfqa history -n 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.EqualFold(strings.TrimSpace(os.Getenv("PDFQA_HISTORY_DB")), store.Disabled) {
				return fmt.Errorf("history: transcript is disabled (PDFQA_HISTORY_DB=%s)", store.Disabled)
			}
			hs, err := store.OpenFromEnv()
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			defer func() { _ = hs.Close() }()

			records, err := hs.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No history yet.")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(out, "[%s] Q: %s\n", r.CreatedAt.Local().Format(time.DateTime), r.Question)
				fmt.Fprintf(out, "A: %s\n\n", r.Answer)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of turns to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	return cmd
}
