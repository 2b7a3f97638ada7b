// Package commands defines all Cobra CLI commands for the pdfqa binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfqa-go/internal/audit"
	"github.com/54b3r/pdfqa-go/internal/config"
	"github.com/54b3r/pdfqa-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// envFile holds the --env-file flag value.
var envFile string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdfqa",
		Short: "pdfqa: ask questions about your PDFs",
		Long: `pdfqa ingests PDF, text and markdown documents into a searchable index
and answers natural language questions from their content, citing the pages
it used.

The chat model is selected via MODEL_PROVIDER and the embedding backend via
EMBEDDING_PROVIDER, from the environment, a .env file or a YAML config file
(~/.pdfqa/config.yaml).
See 'pdfqa --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// .env first, then YAML; neither overrides the real environment.
			loaded, err := config.LoadDotEnv(envFile)
			if err != nil {
				return err
			}
			if loaded {
				log.Debug("config: loaded env file", slog.String("path", envFile))
			}
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// Files may have changed LOG_LEVEL/LOG_FORMAT.
			log = logging.New()
			slog.SetDefault(log)
			cmd.SetContext(logging.WithLogger(cmd.Context(), log))

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.pdfqa/config.yaml)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file; ignored when missing")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewHistoryCmd(),
		NewVersionCmd(),
	)

	return root
}
