package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/pdfqa-go/internal/logging"
	"github.com/54b3r/pdfqa-go/internal/server"
	"github.com/54b3r/pdfqa-go/internal/session"
	"github.com/54b3r/pdfqa-go/internal/store"
	"github.com/54b3r/pdfqa-go/internal/tracing"
)

// NewServeCmd constructs the `pdfqa serve` command, which starts the HTTP
// server around a single retrieval session.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pdfqa HTTP server",
		Long: `Start the pdfqa HTTP server.

Upload documents with POST /process_pdfs/ (multipart field "files"), ask with
POST /ask_question/ (form field "question") and read the conversation with
GET /chat_history/. JSON aliases live under /api. Uploading replaces the
previous documents; the conversation log is kept.

Examples:
  pdfqa serve
  pdfqa serve --port 9090
  MODEL_PROVIDER=openai EMBEDDING_PROVIDER=openai pdfqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			flush := tracing.Setup(log)
			defer flush()

			// The transcript is optional: failures disable it rather than
			// failing startup.
			var recorder session.Recorder
			hs, err := store.OpenFromEnv()
			switch {
			case err != nil:
				log.Warn("history: failed to open store, disabling", slog.Any("error", err))
			case hs == nil:
				log.Info("history: disabled via PDFQA_HISTORY_DB=disabled")
			default:
				recorder = hs
				defer func() { _ = hs.Close() }()
				log.Info("history: store opened", slog.String("run", hs.Run()))
			}

			rt, err := buildRuntime(ctx, log, recorder)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				if err := rt.Close(); err != nil {
					log.Warn("serve: close failed", slog.Any("error", err))
				}
			}()

			cfg := serverConfigFromEnv()
			if cmd.Flags().Changed("host") || cfg.Host == "" {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") || cfg.Port == 0 {
				cfg.Port = port
			}
			cfg.Logger = log
			cfg.Pingers = rt.pingers()

			srv, err := server.New(rt.session, cfg)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}
			defer func() { _ = srv.Close() }()

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env PDFQA_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env PDFQA_PORT)")

	return cmd
}

// serverConfigFromEnv reads PDFQA_HOST, PDFQA_PORT, MAX_UPLOAD_MB,
// CORS_ORIGINS and PDFQA_RATE_LIMIT. Unset values are left zero so
// server.New applies its defaults.
func serverConfigFromEnv() *server.Config {
	cfg := &server.Config{Host: os.Getenv("PDFQA_HOST")}
	if v, err := strconv.Atoi(os.Getenv("PDFQA_PORT")); err == nil {
		cfg.Port = v
	}
	if v, err := strconv.Atoi(os.Getenv("MAX_UPLOAD_MB")); err == nil && v > 0 {
		cfg.MaxUploadBytes = int64(v) << 20
	}
	if v, err := strconv.ParseFloat(os.Getenv("PDFQA_RATE_LIMIT"), 64); err == nil && v > 0 {
		cfg.RateLimit = v
		cfg.RateBurst = max(1, int(2*v))
	}
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg
}
