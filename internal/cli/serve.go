package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fmuoria/resume-screener/internal/api"
	"github.com/fmuoria/resume-screener/internal/metrics"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		port  int
		gmail bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API.

Endpoints:
  POST /api/sessions                        create a session from a job description
  PUT  /api/sessions/{id}/criteria          select and weight criteria
  POST /api/sessions/{id}/resumes           upload resumes
  POST /api/sessions/{id}/evaluate          score and rank candidates
  GET  /api/sessions/{id}/results           ranked candidates (also .csv and .xlsx)
  GET  /health, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := root.newApp(ctx, cfg, appOptions{
				gmail:    gmail,
				authCode: promptAuthCode(cmd.InOrStdin(), cmd.ErrOrStderr()),
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if !cfg.IsDev() && slices.Contains(cfg.CORSOrigins, "*") {
				a.logger.Warn("CORS allows every origin outside dev", slog.String("env", cfg.Env))
			}

			metrics.Register(prometheus.DefaultRegisterer)
			server := api.NewServer(a.agent, api.Options{
				CORSOrigins:       cfg.CORSOrigins,
				RequestsPerMinute: cfg.RequestsPerMinute,
				MaxUploadBytes:    cfg.MaxUploadBytes,
				Logger:            a.logger,
			})
			return serve(ctx, a.logger, &http.Server{
				Addr:              cfg.Addr(),
				Handler:           server.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}, cfg.ShutdownTimeout)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP port (overrides PORT)")
	cmd.Flags().BoolVar(&gmail, "gmail", true, "enable Gmail ingestion when credentials are present")
	return cmd
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully
func serve(ctx context.Context, logger *slog.Logger, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting resume screener", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
