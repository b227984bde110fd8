package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/mentord/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mentord HTTP server",
	Long: `Start the mentord HTTP server.

The server exposes the pipeline under /api/v1: starting runs, resuming
paused runs with corrections, abandoning runs, and recording feedback
on stored solutions. Prometheus metrics are served at /metrics.

Examples:
  # Start with defaults (localhost:8970)
  mentord serve

  # Configure via environment
  MENTORD_SERVER_HTTP_PORT=9090 mentord serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := httpapi.NewServer(a.orch, a.memory, a.logger, &httpapi.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		DisableMetrics: !a.cfg.Server.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		a.logger.Info(context.Background(), "shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
