package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardrobe-labs/outfitter/internal/handlers"
	"github.com/wardrobe-labs/outfitter/internal/pipeline"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string
	var loadSnapshot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the Outfitter HTTP API on the specified port.

The API exposes the four pipeline operations: start a login session, harvest
and normalize purchases, select a model and request a recommendation.`,
		Example: `  # Start server on default port 7860
  outfitter serve

  # Start server with the last saved wardrobe already loaded
  outfitter serve --port 3000 --load-snapshot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := newPipeline(opts.cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := p.Close(); err != nil {
					slog.Warn("Failed to close session", "err", err)
				}
			}()

			if loadSnapshot {
				if status := p.LoadSnapshot(); status.Kind != pipeline.KindOK {
					slog.Warn("Starting without a wardrobe", "status", status.Kind, "message", status.Message)
				}
			}

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: handlers.New(p).Router(),
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Outfitter API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "7860", "Port to listen on")
	cmd.Flags().BoolVar(&loadSnapshot, "load-snapshot", false, "Load the saved wardrobe at startup")

	return cmd
}
