package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/thereceipt/label-engine/internal/api"
	"github.com/thereceipt/label-engine/internal/engine"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket API without the dashboard",
		Long: `Starts the label engine API on the specified port. Templates, the editing
session and export jobs are managed over HTTP; progress is pushed over /ws.

The session is restored from the autosave file on start and saved again on
shutdown.`,
		Example: `  # Start server on the configured port (12212 by default)
  labelctl serve

  # Start server on custom port
  labelctl serve --port 3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := global.logger()

			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			eng, err := engine.New(cfg, logger)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.Session.Restore(cfg.AutosavePath()); err != nil {
				logger.Warn("Could not restore session", "err", err)
			}

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:    addr,
				Handler: api.NewServer(eng, logger).Handler(),
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Info("Label engine API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				logger.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("Server shutdown failed", "err", err)
					return err
				}
			case err := <-serverErr:
				return err
			}

			if err := eng.Session.Autosave(cfg.AutosavePath()); err != nil {
				logger.Error("Autosave failed", "err", err)
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on")

	return cmd
}
