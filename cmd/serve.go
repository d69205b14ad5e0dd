package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/fizic37/Delcampe-sub011/internal/handlers"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for the sheet editor",
		Long: `Starts the Delcampe web API on the specified port.

The API accepts sheet uploads, reports reusable extractions of sheets seen
before, converts boundary drags from screen to image coordinates and crops
the sheet into one JPEG per cell.`,
		Example: `  # Start server on default port 8888
  delcampe serve

  # Start server on custom port with an external detector
  delcampe serve --port 3000 --detector "python3 detect_grid.py"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			lineColor, err := cfg.LineColor()
			if err != nil {
				return err
			}

			a, err := openApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			handler := handlers.New(handlers.Options{
				Deps:           a.deps,
				Store:          a.store,
				MaxUploadBytes: cfg.MaxUploadBytes,
				LineColor:      lineColor,
				UploadsDir:     cfg.Uploads(),
				ArtifactsDir:   cfg.Artifacts(),
			})

			// Set up routes
			mux := http.NewServeMux()
			handler.Routes(mux)

			addr := ":" + cfg.Port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Delcampe interface available", "addr", addr, "url", "http://localhost"+addr,
					"data_dir", cfg.DataDir, "strict", cfg.Strict)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
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

	cmd.Flags().StringP("port", "p", "8888", "Port to listen on (env DELCAMPE_PORT)")

	return cmd
}
