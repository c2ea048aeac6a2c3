package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and Prometheus metrics",
	Long: `Serve the run history, on-demand page audits and scans over HTTP.

Routes: /health, /metrics, /api/runs, /api/runs/{id},
/api/runs/{id}/violations, /api/scan and /api/audit. Run history needs
store.path.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if cfg.Store.Path == "" {
			logger.Warn("store.path not set, run history disabled")
		}

		a, err := newApp(ctx, appOptions{stdoutSink: true, sinks: true})
		if err != nil {
			return err
		}
		defer a.Close()

		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           a.auditor.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server starting", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
