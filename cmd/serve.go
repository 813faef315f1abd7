package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Xazziri/Trivy-dashboard/internal/log"
	"github.com/Xazziri/Trivy-dashboard/internal/server"
	"github.com/Xazziri/Trivy-dashboard/pkg/metrics"
	"github.com/Xazziri/Trivy-dashboard/pkg/runner"
	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// newServeCmd creates the serve command: a static file server for the
// generated dashboard plus a Prometheus metrics endpoint, with scans
// run on a schedule in the same process so the run metrics are
// scrapeable.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard, rescan on an interval, and expose Prometheus metrics.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger := log.NewLogger(ctx)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen, _ = cmd.Flags().GetString("listen") //nolint:errcheck
			}

			interval, _ := cmd.Flags().GetDuration("interval") //nolint:errcheck
			if interval > 0 {
				m, err := metrics.NewWithRegistry(prometheus.DefaultRegisterer)
				if err != nil {
					return err
				}
				run, hosts, err := buildRunner(ctx, logger, cfg, m)
				if err != nil {
					return err
				}
				go scanLoop(ctx, logger, run, hosts, interval)
			}

			return server.Serve(ctx, logger, cfg.Listen, cfg.OutputDir)
		},
	}
	serveCmd.Flags().StringP("listen", "l", "", "Listen address, e.g. :8080")
	serveCmd.Flags().DurationP("interval", "i", time.Hour,
		"Time between scheduled scans; 0 serves the existing dashboard without scanning")
	return serveCmd
}

// scanLoop runs one full scan immediately and then one per tick until
// the context is canceled. A failed run is logged and the next tick
// proceeds, so a transient fleet problem does not stop the server.
func scanLoop(ctx context.Context, logger types.Logger, run *runner.Runner,
	hosts []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := run.Run(ctx, hosts); err != nil {
			logger.Error("scheduled scan failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
