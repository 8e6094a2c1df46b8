package cmd

import (
	"sync"
	"time"

	"connectorctl/internal/app"
	"connectorctl/internal/cli"
	"connectorctl/internal/orchestrator"
	"connectorctl/pkg/connection"

	"github.com/spf13/cobra"
)

func newWatchCmd(flags *cli.CommandFlags) *cobra.Command {
	var (
		metricsAddr string
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the status of every connector",
		Long: `Follow the status of every connector until interrupted.

The statuses are printed once, then every change is printed as it is seen.
With -o json or -o yaml each change is written as one document.

--metrics-addr serves Prometheus metrics about status fetches and gateway
actions while watching.

Examples:
  connectorctl watch
  connectorctl watch --interval 30s -o json
  connectorctl watch --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := interruptible(cmd)
			defer stop()

			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			// Events arrive from refresh goroutines.
			var (
				mu    sync.Mutex
				first = true
			)
			printErr := func(err error) {
				if err != nil {
					s.printer.Warn("Failed to print: %v", err)
				}
			}

			if metricsAddr != "" {
				s.printer.Info("Serving metrics on %s/metrics", metricsAddr)
			}
			return s.app.Watch(ctx, app.WatchOptions{
				MetricsAddr:     metricsAddr,
				RefreshInterval: interval,
				OnSnapshot: func(statuses []connection.ConnectorStatus) {
					mu.Lock()
					defer mu.Unlock()
					if !first {
						return
					}
					first = false
					if !s.printer.Structured() {
						printErr(s.printer.Print(statuses))
					}
				},
				OnEvent: func(ev orchestrator.StatusEvent) {
					mu.Lock()
					defer mu.Unlock()
					if first {
						// Part of the initial snapshot, printed as a table.
						if s.printer.Structured() {
							printErr(s.printer.Print(ev))
						}
						return
					}
					if ev.OldState == ev.Status.State && ev.Source == orchestrator.SourceRefresh {
						return
					}
					printErr(s.printer.Print(ev))
				},
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Refresh interval (default: polling.interval)")
	return cmd
}
