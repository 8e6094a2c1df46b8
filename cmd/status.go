package cmd

import (
	"time"

	"connectorctl/internal/cli"
	"connectorctl/pkg/connection"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *cli.CommandFlags) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "status [connector-id]",
		Short: "Show the connection state of connectors",
		Long: `Show the connection state of one or all connectors.

Statuses are remembered between invocations. Without --refresh the saved
copy is shown when there is one, which may be stale; connectors that were
never seen are fetched from the gateway. --refresh always asks the gateway.

Examples:
  connectorctl status
  connectorctl status github --refresh
  connectorctl status -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			if len(args) == 1 {
				return s.showStatus(cmd, args[0], refresh)
			}
			return s.showStatuses(cmd, refresh)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch fresh statuses from the gateway")
	return cmd
}

func (s *session) showStatus(cmd *cobra.Command, connectorID string, refresh bool) error {
	var (
		status connection.ConnectorStatus
		cached bool
		err    error
	)
	if !refresh {
		status, cached, err = s.app.CachedStatus(connectorID)
		if err != nil {
			s.printer.Warn("Ignoring saved statuses: %v", err)
		}
	}
	if !cached {
		status, err = s.app.Services().Orchestrator.RefreshStatus(cmd.Context(), connectorID)
		if err != nil {
			return err
		}
	}

	return s.printStatus(status)
}

func (s *session) showStatuses(cmd *cobra.Command, refresh bool) error {
	if !refresh {
		statuses, savedAt, ok, err := s.app.CachedStatuses()
		if err != nil {
			s.printer.Warn("Ignoring saved statuses: %v", err)
		}
		if ok && err == nil {
			s.printer.Info("Saved %s ago; use --refresh to update", time.Since(savedAt).Round(time.Second))
			return s.printer.Print(statuses)
		}
	}

	statuses, err := s.app.Services().Orchestrator.LoadAll(cmd.Context())
	if err != nil {
		if len(statuses) == 0 {
			return err
		}
		s.printer.Warn("Some statuses could not be fetched: %v", err)
	}
	return s.printer.Print(statuses)
}
