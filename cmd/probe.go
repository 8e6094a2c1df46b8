package cmd

import (
	"errors"
	"fmt"
	"time"

	"connectorctl/internal/backend"
	"connectorctl/internal/cli"
	"connectorctl/internal/probe"

	"github.com/spf13/cobra"
)

func newProbeCmd(flags *cli.CommandFlags) *cobra.Command {
	var userKey string

	cmd := &cobra.Command{
		Use:   "probe <connector-id>",
		Short: "Test the connection to an MCP connector",
		Long: `Test the connection to an MCP connector.

The connector's URL is contacted directly with an MCP initialize handshake,
using its API key settings when it has any. OAuth connectors are probed
without credentials since their tokens are held by the gateway.

Examples:
  connectorctl probe docs
  connectorctl probe search --user-key sk-123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := interruptible(cmd)
			defer stop()

			connector, err := s.app.Services().Backend.GetConnector(ctx, args[0])
			if err != nil {
				return err
			}
			if connector.Kind == backend.KindA2A {
				return &cli.UsageError{Reason: fmt.Errorf("%s is an %s connector; only MCP connectors can be probed", connector.ID, connector.Kind)}
			}

			progress := s.printer.Progress(fmt.Sprintf("Connecting to %s", connector.URL))
			result, err := s.app.Services().Prober.Probe(ctx, probe.Target{
				URL:     connector.URL,
				Auth:    connector.Auth.Config,
				UserKey: userKey,
			})
			if err != nil {
				progress.Fail(fmt.Sprintf("%s is not reachable", connector.ID))
				if errors.Is(err, probe.ErrAuthRequired) {
					return fmt.Errorf("%w\n\nCheck the connector's API key with 'connectorctl connectors get %s'", err, connector.ID)
				}
				return err
			}
			progress.Succeed(fmt.Sprintf("%s answered in %s", connector.ID, result.Latency.Round(time.Millisecond)))
			return s.printer.Print(result)
		},
	}

	cmd.Flags().StringVar(&userKey, "user-key", "", "API key to send for connectors whose key is supplied by each user")
	return cmd
}
