package cmd

import (
	"errors"
	"fmt"
	"sync"

	"connectorctl/internal/app"
	"connectorctl/internal/cli"
	"connectorctl/internal/orchestrator"
	"connectorctl/pkg/connection"

	"github.com/spf13/cobra"
)

func newAuthorizeCmd(flags *cli.CommandFlags) *cobra.Command {
	var (
		wait      bool
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:     "authorize <connector-id>",
		Aliases: []string{"connect"},
		Short:   "Start the OAuth authorization of a connector",
		Long: `Start the OAuth authorization of a connector.

The gateway returns a consent URL, which is opened in the browser (unless
--no-browser or browser.open: false) and printed. With --wait the command
polls the gateway until the connector is connected, the flow fails or the
flow's lifetime (polling.maxFlowLifetime) runs out. Interrupting a waiting
command cancels the flow.

Exit codes:
  0  connected (or flow started, without --wait)
  2  the connector does not require authorization
  3  the authorization failed or timed out

Examples:
  connectorctl authorize github --wait
  connectorctl authorize github --no-browser`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd)
			defer stop()

			s, err := openSession(cmd, flags, noBrowser)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			var (
				mu       sync.Mutex
				progress *cli.Progress
			)
			status, err := s.app.Authorize(ctx, id, app.AuthorizeOptions{
				Wait: wait,
				OnStarted: func(res orchestrator.InitiateResult) {
					s.printer.Info("Authorize %s at:\n  %s", id, res.AuthorizationURL)
					if !wait {
						return
					}
					mu.Lock()
					defer mu.Unlock()
					progress = s.printer.Progress(fmt.Sprintf("Waiting for %s to be authorized", id))
				},
				OnEvent: func(ev orchestrator.StatusEvent) {
					mu.Lock()
					defer mu.Unlock()
					if progress == nil {
						return
					}
					if ev.Err != nil {
						progress.Update(fmt.Sprintf("Waiting for %s to be authorized (last poll failed: %v)", id, ev.Err))
						return
					}
					progress.Update(fmt.Sprintf("Waiting for %s to be authorized (%s)", id, ev.Status.State))
				},
			})

			mu.Lock()
			p := progress
			mu.Unlock()
			if p == nil {
				p = &cli.Progress{}
			}

			switch {
			case errors.Is(err, orchestrator.ErrNoAuthorizationRequired):
				s.printer.Info("%s does not require authorization", id)
				return err
			case app.IsInterrupted(err):
				p.Fail(fmt.Sprintf("Cancelled the authorization of %s", id))
				return err
			case errors.Is(err, orchestrator.ErrFlowTimeout):
				p.Fail(fmt.Sprintf("Authorization of %s timed out", id))
				return &cli.AuthFailedError{ConnectorID: id, Reason: err}
			case err != nil:
				p.Fail(fmt.Sprintf("Authorization of %s did not complete", id))
				return err
			}

			if wait {
				if status.State == connection.StateError {
					p.Fail(fmt.Sprintf("Authorization of %s failed", id))
					reason := status.LastError
					if reason == "" {
						reason = "the gateway reported an error"
					}
					return &cli.AuthFailedError{ConnectorID: id, Reason: errors.New(reason)}
				}
				p.Succeed(fmt.Sprintf("%s is %s", id, status.State))
			}
			return s.printStatus(status)
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait until the flow completes")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Only print the authorization URL")
	return cmd
}

func newCancelCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <connector-id>",
		Short: "Cancel a pending authorization",
		Long: `Cancel a pending authorization flow.

The gateway invalidates the flow and the connector returns to disconnected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			if err := s.app.Cancel(cmd.Context(), id); err != nil {
				return err
			}
			s.printer.Success("Cancelled the authorization of %s", id)
			return s.printCachedStatus(id)
		},
	}
}

func newRevokeCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <connector-id>",
		Short: "Revoke a connector's credentials",
		Long: `Revoke a connector's credentials.

The gateway deletes the stored tokens; the connector is disconnected until
it is authorized again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			message, err := s.app.Services().Orchestrator.RevokeAuthorization(cmd.Context(), id)
			if err != nil {
				return err
			}
			s.printer.Success("%s: %s", id, message)
			return s.printCachedStatus(id)
		},
	}
}

func newReinitializeCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "reinitialize <connector-id>",
		Aliases: []string{"reinit"},
		Short:   "Re-run the credential exchange of a connected connector",
		Long: `Re-run the credential exchange of a connected connector.

The gateway answers synchronously; its message is printed as is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags, true)
			if err != nil {
				return err
			}
			defer s.Close()

			id := args[0]
			message, err := s.app.Services().Orchestrator.ReinitializeAuthorization(cmd.Context(), id)
			if err != nil {
				return err
			}
			s.printer.Success("%s: %s", id, message)
			return s.printCachedStatus(id)
		},
	}
}

// printStatus prints one status: a single object in json and yaml, a
// one-row table otherwise.
func (s *session) printStatus(status connection.ConnectorStatus) error {
	if s.printer.Structured() {
		return s.printer.Print(status)
	}
	return s.printer.Print([]connection.ConnectorStatus{status})
}

// printCachedStatus prints the status an action left behind, for scripts
// using -o json or -o yaml.
func (s *session) printCachedStatus(connectorID string) error {
	if !s.printer.Structured() {
		return nil
	}
	status, ok := s.app.Services().Orchestrator.GetStatus(connectorID)
	if !ok {
		return nil
	}
	return s.printer.Print(status)
}
