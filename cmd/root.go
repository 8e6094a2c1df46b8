package cmd

import (
	"errors"
	"fmt"
	"os"

	"connectorctl/internal/app"
	"connectorctl/internal/cli"
	"connectorctl/internal/orchestrator"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, gateway unreachable).
	ExitCodeError = 1
	// ExitCodeNoAuthRequired indicates the connector needs no authorization.
	ExitCodeNoAuthRequired = 2
	// ExitCodeAuthFailed indicates the authorization flow failed, timed out or
	// was refused by the gateway.
	ExitCodeAuthFailed = 3
	// ExitCodeInvalidConfig indicates invalid flags, config.yaml or auth config.
	ExitCodeInvalidConfig = 4
)

// commonFlags holds the persistent flags of rootCmd.
var commonFlags cli.CommandFlags

// rootCmd represents the base command for the connectorctl application.
var rootCmd *cobra.Command

func init() {
	rootCmd = newRootCmd(&commonFlags)
}

func newRootCmd(flags *cli.CommandFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "connectorctl",
		Short: "Manage connectors and their authorization on a connector gateway",
		Long: `connectorctl registers MCP and A2A connectors on a connector gateway,
edits their authentication settings and drives OAuth authorization flows:
it opens the consent screen, polls the gateway until the connector is
connected and cancels, revokes or restarts authorizations on request.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		// Errors are printed by Execute with hints attached.
		SilenceErrors: true,
	}

	cli.RegisterCommonFlags(root, flags)

	root.AddCommand(newConnectorsCmd(flags))
	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newAuthorizeCmd(flags))
	root.AddCommand(newCancelCmd(flags))
	root.AddCommand(newRevokeCmd(flags))
	root.AddCommand(newReinitializeCmd(flags))
	root.AddCommand(newWatchCmd(flags))
	root.AddCommand(newAuthCmd(flags))
	root.AddCommand(newProbeCmd(flags))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newSelfUpdateCmd())

	return root
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "connectorctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		if !app.IsInterrupted(err) {
			fmt.Fprintln(os.Stderr, cli.FormatError(errors.New(cli.Describe(err))))
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, orchestrator.ErrNoAuthorizationRequired):
		return ExitCodeNoAuthRequired
	case cli.IsAuthFailure(err):
		return ExitCodeAuthFailed
	case cli.IsInvalidConfig(err):
		return ExitCodeInvalidConfig
	}
	return ExitCodeError
}
