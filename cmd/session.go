package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"connectorctl/internal/app"
	"connectorctl/internal/cli"

	"github.com/spf13/cobra"
)

// session is what a command works with: the application built from the
// common flags and a printer bound to the command's output streams.
type session struct {
	app     *app.Application
	printer *cli.Printer
}

// openSession validates the output flags, loads the configuration and wires
// the services. Callers must Close the session.
func openSession(cmd *cobra.Command, flags *cli.CommandFlags, noBrowser bool) (*session, error) {
	printer, err := newPrinter(cmd, flags)
	if err != nil {
		return nil, err
	}

	application, err := app.NewApplication(&app.Config{
		ConfigPath: flags.ConfigPath,
		LogLevel:   flags.LogLevel,
		BackendURL: flags.BackendURL,
		NoBrowser:  noBrowser,
		Version:    GetVersion(),
		LogOutput:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	return &session{app: application, printer: printer}, nil
}

// newPrinter creates a printer for commands that do not talk to the gateway.
func newPrinter(cmd *cobra.Command, flags *cli.CommandFlags) (*cli.Printer, error) {
	opts, err := flags.FormatterOptions(colorEnabled(cmd.OutOrStdout()))
	if err != nil {
		return nil, err
	}
	return cli.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), flags.Quiet, opts), nil
}

func (s *session) Close() {
	s.app.Close()
}

// interruptible returns a context that ends on SIGINT or SIGTERM.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// colorEnabled reports whether w is a terminal and NO_COLOR is unset.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
