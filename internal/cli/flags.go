package cli

import (
	"os"

	"connectorctl/internal/config"
	"connectorctl/internal/formatting"

	"github.com/spf13/cobra"
)

// BackendURLEnvVar overrides backend.url when --backend-url is not given.
const BackendURLEnvVar = "CONNECTORCTL_BACKEND_URL"

// CommandFlags holds the flag values shared by every command.
type CommandFlags struct {
	// OutputFormat specifies the desired output format (table, wide, json, yaml)
	OutputFormat string
	// NoHeaders suppresses the header row in table output
	NoHeaders bool
	// Quiet suppresses progress indicators and non-essential output
	Quiet bool
	// ConfigPath specifies the configuration directory
	ConfigPath string
	// LogLevel overrides logging.level
	LogLevel string
	// BackendURL overrides backend.url
	BackendURL string
}

// RegisterCommonFlags registers the shared flags as persistent flags of cmd.
//
// The registered flags are:
//   - --output/-o: Output format (table, wide, json, yaml), default: "table"
//   - --no-headers: Suppress header row in table output
//   - --quiet/-q: Suppress non-essential output
//   - --config-path: Configuration directory
//   - --log-level: Log level (debug, info, warn, error)
//   - --backend-url: Gateway URL (env: CONNECTORCTL_BACKEND_URL)
func RegisterCommonFlags(cmd *cobra.Command, flags *CommandFlags) {
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", "table", "Output format (table, wide, json, yaml)")
	cmd.PersistentFlags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress header row in table output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error (default from config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.BackendURL, "backend-url", os.Getenv(BackendURLEnvVar), "Gateway URL (env: "+BackendURLEnvVar+")")
}

// FormatterOptions validates the output flags and converts them.
func (f *CommandFlags) FormatterOptions(color bool) (formatting.Options, error) {
	format, err := formatting.ParseFormat(f.OutputFormat)
	if err != nil {
		return formatting.Options{}, &UsageError{Reason: err}
	}
	return formatting.Options{
		Format:    format,
		NoHeaders: f.NoHeaders,
		Color:     color,
	}, nil
}
