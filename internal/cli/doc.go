// Package cli provides the command-line helpers shared by connectorctl's
// commands.
//
//   - CommandFlags and RegisterCommonFlags define the global flags
//     (--output, --no-headers, --quiet, --config-path, --log-level,
//     --backend-url).
//   - Printer sends results to stdout through a formatting.Formatter and
//     human messages to stderr, so `-o json` output can be piped.
//   - Progress wraps a spinner for commands that wait on the gateway.
//   - AuthFailedError and UsageError, together with IsAuthFailure and
//     IsInvalidConfig, let the root command map failures to exit codes.
//   - Describe adds actionable hints to gateway and configuration errors.
package cli
