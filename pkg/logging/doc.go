// Package logging provides the structured logging used throughout connectorctl.
//
// It wraps Go's standard slog package with subsystem-tagged helper functions so
// that every component logs in the same shape:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Orchestrator", "Authorization flow started for %s", id)
//	logging.Debug("Poller", "Tick for %s returned %s", id, state)
//	logging.Error("Backend", err, "Status fetch failed for %s", id)
//
// # Output formats
//
// Init selects between a text handler (the default, human readable) and a JSON
// handler for log shipping:
//
//	logging.Init(logging.LevelDebug, logging.FormatJSON, os.Stderr)
//
// # Library loggers
//
// Components that accept a *slog.Logger (for example the gateway REST client and
// its retrying transport) get one from Logger, which is pre-tagged with the
// subsystem attribute.
//
// All functions are safe for concurrent use. Messages logged before Init are
// dropped unless they are warnings or errors, which go to stderr.
package logging
