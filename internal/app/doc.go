// Package app is connectorctl's composition root.
//
// NewApplication runs the bootstrap sequence for one CLI invocation:
//
//  1. Load config.yaml from the configuration directory (or use Config.Settings)
//  2. Apply command-line overrides and validate the result
//  3. Initialize logging
//  4. Create the services: gateway client, orchestrator with its poller
//     registry, metrics, drafts store and prober
//
// Services are plain structs handed to commands; nothing is registered
// globally, so tests can build an Application against a fake gateway.
//
// # Long-running modes
//
// Authorize starts an authorization flow and optionally waits for it to reach
// a terminal state, cancelling the flow if the command is interrupted.
//
// Watch refreshes every connector's status on an interval, streams status
// changes to a callback and optionally serves Prometheus metrics, until its
// context ends.
//
// Example:
//
//	application, err := app.NewApplication(app.NewConfig(configPath, ""))
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//
//	status, err := application.Authorize(ctx, "github", app.AuthorizeOptions{Wait: true})
package app
