package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"connectorctl/internal/config"
	"connectorctl/internal/metrics"
	"connectorctl/internal/orchestrator"
	"connectorctl/internal/poller"
	"connectorctl/pkg/connection"
	"connectorctl/pkg/logging"
)

// AuthorizeOptions configures Authorize.
type AuthorizeOptions struct {
	// Wait blocks until the flow ends.
	Wait bool

	// OnStarted is called once the authorization URL is known.
	OnStarted func(orchestrator.InitiateResult)

	// OnEvent receives intermediate status changes while waiting.
	OnEvent func(orchestrator.StatusEvent)
}

// Authorize starts the authorization flow of connectorID. With opts.Wait it
// blocks until the flow reaches a terminal state and returns that status.
//
// When ctx ends while waiting the flow is cancelled. A flow that outlives the
// configured lifetime returns orchestrator.ErrFlowTimeout; a flow that ends in
// the error state returns its status and a nil error.
func (a *Application) Authorize(ctx context.Context, connectorID string, opts AuthorizeOptions) (connection.ConnectorStatus, error) {
	orch := a.services.Orchestrator

	var (
		once  sync.Once
		done  = make(chan struct{})
		final orchestrator.StatusEvent
	)
	unsubscribe := orch.Subscribe(connectorID, func(ev orchestrator.StatusEvent) {
		if isFlowEnd(ev) {
			once.Do(func() {
				final = ev
				close(done)
			})
			return
		}
		if opts.OnEvent != nil {
			opts.OnEvent(ev)
		}
	})
	defer unsubscribe()

	res, err := orch.InitiateAuthorization(ctx, connectorID)
	if err != nil {
		return connection.ConnectorStatus{}, err
	}
	if opts.OnStarted != nil {
		opts.OnStarted(res)
	}

	if !opts.Wait {
		if status, ok := orch.GetStatus(connectorID); ok {
			return status, nil
		}
		return connection.ConnectorStatus{
			ConnectorID:  connectorID,
			State:        connection.StateConnecting,
			RequiresAuth: true,
		}, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		logging.Info("Authorize", "Cancelling authorization of %s", connectorID)
		timeout := a.settings.Backend.Timeout
		if timeout <= 0 {
			timeout = config.DefaultTimeout
		}
		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := orch.CancelAuthorization(cancelCtx, connectorID); err != nil {
			logging.Warn("Authorize", "Failed to cancel authorization of %s: %v", connectorID, err)
		}
		return connection.Disconnected(connectorID), ctx.Err()
	}

	switch final.Source {
	case orchestrator.SourceTimeout:
		return final.Status, orchestrator.ErrFlowTimeout
	case orchestrator.SourceCancel, orchestrator.SourceRevoke:
		return final.Status, orchestrator.ErrFlowCanceled
	}
	return final.Status, nil
}

func isFlowEnd(ev orchestrator.StatusEvent) bool {
	switch ev.Source {
	case orchestrator.SourceTimeout, orchestrator.SourceCancel, orchestrator.SourceRevoke:
		return true
	case orchestrator.SourcePoll:
		return ev.Status.State.IsTerminal()
	}
	return false
}

// Cancel stops the authorization flow of connectorID. A flow started by an
// earlier invocation is only known to the gateway; it is cancelled there and
// the status refreshed.
func (a *Application) Cancel(ctx context.Context, connectorID string) error {
	orch := a.services.Orchestrator
	for _, f := range orch.ActiveFlows() {
		if f.ConnectorID == connectorID {
			return orch.CancelAuthorization(ctx, connectorID)
		}
	}

	resp, err := a.services.Backend.Cancel(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("failed to cancel authorization on the gateway for %s: %w", connectorID, err)
	}
	if !resp.Success {
		return &orchestrator.ActionError{ConnectorID: connectorID, Action: "cancel", Message: resp.Message}
	}
	if _, err := orch.RefreshStatus(ctx, connectorID); err != nil {
		logging.Warn("Cancel", "Status refresh after cancelling %s failed: %v", connectorID, err)
	}
	return nil
}

// WatchOptions configures Watch.
type WatchOptions struct {
	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string

	// RefreshInterval re-reads every connector's status. Zero uses the
	// configured polling interval.
	RefreshInterval time.Duration

	// OnSnapshot receives the result of each full refresh.
	OnSnapshot func([]connection.ConnectorStatus)

	// OnEvent receives every status change.
	OnEvent func(orchestrator.StatusEvent)
}

// Watch keeps the status cache of all connectors fresh until ctx ends.
func (a *Application) Watch(ctx context.Context, opts WatchOptions) error {
	orch := a.services.Orchestrator

	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = a.settings.Polling.Interval
	}
	if interval <= 0 {
		interval = poller.DefaultInterval
	}

	if opts.OnEvent != nil {
		defer orch.SubscribeAll(opts.OnEvent)()
	}

	// The server shuts itself down when ctx ends.
	_, srvErr := metrics.StartServer(ctx, opts.MetricsAddr, a.services.Metrics.Handler())

	refresh := func() {
		statuses, err := orch.LoadAll(ctx)
		if err != nil && ctx.Err() == nil {
			logging.Warn("Watch", "Failed to refresh some connectors: %v", err)
		}
		if opts.OnSnapshot != nil && ctx.Err() == nil {
			opts.OnSnapshot(statuses)
		}
	}

	logging.Info("Watch", "Watching connectors every %s", interval)
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Watch", "Stopping")
			return nil
		case err, ok := <-srvErr:
			if ok && err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			srvErr = nil
		case <-ticker.C:
			refresh()
		}
	}
}

// IsInterrupted reports whether err came from the user stopping a command.
func IsInterrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}
