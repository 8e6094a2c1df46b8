package app

import (
	"fmt"

	"connectorctl/internal/backend"
	"connectorctl/internal/browser"
	"connectorctl/internal/config"
	"connectorctl/internal/drafts"
	"connectorctl/internal/metrics"
	"connectorctl/internal/orchestrator"
	"connectorctl/internal/poller"
	"connectorctl/internal/probe"
	"connectorctl/pkg/logging"
)

// Services holds the components a command works with. Everything is created
// here and passed down explicitly; no package keeps global instances.
type Services struct {
	// Backend is the gateway REST client.
	Backend *backend.Client

	// Orchestrator owns the authorization flows and the status cache.
	Orchestrator *orchestrator.Orchestrator

	Metrics *metrics.FlowMetrics
	Storage *config.Storage
	Drafts  *drafts.Store
	Prober  *probe.Prober
}

// InitializeServices creates the services for settings.
func InitializeServices(cfg *Config, settings config.Config) (*Services, error) {
	opts := []backend.ClientOption{
		backend.WithLogger(logging.Logger("Backend")),
		backend.WithRetryMax(settings.Backend.RetryMax),
	}
	if settings.Backend.Token != "" {
		opts = append(opts, backend.WithToken(settings.Backend.Token))
	}
	if settings.Backend.Timeout > 0 {
		opts = append(opts, backend.WithTimeout(settings.Backend.Timeout))
	}

	client, err := backend.NewClient(settings.Backend.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway client: %w", err)
	}

	var opener browser.Opener = browser.NoopOpener{}
	if settings.Browser.ShouldOpen() {
		opener = browser.SystemOpener{}
	}

	m := metrics.New()
	orch := orchestrator.New(client, orchestrator.Config{
		Opener:  opener,
		Metrics: m,
		Polling: poller.Config{
			Interval:       settings.Polling.Interval,
			MaxLifetime:    settings.Polling.MaxFlowLifetime,
			RequestTimeout: settings.Backend.Timeout,
		},
	})

	storage := config.NewStorageWithPath(cfg.ConfigPath)

	logging.Debug("Services", "Initialized services (browser: %t, poll interval: %s)",
		settings.Browser.ShouldOpen(), settings.Polling.Interval)

	return &Services{
		Backend:      client,
		Orchestrator: orch,
		Metrics:      m,
		Storage:      storage,
		Drafts:       drafts.NewStore(storage),
		Prober: probe.New(
			probe.WithTimeout(settings.Backend.Timeout),
			probe.WithClientVersion(cfg.Version),
		),
	}, nil
}
