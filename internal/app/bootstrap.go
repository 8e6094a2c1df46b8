package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"connectorctl/internal/config"
	"connectorctl/pkg/logging"
)

// Application wires configuration, logging and services for one CLI
// invocation.
//
// Example usage:
//
//	application, err := app.NewApplication(app.NewConfig(configPath, "debug"))
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	statuses, err := application.Services().Orchestrator.LoadAll(ctx)
type Application struct {
	config   *Config
	settings config.Config
	services *Services
}

// NewApplication loads the configuration, applies flag overrides, initializes
// logging and creates the services.
//
// Invalid configuration, from the file or from overrides, is returned as a
// *config.ConfigurationError.
func NewApplication(cfg *Config) (*Application, error) {
	var settings config.Config
	if cfg.Settings != nil {
		settings = *cfg.Settings
	} else {
		loaded, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}

	if cfg.LogLevel != "" {
		settings.Logging.Level = cfg.LogLevel
	}
	if cfg.BackendURL != "" {
		settings.Backend.URL = cfg.BackendURL
	}
	if cfg.NoBrowser {
		open := false
		settings.Browser.Open = &open
	}
	if err := settings.Validate(); err != nil {
		return nil, &config.ConfigurationError{
			FilePath:  "command-line flags",
			ErrorType: config.ErrorTypeValidation,
			Message:   err.Error(),
			Suggestions: []string{
				"Check the --log-level and --backend-url flags",
			},
			Cause: err,
		}
	}

	initLogging(settings.Logging, cfg.LogOutput)
	logging.Debug("Bootstrap", "Using gateway %s", settings.Backend.URL)

	services, err := InitializeServices(cfg, settings)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		settings: settings,
		services: services,
	}, nil
}

// initLogging assumes lc has been validated.
func initLogging(lc config.LoggingConfig, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	level, _ := logging.ParseLevel(lc.Level)
	format := logging.FormatText
	if strings.EqualFold(lc.Format, string(logging.FormatJSON)) {
		format = logging.FormatJSON
	}
	logging.Init(level, format, out)
}

// Settings returns the effective configuration.
func (a *Application) Settings() config.Config {
	return a.settings
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Close stops every running poller and saves the statuses seen during this
// invocation for the next one.
func (a *Application) Close() {
	a.services.Orchestrator.Close()
	a.services.Orchestrator.Registry().Wait()
	if err := a.saveStatuses(); err != nil {
		logging.Warn("Bootstrap", "Failed to save status cache: %v", err)
	}
}
