package app

import (
	"io"

	"connectorctl/internal/config"
)

// Config holds the application configuration
type Config struct {
	// ConfigPath is the configuration directory.
	ConfigPath string

	// LogLevel overrides logging.level from the config file when set.
	LogLevel string

	// BackendURL overrides backend.url from the config file when set.
	BackendURL string

	// NoBrowser disables opening authorization URLs.
	NoBrowser bool

	// Version is reported to remotes during probes.
	Version string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Settings skips loading config.yaml when set.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(configPath, logLevel string) *Config {
	return &Config{
		ConfigPath: configPath,
		LogLevel:   logLevel,
	}
}
