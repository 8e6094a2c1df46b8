package config

import "time"

// Config is the top-level configuration structure for connectorctl.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Polling PollingConfig `yaml:"polling"`
	Browser BrowserConfig `yaml:"browser"`
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig describes how to reach the gateway.
type BackendConfig struct {
	URL      string        `yaml:"url"`                // Base URL of the gateway REST API
	Timeout  time.Duration `yaml:"timeout,omitempty"`  // Per-request timeout (default: 15s)
	RetryMax int           `yaml:"retryMax,omitempty"` // Retries for idempotent requests (default: 2)
	Token    string        `yaml:"token,omitempty"`    // Bearer token for the gateway itself
}

// PollingConfig tunes status polling during authorization flows.
type PollingConfig struct {
	Interval        time.Duration `yaml:"interval,omitempty"`        // Fixed poll cadence (default: 3s)
	MaxFlowLifetime time.Duration `yaml:"maxFlowLifetime,omitempty"` // Flow deadline (default: 5m)
}

// BrowserConfig controls opening consent screens.
type BrowserConfig struct {
	Open *bool `yaml:"open,omitempty"` // Open authorization URLs automatically (default: true)
}

// ShouldOpen reports whether authorization URLs are opened automatically.
func (b BrowserConfig) ShouldOpen() bool {
	return b.Open == nil || *b.Open
}

// LoggingConfig selects log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn or error (default: info)
	Format string `yaml:"format,omitempty"` // text or json (default: text)
}
