package config

import "time"

const (
	DefaultBackendURL      = "http://localhost:8080/api"
	DefaultTimeout         = 15 * time.Second
	DefaultRetryMax        = 2
	DefaultPollInterval    = 3 * time.Second
	DefaultMaxFlowLifetime = 5 * time.Minute
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// GetDefaultConfig returns the configuration used when no config.yaml exists.
func GetDefaultConfig() Config {
	open := true
	return Config{
		Backend: BackendConfig{
			URL:      DefaultBackendURL,
			Timeout:  DefaultTimeout,
			RetryMax: DefaultRetryMax,
		},
		Polling: PollingConfig{
			Interval:        DefaultPollInterval,
			MaxFlowLifetime: DefaultMaxFlowLifetime,
		},
		Browser: BrowserConfig{Open: &open},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
