// Package config loads connectorctl's configuration.
//
// Configuration lives in a single directory, ~/.config/connectorctl by
// default (overridable with --config-path):
//
//	~/.config/connectorctl/
//	├── config.yaml     # gateway, polling, browser and logging settings
//	└── drafts/         # working drafts of connector auth configs
//
// A missing config.yaml is not an error; GetDefaultConfig supplies every
// value. Example:
//
//	backend:
//	  url: https://gateway.example.com/api
//	  timeout: 15s
//	  retryMax: 2
//	polling:
//	  interval: 3s
//	  maxFlowLifetime: 5m
//	browser:
//	  open: true
//	logging:
//	  level: info
//	  format: text
//
// Parse and validation failures are reported as *ConfigurationError, which
// the CLI maps to its invalid-configuration exit code.
//
// Storage is the small file store behind the drafts directory.
package config
