package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"connectorctl/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/connectorctl"
	configFileName = "config.yaml"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// GetUserConfigDir returns ~/.config/connectorctl.
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

func GetDefaultConfigPathOrPanic() string {
	dir, err := GetUserConfigDir()
	if err != nil {
		panic(err)
	}
	return dir
}

// LoadConfig loads config.yaml from configPath on top of the defaults. A
// missing file yields the defaults. Parse and validation failures are
// returned as *ConfigurationError.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, &ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: ErrorTypeIO,
			Message:   err.Error(),
		}
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, &ConfigurationError{
			FilePath:    configFilePath,
			ErrorType:   ErrorTypeParse,
			Message:     err.Error(),
			Suggestions: []string{"durations use Go syntax, for example 3s or 5m"},
		}
	}

	if err := config.Validate(); err != nil {
		return Config{}, &ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: ErrorTypeValidation,
			Message:   err.Error(),
			Cause:     err,
		}
	}

	logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// SaveConfig writes cfg to config.yaml under configPath.
func SaveConfig(configPath string, cfg Config) error {
	if err := os.MkdirAll(configPath, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configPath, err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	path := filepath.Join(configPath, configFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
