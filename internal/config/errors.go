package config

import (
	"fmt"
	"strings"
)

// Error types of a ConfigurationError.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError represents a structured error that occurs during configuration loading
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`    // Full path to the file that caused the error
	ErrorType   string   `json:"errorType"`   // io, parse or validation
	Message     string   `json:"message"`     // Human-readable error message
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error

	Cause error `json:"-"`
}

// Error implements the error interface
func (ce *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration in %s (%s): %s", ce.FilePath, ce.ErrorType, ce.Message)
}

func (ce *ConfigurationError) Unwrap() error {
	return ce.Cause
}

// DetailedError returns a detailed error message with all context
func (ce *ConfigurationError) DetailedError() string {
	parts := []string{
		fmt.Sprintf("Configuration error in %s", ce.FilePath),
		fmt.Sprintf("  Type: %s", ce.ErrorType),
		fmt.Sprintf("  Error: %s", ce.Message),
	}
	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}
	return strings.Join(parts, "\n")
}
