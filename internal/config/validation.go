package config

import (
	"fmt"
	"net/url"
	"strings"

	"connectorctl/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value interface{}) {
	*ve = append(*ve, ValidationError{Field: field, Value: value, Message: message})
}

// Validate checks the configuration. It returns ValidationErrors or nil.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.Backend.URL) == "" {
		errs.Add("backend.url", "is required", c.Backend.URL)
	} else if u, err := url.Parse(c.Backend.URL); err != nil || !u.IsAbs() || u.Host == "" {
		errs.Add("backend.url", "must be an absolute URL", c.Backend.URL)
	}
	if c.Backend.Timeout < 0 {
		errs.Add("backend.timeout", "must not be negative", c.Backend.Timeout)
	}
	if c.Backend.RetryMax < 0 {
		errs.Add("backend.retryMax", "must not be negative", c.Backend.RetryMax)
	}

	if c.Polling.Interval < 0 {
		errs.Add("polling.interval", "must not be negative", c.Polling.Interval)
	}
	if c.Polling.MaxFlowLifetime < 0 {
		errs.Add("polling.maxFlowLifetime", "must not be negative", c.Polling.MaxFlowLifetime)
	}
	if c.Polling.Interval > 0 && c.Polling.MaxFlowLifetime > 0 && c.Polling.MaxFlowLifetime < c.Polling.Interval {
		errs.Add("polling.maxFlowLifetime", "must not be shorter than polling.interval", c.Polling.MaxFlowLifetime)
	}

	if c.Logging.Level != "" {
		if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
			errs.Add("logging.level", "must be one of debug, info, warn, error", c.Logging.Level)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs.Add("logging.format", "must be text or json", c.Logging.Format)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
