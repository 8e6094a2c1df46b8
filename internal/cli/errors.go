package cli

import (
	"errors"
	"fmt"

	"connectorctl/internal/backend"
	"connectorctl/internal/config"
	"connectorctl/internal/orchestrator"
	"connectorctl/pkg/authconfig"
)

// AuthFailedError indicates an authorization flow ended without credentials.
type AuthFailedError struct {
	// ConnectorID is the connector whose flow failed.
	ConnectorID string
	// Reason is the underlying error.
	Reason error
}

// Error returns a user-friendly error message with actionable guidance.
func (e *AuthFailedError) Error() string {
	return fmt.Sprintf(`Authorization failed for %s: %v

To retry, run:
  connectorctl authorize %s --wait`, e.ConnectorID, e.Reason, e.ConnectorID)
}

// Unwrap returns the underlying error.
func (e *AuthFailedError) Unwrap() error {
	return e.Reason
}

// Is allows errors.Is() to work with wrapped errors.
func (e *AuthFailedError) Is(target error) bool {
	_, ok := target.(*AuthFailedError)
	return ok
}

// UsageError indicates invalid input given on the command line or in a file
// the user passed.
type UsageError struct {
	Reason error
}

func (e *UsageError) Error() string {
	return e.Reason.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Reason
}

// IsInvalidConfig reports whether err is a configuration or auth config
// validation failure.
func IsInvalidConfig(err error) bool {
	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		return true
	}
	var fe authconfig.FieldErrors
	if errors.As(err, &fe) {
		return true
	}
	var ue *UsageError
	return errors.As(err, &ue)
}

// IsAuthFailure reports whether err describes an authorization that did not
// succeed: a failed or timed out flow, or a gateway action that was refused.
func IsAuthFailure(err error) bool {
	var afe *AuthFailedError
	if errors.As(err, &afe) {
		return true
	}
	return errors.Is(err, orchestrator.ErrFlowTimeout) || orchestrator.IsActionError(err)
}

// Describe renders err for the terminal, adding hints for the error kinds a
// user can act on.
func Describe(err error) string {
	var ce *config.ConfigurationError
	if errors.As(err, &ce) {
		return ce.DetailedError()
	}

	var te *backend.TransportError
	if errors.As(err, &te) {
		return fmt.Sprintf(`%v

Check that the gateway is running and that backend.url in config.yaml
(or --backend-url) points to it.`, err)
	}

	if errors.Is(err, backend.ErrNotFound) {
		return fmt.Sprintf("%v\n\nRun 'connectorctl connectors list' to see the registered connectors.", err)
	}

	return err.Error()
}
