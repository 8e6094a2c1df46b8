package orchestrator

import (
	"errors"
	"fmt"

	"connectorctl/internal/poller"
)

var (
	// ErrNoAuthorizationRequired is returned by InitiateAuthorization for a
	// connector whose gateway reports that it needs no authorization, or that
	// returns no authorization URL. Callers show it as a message and do not retry.
	ErrNoAuthorizationRequired = errors.New("connector does not require authorization")

	// ErrFlowTimeout marks a flow that was not completed within its maximum
	// lifetime. The connector's cached status is set to error.
	ErrFlowTimeout = poller.ErrFlowTimeout

	// ErrFlowCanceled is returned by InitiateAuthorization when the flow was
	// canceled while the initiate request was in flight.
	ErrFlowCanceled = errors.New("authorization flow was canceled")
)

// ActionError is returned when the gateway answered an action with
// success=false. Message is the gateway's text, unmodified.
type ActionError struct {
	ConnectorID string
	Action      string
	Message     string
}

func (e *ActionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed for %s", e.Action, e.ConnectorID)
	}
	return fmt.Sprintf("%s failed for %s: %s", e.Action, e.ConnectorID, e.Message)
}

// IsActionError reports whether err is or wraps an ActionError.
func IsActionError(err error) bool {
	var ae *ActionError
	return errors.As(err, &ae)
}
