package connection

import (
	"fmt"
	"strings"
)

// State is the remote connection state of a connector.
type State int

const (
	// StateDisconnected is both the initial state and the resting state after
	// cancellation or revocation.
	StateDisconnected State = iota

	// StateConnecting means an authorization flow is in progress on the backend.
	StateConnecting

	// StateConnected means the backend holds usable credentials for the connector.
	StateConnected

	// StateError means the last flow or credential exchange failed.
	StateError
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether a flow ends when this state is observed.
func (s State) IsTerminal() bool {
	return s == StateConnected || s == StateError
}

// ParseState parses a wire name into a State.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "disconnected":
		return StateDisconnected, nil
	case "connecting":
		return StateConnecting, nil
	case "connected":
		return StateConnected, nil
	case "error":
		return StateError, nil
	default:
		return StateDisconnected, fmt.Errorf("unknown connection state %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if s < StateDisconnected || s > StateError {
		return nil, fmt.Errorf("invalid connection state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ConnectorStatus is the backend's view of one connector's connection.
type ConnectorStatus struct {
	// ConnectorID identifies the connector.
	ConnectorID string `json:"connector_id" yaml:"connector_id"`

	// State is the current connection state.
	State State `json:"state" yaml:"state"`

	// RequiresAuth is false for connectors that need no authorization.
	RequiresAuth bool `json:"requires_auth" yaml:"requires_auth"`

	// LastError is present when State == StateError
	LastError string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Normalize applies the client-side view rules: a connector that does not
// require authorization is always shown as connected.
func (s ConnectorStatus) Normalize() ConnectorStatus {
	if !s.RequiresAuth {
		s.State = StateConnected
		s.LastError = ""
	}
	return s
}

// Disconnected returns the local status used after cancellation or revocation.
func Disconnected(connectorID string) ConnectorStatus {
	return ConnectorStatus{
		ConnectorID:  connectorID,
		State:        StateDisconnected,
		RequiresAuth: true,
	}
}

// Failed returns an error status carrying the given reason.
func Failed(connectorID, reason string) ConnectorStatus {
	return ConnectorStatus{
		ConnectorID:  connectorID,
		State:        StateError,
		RequiresAuth: true,
		LastError:    reason,
	}
}

// Connected returns a connected status for an authorized connector.
func Connected(connectorID string) ConnectorStatus {
	return ConnectorStatus{
		ConnectorID:  connectorID,
		State:        StateConnected,
		RequiresAuth: true,
	}
}
