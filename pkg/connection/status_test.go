package connection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	testCases := []struct {
		state    State
		expected string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateError, "error"},
		{State(42), "unknown"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, tc.state.String())
	}
}

func TestState_IsTerminal(t *testing.T) {
	assert.False(t, StateDisconnected.IsTerminal())
	assert.False(t, StateConnecting.IsTerminal())
	assert.True(t, StateConnected.IsTerminal())
	assert.True(t, StateError.IsTerminal())
}

func TestParseState(t *testing.T) {
	s, err := ParseState("Connected")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, s)

	_, err = ParseState("pending")
	assert.Error(t, err)
}

func TestConnectorStatus_JSON(t *testing.T) {
	raw := `{"connector_id":"srv-1","state":"connecting","requires_auth":true}`

	var status ConnectorStatus
	require.NoError(t, json.Unmarshal([]byte(raw), &status))
	assert.Equal(t, "srv-1", status.ConnectorID)
	assert.Equal(t, StateConnecting, status.State)
	assert.True(t, status.RequiresAuth)

	out, err := json.Marshal(Failed("srv-1", "boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"connector_id":"srv-1","state":"error","requires_auth":true,"last_error":"boom"}`, string(out))
}

func TestConnectorStatus_UnknownStateRejected(t *testing.T) {
	var status ConnectorStatus
	err := json.Unmarshal([]byte(`{"connector_id":"srv-1","state":"sleeping"}`), &status)
	assert.Error(t, err)
}

func TestConnectorStatus_Normalize(t *testing.T) {
	noAuth := ConnectorStatus{ConnectorID: "a", State: StateDisconnected, RequiresAuth: false}
	assert.Equal(t, StateConnected, noAuth.Normalize().State)

	withAuth := ConnectorStatus{ConnectorID: "b", State: StateConnecting, RequiresAuth: true}
	assert.Equal(t, StateConnecting, withAuth.Normalize().State)
}
