package formatting

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"connectorctl/internal/backend"
	"connectorctl/internal/orchestrator"
	"connectorctl/internal/probe"
	"connectorctl/pkg/authconfig"
	"connectorctl/pkg/connection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConnectors = []backend.Connector{
	{
		ID:   "github",
		Name: "GitHub",
		Kind: backend.KindMCP,
		URL:  "https://mcp.github.example.com",
		Auth: authconfig.Wrap(authconfig.OAuth{
			ClientID:         "cid",
			ClientSecret:     "s3cret",
			AuthorizationURL: "https://github.com/login/oauth/authorize",
			TokenURL:         "https://github.com/login/oauth/access_token",
		}),
	},
	{
		ID:   "docs",
		Name: "Docs",
		Kind: backend.KindA2A,
		URL:  "https://docs.example.com/a2a",
		Auth: authconfig.Wrap(authconfig.Auto{}),
	},
}

func render(t *testing.T, opts Options, v interface{}) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, New(opts).Write(&buf, v))
	return buf.String()
}

// rows splits table output into whitespace-separated cells per line.
func rows(out string) [][]string {
	var res [][]string
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		res = append(res, strings.Fields(line))
	}
	return res
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestTable_Connectors(t *testing.T) {
	out := render(t, Options{Format: FormatTable}, testConnectors)
	assert.Equal(t, [][]string{
		{"ID", "NAME", "KIND", "AUTH"},
		{"github", "GitHub", "mcp", "oauth"},
		{"docs", "Docs", "a2a", "auto"},
	}, rows(out))

	out = render(t, Options{Format: FormatWide, NoHeaders: true}, testConnectors)
	lines := rows(out)
	require.Len(t, lines, 2)
	assert.Equal(t, "https://mcp.github.example.com", lines[0][4])
}

func TestTable_ConnectorRedactsSecrets(t *testing.T) {
	out := render(t, Options{}, testConnectors[0])
	assert.Contains(t, out, "clientId:")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "s3cret")
}

func TestTable_Statuses(t *testing.T) {
	statuses := []connection.ConnectorStatus{
		connection.Connected("github"),
		connection.Failed("slack", "invalid_grant"),
		{ConnectorID: "docs", State: connection.StateConnected},
	}
	assert.Equal(t, [][]string{
		{"CONNECTOR", "STATE", "AUTH", "LAST", "ERROR"},
		{"github", "connected", "required"},
		{"slack", "error", "required", "invalid_grant"},
		{"docs", "connected", "none"},
	}, rows(render(t, Options{}, statuses)))

	assert.Equal(t, "No connectors found\n", render(t, Options{}, []connection.ConnectorStatus{}))
}

func TestTable_Event(t *testing.T) {
	ev := orchestrator.StatusEvent{
		ConnectorID: "github",
		OldState:    connection.StateConnecting,
		Status:      connection.Failed("github", "access_denied"),
		Source:      "poll",
		Timestamp:   time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
	assert.Equal(t, "15:04:05  github  connecting -> error  (poll): access_denied\n", render(t, Options{}, ev))
}

func TestTable_PollFailedEvent(t *testing.T) {
	ev := orchestrator.StatusEvent{
		ConnectorID: "github",
		OldState:    connection.StateConnecting,
		Status:      connection.ConnectorStatus{ConnectorID: "github", State: connection.StateConnecting, RequiresAuth: true},
		Source:      orchestrator.SourcePollFailed,
		Timestamp:   time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Err:         errors.New("gateway unavailable"),
	}
	assert.Equal(t, "15:04:05  github  connecting -> connecting  (poll_failed): gateway unavailable\n", render(t, Options{}, ev))
}

func TestTable_Validation(t *testing.T) {
	ok := ValidationResult{File: "a.yaml", Type: authconfig.TypeAPIKey, Valid: true}
	assert.Equal(t, "a.yaml: valid (apiKey)\n", render(t, Options{}, ok))

	preview := ValidationResult{
		File:       "c.yaml",
		Type:       authconfig.TypeOAuth,
		Valid:      true,
		ConsentURL: "https://idp.example.com/authorize?client_id=c",
	}
	assert.Equal(t, "c.yaml: valid (oauth)\n  Scopes:  (none)\n  Consent: https://idp.example.com/authorize?client_id=c\n", render(t, Options{}, preview))

	bad := ValidationResult{
		File:   "b.yaml",
		Type:   authconfig.TypeOAuth,
		Errors: authconfig.FieldErrors{authconfig.FieldTokenURL: authconfig.MsgAbsoluteURL},
	}
	out := render(t, Options{}, bad)
	assert.True(t, strings.HasPrefix(out, "b.yaml: invalid (oauth)\n"))
	assert.Contains(t, out, "tokenUrl")
	assert.Contains(t, out, authconfig.MsgAbsoluteURL)
}

func TestTable_Probe(t *testing.T) {
	out := render(t, Options{}, &probe.Result{
		URL:           "https://mcp.example.com",
		ServerName:    "remote",
		ServerVersion: "1.0.0",
		Tools:         []string{"fetch", "search"},
	})
	assert.Contains(t, out, "remote 1.0.0")
	assert.Contains(t, out, "2 (fetch, search)")
}

func TestJSON_UsesWireShape(t *testing.T) {
	out := render(t, Options{Format: FormatJSON}, testConnectors[1])
	assert.Contains(t, out, `"auth": {`)
	assert.Contains(t, out, `"type": "auto"`)

	out = render(t, Options{Format: FormatJSON}, connection.Failed("x", "boom"))
	assert.Contains(t, out, `"state": "error"`)
	assert.Contains(t, out, `"last_error": "boom"`)
}

func TestYAML_UsesWireShape(t *testing.T) {
	out := render(t, Options{Format: FormatYAML}, testConnectors[0])
	assert.Contains(t, out, "type: oauth")
	assert.Contains(t, out, "client_id: cid")
	assert.Contains(t, out, "kind: mcp")
}
