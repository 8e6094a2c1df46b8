package cmd

import (
	"context"
	"net/http/httptest"
	"testing"

	"connectorctl/internal/backend"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMCPServer(t *testing.T) *httptest.Server {
	t.Helper()

	s := server.NewMCPServer("remote-docs", "1.2.3", server.WithToolCapabilities(false))
	s.AddTool(mcp.NewTool("search", mcp.WithDescription("Search documents")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("ok"), nil
		})

	srv := httptest.NewServer(server.NewStreamableHTTPServer(s))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe(t *testing.T) {
	env := newTestEnv(t, "")
	remote := newMCPServer(t)
	env.gw.AddConnector(backend.Connector{ID: "docs", Kind: backend.KindMCP, URL: remote.URL}, false)

	out, stderr, err := env.run("probe", "docs", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "docs answered in")
	assert.Contains(t, out, `"server_name": "remote-docs"`)
	assert.Contains(t, out, `"search"`)
}

func TestProbe_RejectsA2A(t *testing.T) {
	env := newTestEnv(t, "")
	env.gw.AddConnector(backend.Connector{ID: "planner", Kind: backend.KindA2A, URL: "https://planner.example.com/a2a"}, false)

	_, _, err := env.run("probe", "planner")
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidConfig, getExitCode(err))
}
