package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectorctl/pkg/authconfig"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRemote serves a small MCP server. When header is set, requests lacking
// it with the given value are rejected with 401.
func newRemote(t *testing.T, header, value string) *httptest.Server {
	t.Helper()

	s := server.NewMCPServer("remote-docs", "1.2.3", server.WithToolCapabilities(false))
	noop := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	}
	s.AddTool(mcp.NewTool("search", mcp.WithDescription("Search documents")), noop)
	s.AddTool(mcp.NewTool("fetch", mcp.WithDescription("Fetch a document")), noop)

	mcpHandler := server.NewStreamableHTTPServer(s)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if header != "" && r.Header.Get(header) != value {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mcpHandler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_Anonymous(t *testing.T) {
	remote := newRemote(t, "", "")

	res, err := New(WithClientVersion("test")).Probe(context.Background(), Target{URL: remote.URL, Auth: authconfig.Auto{}})
	require.NoError(t, err)

	assert.Equal(t, "remote-docs", res.ServerName)
	assert.Equal(t, "1.2.3", res.ServerVersion)
	assert.NotEmpty(t, res.ProtocolVersion)
	assert.Equal(t, []string{"fetch", "search"}, res.Tools)
}

func TestProbe_SendsAPIKeyHeader(t *testing.T) {
	remote := newRemote(t, "X-Api-Key", "sk-live")

	target := Target{
		URL: remote.URL,
		Auth: authconfig.APIKey{
			Source:           authconfig.KeySourceAdmin,
			Key:              "sk-live",
			HeaderStyle:      authconfig.HeaderStyleCustom,
			CustomHeaderName: "X-Api-Key",
		},
	}
	res, err := New().Probe(context.Background(), target)
	require.NoError(t, err)
	assert.Len(t, res.Tools, 2)
}

func TestProbe_UserKey(t *testing.T) {
	remote := newRemote(t, "Authorization", "Bearer mine")

	target := Target{
		URL:     remote.URL,
		Auth:    &authconfig.APIKey{Source: authconfig.KeySourceUser},
		UserKey: "mine",
	}
	_, err := New().Probe(context.Background(), target)
	require.NoError(t, err)

	target.UserKey = ""
	_, err = New().Probe(context.Background(), target)
	assert.ErrorContains(t, err, "no API key available")
}

func TestProbe_Unauthorized(t *testing.T) {
	remote := newRemote(t, "Authorization", "Bearer right")

	target := Target{
		URL:  remote.URL,
		Auth: authconfig.APIKey{Source: authconfig.KeySourceAdmin, Key: "wrong"},
	}
	_, err := New().Probe(context.Background(), target)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthRequired), err.Error())
}

func TestProbe_Unreachable(t *testing.T) {
	remote := newRemote(t, "", "")
	url := remote.URL
	remote.Close()

	_, err := New().Probe(context.Background(), Target{URL: url})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuthRequired))
}

func TestHeadersFor_OAuthIsAnonymous(t *testing.T) {
	h, err := headersFor(Target{Auth: authconfig.OAuth{ClientID: "cid"}})
	require.NoError(t, err)
	assert.Nil(t, h)
}
