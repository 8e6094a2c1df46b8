package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"connectorctl/internal/backend"
	"connectorctl/pkg/authconfig"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAuthValidate(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name     string
		content  string
		wantOut  []string
		wantCode int
	}{
		{
			name:     "valid api key",
			content:  "type: apiKey\nsource: admin\nkey: sk-123\n",
			wantOut:  []string{"valid (apiKey)"},
			wantCode: ExitCodeSuccess,
		},
		{
			name:     "user supplied key needs no key",
			content:  "type: apiKey\nsource: user\n",
			wantOut:  []string{"valid (apiKey)"},
			wantCode: ExitCodeSuccess,
		},
		{
			name:     "incomplete oauth",
			content:  "type: oauth\nclient_id: abc\nauthorization_url: /relative\n",
			wantOut:  []string{"invalid (oauth)", authconfig.FieldClientSecret, authconfig.FieldAuthorizationURL},
			wantCode: ExitCodeInvalidConfig,
		},
		{
			name:     "unknown type",
			content:  "type: kerberos\n",
			wantOut:  []string{"kerberos"},
			wantCode: ExitCodeInvalidConfig,
		},
		{
			name: "connector document",
			content: `id: github
url: https://mcp.github.example.com
auth:
  type: oauth
  client_id: my-client
  client_secret: s3cr3t
  authorization_url: https://github.com/login/oauth/authorize
  token_url: https://github.com/login/oauth/access_token
`,
			wantOut:  []string{"valid (oauth)"},
			wantCode: ExitCodeSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := writeFile(t, "auth.yaml", tt.content)

			out, _, err := env.run("auth", "validate", file)
			assert.Equal(t, tt.wantCode, getExitCode(err))
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestAuthValidate_JSON(t *testing.T) {
	env := newTestEnv(t, "")
	file := writeFile(t, "auth.yaml", "type: apiKey\nsource: admin\n")

	out, _, err := env.run("auth", "validate", file, "-o", "json")
	require.Error(t, err)

	var result struct {
		Valid  bool              `json:"valid"`
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Valid)
	assert.Equal(t, authconfig.MsgRequired, result.Errors[authconfig.FieldKey])
}

func TestAuthValidate_OAuthConsentPreview(t *testing.T) {
	env := newTestEnv(t, "")
	file := writeFile(t, "auth.yaml", `type: oauth
client_id: my-client
client_secret: s3cr3t
authorization_url: https://github.com/login/oauth/authorize
token_url: https://github.com/login/oauth/access_token
scope: repo,read:org
`)

	out, _, err := env.run("auth", "validate", file, "--redirect-url", "https://gateway.example.com/oauth/callback")
	require.NoError(t, err)
	assert.Contains(t, out, "Scopes:  repo, read:org")
	assert.Contains(t, out, "Consent: https://github.com/login/oauth/authorize?")
	assert.Contains(t, out, "redirect_uri=https%3A%2F%2Fgateway.example.com%2Foauth%2Fcallback")
	assert.NotContains(t, out, "s3cr3t")

	out, _, err = env.run("auth", "validate", file, "-o", "json")
	require.NoError(t, err)
	var result struct {
		Scopes     []string `json:"scopes"`
		ConsentURL string   `json:"consent_url"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, []string{"repo", "read:org"}, result.Scopes)
	assert.Contains(t, result.ConsentURL, "client_id=my-client")
	assert.NotContains(t, result.ConsentURL, "redirect_uri")
}

func getConnector(t *testing.T, env *testEnv, id string) backend.Connector {
	t.Helper()
	out, _, err := env.run("connectors", "get", id, "-o", "json")
	require.NoError(t, err)
	var c backend.Connector
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	return c
}

func TestAuthEdit_NonInteractive(t *testing.T) {
	env := newTestEnv(t, "")
	env.gw.AddConnector(backend.Connector{ID: "search", Kind: backend.KindMCP, URL: "https://search.example.com/mcp"}, false)

	_, stderr, err := env.run("auth", "edit", "search", "--type", "apiKey", "--set", "source=admin", "--set", "key=sk-9")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Saved apiKey authentication for search")

	got := getConnector(t, env, "search")
	assert.Equal(t, authconfig.APIKey{Source: authconfig.KeySourceAdmin, Key: "sk-9"}, got.Auth.Config)
}

func TestAuthEdit_InvalidKeepsDraft(t *testing.T) {
	env := newTestEnv(t, "")
	env.gw.AddConnector(githubConnector(), true)

	out, _, err := env.run("auth", "edit", "github", "--set", "clientId=")
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidConfig, getExitCode(err))
	assert.Contains(t, out, authconfig.FieldClientID)
	assert.Equal(t, "my-client", getConnector(t, env, "github").Auth.Config.(authconfig.OAuth).ClientID)

	_, stderr, err := env.run("auth", "edit", "github", "--set", "clientId=new-client")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Resuming the saved draft of github")

	oauth := getConnector(t, env, "github").Auth.Config.(authconfig.OAuth)
	assert.Equal(t, "new-client", oauth.ClientID)
	assert.Equal(t, "s3cr3t", oauth.ClientSecret)

	// The draft was dropped on submit.
	_, stderr, err = env.run("auth", "edit", "github", "--set", "scope=repo")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "Resuming")
}

func TestAuthEdit_BadFlags(t *testing.T) {
	env := newTestEnv(t, "")
	env.gw.AddConnector(githubConnector(), true)

	tests := []struct {
		name string
		args []string
	}{
		{"missing value", []string{"--set", "clientId"}},
		{"inactive field", []string{"--set", "key=sk-1"}},
		{"unknown type", []string{"--type", "kerberos"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.run(append([]string{"auth", "edit", "github"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCodeInvalidConfig, getExitCode(err))
		})
	}
}
