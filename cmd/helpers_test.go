package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"connectorctl/internal/cli"
	"connectorctl/internal/testing/mock"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// testEnv is a fake gateway plus a configuration directory pointing at it.
type testEnv struct {
	t         *testing.T
	gw        *mock.Backend
	url       string
	configDir string
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()
	keyring.MockInit()

	gw := mock.NewBackend()
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	config := fmt.Sprintf(`backend:
  url: %s
  timeout: 2s
  retryMax: 0
polling:
  interval: 10ms
  maxFlowLifetime: 1m
browser:
  open: false
logging:
  level: error
%s`, srv.URL, extraConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o600))

	return &testEnv{t: t, gw: gw, url: srv.URL, configDir: dir}
}

// run executes connectorctl with args against the fake gateway.
func (e *testEnv) run(args ...string) (stdout, stderr string, err error) {
	return e.runContext(context.Background(), nil, args...)
}

func (e *testEnv) runContext(ctx context.Context, out *syncBuffer, args ...string) (stdout, stderr string, err error) {
	var flags cli.CommandFlags
	root := newRootCmd(&flags)

	if out == nil {
		out = &syncBuffer{}
	}
	var errOut syncBuffer
	root.SetOut(out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config-path", e.configDir, "--backend-url", e.url}, args...))

	err = root.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
