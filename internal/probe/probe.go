// Package probe tests a connector's reachability by running the MCP initialize
// handshake against it.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"connectorctl/pkg/authconfig"
	"connectorctl/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultTimeout bounds a whole probe.
const DefaultTimeout = 15 * time.Second

// ErrAuthRequired is returned when the remote answers with 401.
var ErrAuthRequired = errors.New("remote requires authentication")

// Target is what gets probed.
type Target struct {
	URL  string
	Auth authconfig.Config

	// UserKey is sent for API keys whose source is the user.
	UserKey string
}

// Result describes a successful handshake.
type Result struct {
	URL             string        `json:"url" yaml:"url"`
	ServerName      string        `json:"server_name" yaml:"server_name"`
	ServerVersion   string        `json:"server_version" yaml:"server_version"`
	ProtocolVersion string        `json:"protocol_version" yaml:"protocol_version"`
	Tools           []string      `json:"tools" yaml:"tools"`
	Latency         time.Duration `json:"latency" yaml:"latency"`
}

// Prober runs handshakes.
type Prober struct {
	httpClient    *http.Client
	timeout       time.Duration
	clientVersion string
}

// Option configures a Prober.
type Option func(*Prober)

// WithHTTPClient replaces the HTTP client used for the transport.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Prober) { p.httpClient = c }
}

// WithTimeout bounds each probe. Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClientVersion sets the version reported in the handshake.
func WithClientVersion(v string) Option {
	return func(p *Prober) {
		if v != "" {
			p.clientVersion = v
		}
	}
}

// New creates a Prober.
func New(opts ...Option) *Prober {
	p := &Prober{timeout: DefaultTimeout, clientVersion: "dev"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe connects to t.URL, initializes an MCP session and lists its tools.
func (p *Prober) Probe(ctx context.Context, t Target) (*Result, error) {
	headers, err := headersFor(t)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var opts []transport.StreamableHTTPCOption
	if len(headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(headers))
	}
	if p.httpClient != nil {
		opts = append(opts, transport.WithHTTPBasicClient(p.httpClient))
	}

	logging.Debug("Probe", "Connecting to %s with %d header(s)", t.URL, len(headers))
	started := time.Now()

	c, err := client.NewStreamableHttpClient(t.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	defer c.Close()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "connectorctl", Version: p.clientVersion}

	info, err := c.Initialize(ctx, req)
	if err != nil {
		if isUnauthorized(err) {
			return nil, fmt.Errorf("%s: %w", t.URL, ErrAuthRequired)
		}
		return nil, fmt.Errorf("failed to initialize MCP session with %s: %w", t.URL, err)
	}

	res := &Result{
		URL:             t.URL,
		ServerName:      info.ServerInfo.Name,
		ServerVersion:   info.ServerInfo.Version,
		ProtocolVersion: info.ProtocolVersion,
		Tools:           []string{},
	}

	if info.Capabilities.Tools != nil {
		tools, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return nil, fmt.Errorf("failed to list tools of %s: %w", t.URL, err)
		}
		for _, tool := range tools.Tools {
			res.Tools = append(res.Tools, tool.Name)
		}
		sort.Strings(res.Tools)
	}

	res.Latency = time.Since(started)
	logging.Debug("Probe", "%s answered as %s %s with %d tools", t.URL, res.ServerName, res.ServerVersion, len(res.Tools))
	return res, nil
}

// headersFor builds the request headers. Only API keys add headers; OAuth
// connectors are probed anonymously since tokens live in the gateway.
func headersFor(t Target) (map[string]string, error) {
	key, ok := t.Auth.(authconfig.APIKey)
	if !ok {
		if ptr, isPtr := t.Auth.(*authconfig.APIKey); isPtr && ptr != nil {
			key, ok = *ptr, true
		}
	}
	if !ok {
		return nil, nil
	}

	h, err := key.Header(t.UserKey)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(h))
	for name := range h {
		headers[name] = h.Get(name)
	}
	return headers, nil
}

func isUnauthorized(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized")
}
