package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"connectorctl/pkg/connection"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultHTTPTimeout is the default timeout for a single gateway request.
	DefaultHTTPTimeout = 15 * time.Second

	// DefaultRetryMax is how often idempotent requests are retried.
	DefaultRetryMax = 2

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20
)

// Client talks to the gateway's REST API.
//
// GET requests go through a retrying transport; POST, PUT and DELETE are sent
// once, since the authorization endpoints are not idempotent.
type Client struct {
	baseURL *url.URL
	retry   *retryablehttp.Client
	token   string
	logger  *slog.Logger
}

// ClientOption configures the gateway client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.retry.HTTPClient = httpClient
	}
}

// WithTimeout sets the per-request timeout of the underlying HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retry.HTTPClient.Timeout = d
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithToken authenticates the client to the gateway with a bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithRetryMax sets the retry count for idempotent requests. Zero disables retries.
func WithRetryMax(n int) ClientOption {
	return func(c *Client) {
		c.retry.RetryMax = n
	}
}

// WithRetryWait sets the minimum and maximum wait between retries.
func WithRetryWait(minWait, maxWait time.Duration) ClientOption {
	return func(c *Client) {
		c.retry.RetryWaitMin = minWait
		c.retry.RetryWaitMax = maxWait
	}
}

// NewClient creates a gateway client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL %q: %w", baseURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("gateway URL %q must be absolute", baseURL)
	}

	retry := retryablehttp.NewClient()
	retry.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	retry.RetryMax = DefaultRetryMax
	retry.RetryWaitMin = 250 * time.Millisecond
	retry.RetryWaitMax = 2 * time.Second
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL: u,
		retry:   retry,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.retry.Logger = retryLogger{logger: c.logger}

	return c, nil
}

// BaseURL returns the gateway URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Initiate begins an OAuth flow for a connector.
func (c *Client) Initiate(ctx context.Context, connectorID string) (*InitiateResponse, error) {
	var resp InitiateResponse
	if err := c.do(ctx, http.MethodPost, authorizePath(connectorID, ""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reinitialize re-runs the credential exchange of an already connected connector.
func (c *Client) Reinitialize(ctx context.Context, connectorID string) (*ActionResponse, error) {
	return c.action(ctx, connectorID, "reinitialize")
}

// Cancel invalidates an in-progress flow on the gateway.
func (c *Client) Cancel(ctx context.Context, connectorID string) (*ActionResponse, error) {
	return c.action(ctx, connectorID, "cancel")
}

// Revoke deletes the stored credentials of a connector.
func (c *Client) Revoke(ctx context.Context, connectorID string) (*ActionResponse, error) {
	return c.action(ctx, connectorID, "revoke")
}

func (c *Client) action(ctx context.Context, connectorID, verb string) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.do(ctx, http.MethodPost, authorizePath(connectorID, verb), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status fetches the connection status of one connector.
func (c *Client) Status(ctx context.Context, connectorID string) (connection.ConnectorStatus, error) {
	var status connection.ConnectorStatus
	if err := c.do(ctx, http.MethodGet, connectorPath(connectorID)+"/status", nil, &status); err != nil {
		return connection.ConnectorStatus{}, err
	}
	if status.ConnectorID == "" {
		status.ConnectorID = connectorID
	}
	return status, nil
}

// ListConnectors returns every registered connector.
func (c *Client) ListConnectors(ctx context.Context) ([]Connector, error) {
	var connectors []Connector
	if err := c.do(ctx, http.MethodGet, "/connectors", nil, &connectors); err != nil {
		return nil, err
	}
	return connectors, nil
}

// GetConnector returns one connector.
func (c *Client) GetConnector(ctx context.Context, connectorID string) (*Connector, error) {
	var connector Connector
	if err := c.do(ctx, http.MethodGet, connectorPath(connectorID), nil, &connector); err != nil {
		return nil, err
	}
	return &connector, nil
}

// CreateConnector registers a connector and returns the stored record.
func (c *Client) CreateConnector(ctx context.Context, connector Connector) (*Connector, error) {
	var created Connector
	if err := c.do(ctx, http.MethodPost, "/connectors", connector, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateConnector replaces a connector record.
func (c *Client) UpdateConnector(ctx context.Context, connector Connector) (*Connector, error) {
	var updated Connector
	if err := c.do(ctx, http.MethodPut, connectorPath(connector.ID), connector, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteConnector removes a connector.
func (c *Client) DeleteConnector(ctx context.Context, connectorID string) error {
	return c.do(ctx, http.MethodDelete, connectorPath(connectorID), nil, nil)
}

func authorizePath(connectorID, verb string) string {
	p := "/authorize/" + url.PathEscape(connectorID)
	if verb != "" {
		p += "/" + verb
	}
	return p
}

func connectorPath(connectorID string) string {
	return "/connectors/" + url.PathEscape(connectorID)
}

// do sends one request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	endpoint := c.baseURL.String() + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.send(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Debug("Gateway request failed", "method", method, "endpoint", endpoint, "error", err.Error())
		return classifyTransportError(err, endpoint)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransportError(err, endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    errorMessage(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Error != "":
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}

// send routes GETs through the retrying client and everything else straight to
// the underlying HTTP client.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.retry.HTTPClient.Do(req)
	}
	retryReq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, err
	}
	return c.retry.Do(retryReq)
}

// IsNotFound reports whether err is a 404 from the gateway.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
