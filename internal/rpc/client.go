package rpc

import (
	"log/slog"
	"net/http"
	"time"
)

// DefaultEndpoint is the address the masternode listens on.
const DefaultEndpoint = "http://0.0.0.0:8000"

// Client calls methods on a JSON-RPC endpoint over HTTP.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	requestID  uint64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new JSON-RPC client for endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    slog.Default(),
		requestID: DefaultRequestID,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRequestID overrides the id sent in every request.
func WithRequestID(id uint64) ClientOption {
	return func(c *Client) {
		c.requestID = id
	}
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}
