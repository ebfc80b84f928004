// Package rpc performs single-shot JSON-over-HTTP calls: one request, one
// classified result. A call returns the decoded JSON object from the server
// or fails with exactly one of four error kinds — TimeoutError, NetworkError,
// ServerError, or UserError. There is no retry, pooling, or streaming; the
// caller owns any policy beyond the single exchange.
package rpc

import (
	"context"
	"time"

	"github.com/samvad-hq/samvad-rpc/pkg/httpclient"
)

// Client issues RPC calls. It keeps no state between calls, so a single
// Client may serve arbitrarily many concurrent Call invocations.
type Client struct {
	transport httpclient.Client
	timeout   time.Duration
	headers   map[string]string
	log       Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport overrides the HTTP transport collaborator.
func WithTransport(t httpclient.Client) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithTimeout sets the default per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeaders sets headers attached to every call made by the client.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithLogger sets the logger used for call tracing.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = ensureLogger(log) }
}

// New creates a Client backed by the resty transport unless overridden.
func New(opts ...Option) *Client {
	c := &Client{
		transport: httpclient.NewRestyClient(),
		timeout:   DefaultTimeout,
		headers:   make(map[string]string),
		log:       noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// callOptions holds per-call overrides.
type callOptions struct {
	timeout time.Duration
	headers map[string]string
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

// WithCallTimeout overrides the deadline for one call.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithCallHeader attaches one header to the call.
func WithCallHeader(name, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string)
		}
		o.headers[name] = value
	}
}

// WithCallHeaders attaches a header set to the call.
func WithCallHeaders(h map[string]string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(h))
		}
		for k, v := range h {
			o.headers[k] = v
		}
	}
}

// Call performs one HTTP exchange against url and returns the decoded JSON
// object from the response. body may be nil, an opaque []byte sent verbatim,
// or any JSON-serializable value. On failure the returned error is exactly
// one of *TimeoutError, *NetworkError, *ServerError, or *UserError.
func (c *Client) Call(ctx context.Context, method, url string, body any, opts ...CallOption) (map[string]any, error) {
	callOpts := callOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&callOpts)
	}

	headers := make(map[string]string, len(c.headers)+len(callOpts.headers))
	for k, v := range c.headers {
		headers[k] = v
	}
	for k, v := range callOpts.headers {
		headers[k] = v
	}

	c.log.DebugObj("rpc call", "request", map[string]any{
		"method":     method,
		"url":        url,
		"timeout_ms": callOpts.timeout.Milliseconds(),
	})

	resp, err := dispatch(ctx, c.transport, method, url, body, callOpts.timeout, headers)
	if err != nil {
		c.log.WarnObj("rpc call failed", "error", err.Error())
		return nil, err
	}

	result, err := classify(resp)
	if err != nil {
		c.log.WarnObj("rpc call rejected", "error", map[string]any{
			"status": resp.StatusCode(),
			"error":  err.Error(),
		})
		return nil, err
	}
	return result, nil
}

var defaultClient = New()

// Call performs one exchange using the package default client.
func Call(ctx context.Context, method, url string, body any, opts ...CallOption) (map[string]any, error) {
	return defaultClient.Call(ctx, method, url, body, opts...)
}
