// Package jsonrpc is the JSON-RPC 2.0 HTTP client shared by the chain clients.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"arcade-pot/internal/observability"
)

// Defaults applied by New.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
)

// maxErrorBody bounds how much of a non-200 body ends up in an error.
const maxErrorBody = 512

// Client calls one node endpoint. Transport failures, 429 and non-200
// responses are retried with exponential backoff; node error objects are not.
type Client struct {
	name     string
	endpoint string
	http     *http.Client

	maxRetries uint64
	retryDelay time.Duration
	maxDelay   time.Duration

	nextID atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithMaxRetries sets how many times a failed attempt is repeated.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = uint64(n)
	}
}

// WithRetryDelay sets the first backoff interval.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithMaxDelay caps the backoff interval.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) { c.maxDelay = d }
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.http = client }
}

// New returns a client for endpoint. Name labels its calls in metrics.
func New(name, endpoint string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		endpoint:   endpoint,
		http:       &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the node URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is an error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// IsRPCError reports whether err carries a node error object rather than a
// transport failure.
func IsRPCError(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr)
}

func (c *Client) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = c.maxDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
}

// Call invokes method and decodes the result into result.
// A null result leaves result untouched.
func (c *Client) Call(ctx context.Context, method string, params []interface{}, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		observability.RecordRPCCall(c.name, method, time.Since(start), err)
	}()

	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var raw json.RawMessage
	err = backoff.Retry(func() error {
		var attemptErr error
		raw, attemptErr = c.post(ctx, body)
		return attemptErr
	}, c.retryPolicy(ctx))
	if err != nil {
		if IsRPCError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%s: max retries exceeded: %w", method, err)
	}

	if result == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", method, err)
	}
	return nil
}

// post performs one attempt. Errors that must not be retried are wrapped
// in backoff.Permanent.
func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.New("rate limited (429)")
	case resp.StatusCode != http.StatusOK:
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, backoff.Permanent(rpcResp.Error)
	}
	return rpcResp.Result, nil
}
