// Package netclient provides HTTP request execution with timeout,
// retry, and exponential backoff with jitter.
package netclient

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	apperrors "github.com/penlight/vitalsum/errors"
	"github.com/penlight/vitalsum/logging"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	defaultBaseBackoff = 500 * time.Millisecond
	maxBackoff         = 30 * time.Second
	maxJitter          = time.Second
	maxBodySize        = 1 << 20 // 1 MB
)

// Config configures the resilient client.
type Config struct {
	// Timeout bounds each individual attempt.
	Timeout time.Duration `json:"timeout"`
	// MaxAttempts is the total number of attempts, first try included.
	MaxAttempts int `json:"max_attempts"`
	// BaseBackoff is the delay before the second attempt; it doubles
	// per attempt, capped at 30s, plus up to 1s of jitter.
	BaseBackoff time.Duration `json:"base_backoff"`
	// Rate and Burst configure optional client-side request smoothing.
	// A zero Rate disables it.
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

// Request is a prepared HTTP request with a reusable body, so retries
// can resend it.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client executes HTTP requests with retry and backoff. Responses are
// classified: 2xx succeeds, 4xx fails immediately, 5xx and transport
// failures are retried until MaxAttempts is exhausted.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client with the given configuration.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaultBaseBackoff
	}

	c := &Client{
		cfg:  cfg,
		http: &http.Client{},
	}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return c
}

// Execute runs the request with up to MaxAttempts attempts. The
// context bounds the whole operation including backoff waits, so a
// caller deadline acts as an overall wall-clock ceiling.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.waitBackoff(ctx, attempt); err != nil {
				return nil, apperrors.NewTransportError(err)
			}
			logging.LogDebugf("retrying request: url=%s attempt=%d", req.URL, attempt)
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, apperrors.NewTransportError(err)
			}
		}

		resp, err := c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !apperrors.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// attempt performs one HTTP round trip with a per-attempt timeout.
func (c *Client) attempt(ctx context.Context, req *Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, apperrors.NewClientError(0, err.Error())
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, apperrors.NewTransportError(err)
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &Response{StatusCode: httpResp.StatusCode, Body: body}, nil
	}
	return nil, apperrors.FromStatus(httpResp.StatusCode, string(bytes.TrimSpace(body)))
}

// backoffDuration computes min(30s, base*2^(n-1) + uniform jitter up
// to 1s) before attempt n+1. The cap bounds the sum, so the wait never
// exceeds 30s.
func (c *Client) backoffDuration(attempt int) time.Duration {
	backoff := c.cfg.BaseBackoff << (attempt - 2)
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	backoff += time.Duration(rand.Int63n(int64(maxJitter)))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

// waitBackoff sleeps the backoff for the given attempt, honoring
// context cancellation.
func (c *Client) waitBackoff(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.backoffDuration(attempt)):
		return nil
	}
}

// DecodeJSON decodes a successful response body. Malformed payloads
// are terminal: retrying will not fix them.
func DecodeJSON(resp *Response, v interface{}) error {
	if err := sonic.Unmarshal(resp.Body, v); err != nil {
		return apperrors.NewDecodeError(err)
	}
	return nil
}
