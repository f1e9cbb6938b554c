// Package transport issues rate-limited HTTP requests to the RCSB services
// with bounded retries and backoff on throttling and server errors.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/williamgilpin/pypdb/config"
	"github.com/williamgilpin/pypdb/errors"
)

// Doer abstracts *http.Client for testing
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the fully-consumed result of a successful request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the response body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// sendState tracks progress through the retry state machine. Every request
// walks Attempting -> {Success, Backoff, Retrying, Failed}; Backoff and
// Retrying loop back to Attempting until the attempt bound is hit.
type sendState int

const (
	stateAttempting sendState = iota
	stateBackoff
	stateRetrying
	stateSuccess
	stateFailed
)

// Client sends HTTP requests with retry, backoff and client-side rate
// limiting. Safe for concurrent use; each call is an independent
// request/response cycle with no shared mutable state.
type Client struct {
	httpClient Doer
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	baseSleep  time.Duration
	sleep      func(time.Duration)
	logger     *slog.Logger
	metrics    *Metrics
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (used by tests to
// inject fake servers or canned responses).
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

// WithLogger sets the logger for retry and failure diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleep replaces the backoff sleep function (fake clock for tests)
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithMetrics attaches request counters
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a transport Client from configuration
func New(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.Default()
	}

	c := &Client{
		httpClient: http.DefaultClient,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.Retry.MaxRetries,
		baseSleep:  cfg.Retry.BaseSleep.Std(),
		sleep:      time.Sleep,
		logger:     slog.Default(),
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET request with retry
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.Send(ctx, http.MethodGet, url, nil, header)
}

// Post issues a POST request with retry. The body is retained so it can be
// replayed on each attempt.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte, header http.Header) (*Response, error) {
	if header == nil {
		header = http.Header{}
	} else {
		header = header.Clone()
	}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return c.Send(ctx, http.MethodPost, url, body, header)
}

// Send issues a request with bounded retries. HTTP 200 returns immediately;
// 429 sleeps with linearly increasing backoff before retrying; 5xx and
// network errors retry without sleeping; any other status fails immediately.
// After the attempt bound is exhausted a single "too many failures" warning
// is logged and an error is returned.
func (c *Client) Send(ctx context.Context, method, url string, body []byte, header http.Header) (*Response, error) {
	if method != http.MethodGet && method != http.MethodPost {
		c.logger.Warn("request type not recognized", "method", method)
		return nil, errors.WrapInvalid(errors.ErrUnsupportedMethod, "Transport", "Send", method)
	}

	// One request ID spans all attempts of a logical send, so server-side
	// traces group retries together.
	requestID := uuid.NewString()

	attempts := 0
	var lastStatus int
	state := stateAttempting

	for {
		switch state {
		case stateAttempting:
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return nil, errors.WrapTransient(err, "Transport", "Send", "rate limit wait")
				}
			}

			resp, err := c.attempt(ctx, method, url, body, header, requestID)
			attempts++
			c.metrics.countAttempt(method)

			switch {
			case err != nil:
				// Network failures and timeouts are indistinguishable from a
				// busy backend here; retry without sleeping, like a 5xx.
				c.logger.Warn("request error encountered, retrying",
					"url", url, "attempt", attempts, "error", err)
				c.metrics.countRetry(reasonNetworkError)
				lastStatus = 0
				state = stateRetrying
			case resp.StatusCode == http.StatusOK:
				return resp, nil
			case resp.StatusCode == http.StatusTooManyRequests:
				lastStatus = resp.StatusCode
				state = stateBackoff
			case resp.StatusCode >= 500 && resp.StatusCode < 600:
				c.logger.Warn("server error encountered, retrying",
					"url", url, "status", resp.StatusCode, "attempt", attempts)
				c.metrics.countRetry(reasonServerError)
				lastStatus = resp.StatusCode
				state = stateRetrying
			default:
				c.logger.Warn("request failed with unexpected status",
					"url", url, "status", resp.StatusCode, "body", truncate(resp.Text(), 512))
				c.metrics.countFailure(reasonBadStatus)
				return nil, errors.WrapTransient(
					fmt.Errorf("%w: status %d: %s", errors.ErrRequestFailed, resp.StatusCode, truncate(resp.Text(), 512)),
					"Transport", "Send", method+" "+url)
			}

		case stateBackoff:
			wait := time.Duration(attempts) * c.baseSleep
			c.logger.Warn("too many requests, backing off",
				"url", url, "attempt", attempts, "wait", wait)
			c.metrics.countRetry(reasonRateLimited)
			c.sleep(wait)
			state = stateRetrying

		case stateRetrying:
			if attempts > c.maxRetries {
				state = stateFailed
				continue
			}
			state = stateAttempting

		case stateFailed:
			c.logger.Warn("too many failures on requests, giving up",
				"url", url, "attempts", attempts, "last_status", lastStatus)
			c.metrics.countFailure(reasonExhausted)
			return nil, errors.WrapTransient(
				fmt.Errorf("%w: %d attempts, last status %d", errors.ErrMaxRetriesExceeded, attempts, lastStatus),
				"Transport", "Send", method+" "+url)
		}
	}
}

// attempt performs one HTTP round trip and fully consumes the body
func (c *Client) attempt(ctx context.Context, method, url string, body []byte, header http.Header, requestID string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	// The identifying marker always leads; caller-supplied user agents are
	// appended rather than replacing it.
	if extra := header.Get("User-Agent"); extra != "" && extra != c.userAgent {
		req.Header.Set("User-Agent", c.userAgent+" "+extra)
	} else {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
