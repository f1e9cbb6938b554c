package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamgilpin/pypdb/config"
	"github.com/williamgilpin/pypdb/errors"
)

// scriptedDoer replays a fixed sequence of responses, recording requests
type scriptedDoer struct {
	responses []*http.Response
	errs      []error
	requests  []*http.Request
}

func (s *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx >= len(s.responses) {
		panic("scriptedDoer ran out of responses")
	}
	return s.responses[idx], nil
}

func resp(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, doer Doer, opts ...Option) (*Client, *[]time.Duration, *bytes.Buffer) {
	t.Helper()
	var sleeps []time.Duration
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	base := []Option{
		WithHTTPClient(doer),
		WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) }),
		WithLogger(logger),
	}
	c := New(config.Default(), append(base, opts...)...)
	return c, &sleeps, &logBuf
}

func TestSend_SuccessFirstAttempt(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{resp(200, "ok")}}
	c, sleeps, _ := newTestClient(t, doer)

	r, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, r.StatusCode)
	assert.Equal(t, "ok", r.Text())
	assert.Len(t, doer.requests, 1)
	assert.Empty(t, *sleeps)
}

func TestSend_BackoffThenServerErrorThenSuccess(t *testing.T) {
	// 429, 503, 200: exactly one sleep (for the 429), three attempts total
	doer := &scriptedDoer{responses: []*http.Response{
		resp(429, "slow down"),
		resp(503, "busy"),
		resp(200, "finally"),
	}}
	c, sleeps, _ := newTestClient(t, doer)

	r, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "finally", r.Text())
	assert.Len(t, doer.requests, 3)
	require.Len(t, *sleeps, 1)
	// First 429 waits one backoff unit
	assert.Equal(t, 500*time.Millisecond, (*sleeps)[0])
}

func TestSend_AllRateLimited_Exhausts(t *testing.T) {
	// Default config: 3 retries beyond the first attempt, 4 attempts total.
	doer := &scriptedDoer{responses: []*http.Response{
		resp(429, ""), resp(429, ""), resp(429, ""), resp(429, ""),
	}}
	c, sleeps, logBuf := newTestClient(t, doer)

	_, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMaxRetriesExceeded)
	assert.True(t, errors.IsTransient(err))

	assert.Len(t, doer.requests, 4)
	// One sleep per attempt, linearly increasing
	require.Len(t, *sleeps, 4)
	assert.Equal(t, []time.Duration{
		500 * time.Millisecond,
		1000 * time.Millisecond,
		1500 * time.Millisecond,
		2000 * time.Millisecond,
	}, *sleeps)

	// Final warning emitted exactly once
	assert.Equal(t, 1, strings.Count(logBuf.String(), "too many failures"))
}

func TestSend_ServerErrorsRetryWithoutSleeping(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		resp(500, ""), resp(502, ""), resp(200, "up"),
	}}
	c, sleeps, _ := newTestClient(t, doer)

	r, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "up", r.Text())
	assert.Empty(t, *sleeps)
}

func TestSend_NetworkErrorRetries(t *testing.T) {
	doer := &scriptedDoer{
		errs:      []error{io.ErrUnexpectedEOF, nil},
		responses: []*http.Response{nil, resp(200, "back")},
	}
	c, sleeps, _ := newTestClient(t, doer)

	r, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "back", r.Text())
	assert.Len(t, doer.requests, 2)
	assert.Empty(t, *sleeps)
}

func TestSend_UnexpectedStatusFailsImmediately(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{resp(404, "no such entry")}}
	c, _, _ := newTestClient(t, doer)

	_, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRequestFailed)
	assert.Contains(t, err.Error(), "no such entry")
	assert.Len(t, doer.requests, 1)
}

func TestSend_UnsupportedMethod(t *testing.T) {
	doer := &scriptedDoer{}
	c, _, _ := newTestClient(t, doer)

	_, err := c.Send(context.Background(), http.MethodDelete, "http://example.org/x", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedMethod)
	assert.True(t, errors.IsInvalid(err))
	assert.Empty(t, doer.requests)
}

func TestSend_IdentifyingHeaders(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{resp(200, "")}}
	c, _, _ := newTestClient(t, doer)

	_, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.NoError(t, err)

	req := doer.requests[0]
	assert.Equal(t, config.DefaultUserAgent, req.Header.Get("User-Agent"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
}

func TestSend_CallerUserAgentExtendsMarker(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{resp(200, "")}}
	c, _, _ := newTestClient(t, doer)

	header := http.Header{}
	header.Set("User-Agent", "analysis-pipeline/0.3")
	_, err := c.Get(context.Background(), "http://example.org/x", header)
	require.NoError(t, err)

	ua := doer.requests[0].Header.Get("User-Agent")
	assert.True(t, strings.HasPrefix(ua, config.DefaultUserAgent), "marker must lead: %s", ua)
	assert.Contains(t, ua, "analysis-pipeline/0.3")
}

func TestSend_RequestIDStableAcrossRetries(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		resp(503, ""), resp(200, ""),
	}}
	c, _, _ := newTestClient(t, doer)

	_, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.NoError(t, err)
	require.Len(t, doer.requests, 2)
	assert.Equal(t,
		doer.requests[0].Header.Get("X-Request-ID"),
		doer.requests[1].Header.Get("X-Request-ID"))
}

func TestSend_PostReplaysBody(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		resp(503, ""), resp(200, "done"),
	}}
	c, _, _ := newTestClient(t, doer)

	body := []byte(`{"query":{}}`)
	r, err := c.Post(context.Background(), "http://example.org/q", "application/json", body, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", r.Text())

	for _, req := range doer.requests {
		data, readErr := io.ReadAll(req.Body)
		require.NoError(t, readErr)
		assert.Equal(t, body, data)
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	}
}

func TestSend_RateLimiterGatesRequests(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		resp(200, ""), resp(200, ""), resp(200, ""),
	}}
	cfg := config.Default()
	cfg.RateLimit.RequestsPerSecond = 100
	cfg.RateLimit.Burst = 1

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(cfg, WithHTTPClient(doer), WithLogger(logger))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), "http://example.org/x", nil)
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Len(t, doer.requests, 3)
	// Burst 1 at 100 req/s: the second and third requests each wait ~10ms
	assert.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

func TestSend_RateLimitWaitCanceled(t *testing.T) {
	doer := &scriptedDoer{}
	cfg := config.Default()
	cfg.RateLimit.RequestsPerSecond = 1
	cfg.RateLimit.Burst = 1

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(cfg, WithHTTPClient(doer), WithLogger(logger))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "http://example.org/x", nil)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Empty(t, doer.requests)
}

func TestMetricsCounting(t *testing.T) {
	doer := &scriptedDoer{responses: []*http.Response{
		resp(429, ""), resp(503, ""), resp(200, ""),
	}}
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	c, _, _ := newTestClient(t, doer, WithMetrics(metrics))
	_, err := c.Get(context.Background(), "http://example.org/x", nil)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, label := range m.GetLabel() {
				key += "/" + label.GetValue()
			}
			values[key] = m.GetCounter().GetValue()
		}
	}

	assert.Equal(t, 3.0, values["pypdb_transport_attempts_total/GET"])
	assert.Equal(t, 1.0, values["pypdb_transport_retries_total/rate_limited"])
	assert.Equal(t, 1.0, values["pypdb_transport_retries_total/server_error"])
}
