package robusthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cryptodaily/internal/domain"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent = "cryptodaily/1.0"
	maxBodyBytes     = 4 << 20
)

type leveledSlog struct {
	inner *slog.Logger
}

// Intermediate failures are retried, so they are only warnings.
func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

type options struct {
	retryMax      int
	retryWaitMin  time.Duration
	retryWaitMax  time.Duration
	timeout       time.Duration
	ratePerSecond float64
	burst         int
	userAgent     string
	log           *slog.Logger
}

type Option func(*options)

func WithMaxRetries(n int) Option {
	return func(o *options) { o.retryMax = n }
}

func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(o *options) {
		o.retryWaitMin = minWait
		o.retryWaitMax = maxWait
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// WithRateLimit caps outgoing requests; a non-positive rate disables the cap.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.ratePerSecond = perSecond
		o.burst = burst
	}
}

func WithUserAgent(userAgent string) Option {
	return func(o *options) { o.userAgent = userAgent }
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// Client is a rate limited HTTP client with retries on connection errors
// and 5xx responses. Every failure it returns wraps
// domain.ErrProviderUnavailable.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func NewClient(opts ...Option) *Client {
	o := options{
		retryMax:     2,
		retryWaitMin: time.Second,
		retryWaitMax: 10 * time.Second,
		timeout:      30 * time.Second,
		burst:        1,
		userAgent:    defaultUserAgent,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = o.retryMax
	retryClient.RetryWaitMin = o.retryWaitMin
	retryClient.RetryWaitMax = o.retryWaitMax
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: o.log.With("subsystem", "robusthttp")})
	retryClient.CheckRetry = retryPolicy

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = o.timeout

	limiter := rate.NewLimiter(rate.Inf, 0)
	if o.ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(o.ratePerSecond), max(o.burst, 1))
	}

	return &Client{
		http:      httpClient,
		limiter:   limiter,
		userAgent: o.userAgent,
	}
}

// retryPolicy leaves 429 to the caller; retrying a rate limited provider
// only burns quota.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}

	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrProviderUnavailable, err)
	}

	return c.do(req, header)
}

func (c *Client) PostJSON(ctx context.Context, rawURL string, header http.Header, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, header)
}

func (c *Client) do(req *http.Request, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: wait for rate limiter: %w", domain.ErrProviderUnavailable, err)
	}

	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: do request: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: unexpected status %d (host = %s, path = %s)",
			domain.ErrProviderUnavailable, resp.StatusCode, req.URL.Host, req.URL.Path)
	}

	return body, nil
}
