// Package amfi provides a client and parser for the AMFI NAVAll feed
package amfi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
	"github.com/bobmcallan/navsync/internal/metrics"
)

const (
	DefaultURL              = "https://portal.amfiindia.com/spages/NAVAll.txt"
	DefaultTimeout          = 60 * time.Second
	DefaultRateLimit        = 1 // requests per second
	DefaultMaxAttempts      = 2
	DefaultRetryBackoff     = 2 * time.Second
	DefaultMaxBodyBytes     = 64 << 20
	DefaultBreakerThreshold = 3
	DefaultBreakerTimeout   = 2 * time.Minute
)

// ErrEmptyFeed is returned when the feed answers 200 with no content.
var ErrEmptyFeed = errors.New("empty NAV feed response")

// FeedError represents a non-OK response from the feed host
type FeedError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("AMFI feed error: %s (status: %d, url: %s)", e.Message, e.StatusCode, e.URL)
}

// Retryable reports whether the status is worth another attempt.
func (e *FeedError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client implements the FeedClient interface against the AMFI text feed
type Client struct {
	url          string
	httpClient   *http.Client
	logger       *common.Logger
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	maxAttempts  int
	backoff      time.Duration
	maxBodyBytes int64
	threshold    uint32
	breakerWait  time.Duration
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithURL sets the feed URL
func WithURL(url string) ClientOption {
	return func(c *Client) {
		c.url = url
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetry sets the attempt count and the base backoff between attempts.
// The delay doubles after each failed attempt.
func WithRetry(maxAttempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

// WithMaxBodyBytes caps the accepted response size
func WithMaxBodyBytes(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithBreaker sets the consecutive-failure threshold and open-state timeout
func WithBreaker(threshold uint32, openTimeout time.Duration) ClientOption {
	return func(c *Client) {
		if threshold > 0 {
			c.threshold = threshold
		}
		if openTimeout > 0 {
			c.breakerWait = openTimeout
		}
	}
}

// NewClient creates a new AMFI feed client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		url: DefaultURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:      rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:       common.NewSilentLogger(),
		maxAttempts:  DefaultMaxAttempts,
		backoff:      DefaultRetryBackoff,
		maxBodyBytes: DefaultMaxBodyBytes,
		threshold:    DefaultBreakerThreshold,
		breakerWait:  DefaultBreakerTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "amfi-feed",
		MaxRequests: 1,
		Timeout:     c.breakerWait,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Feed circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return c
}

// FetchNAVAll downloads the full NAVAll text. Transport errors, 5xx/429
// responses and empty bodies are retried up to maxAttempts; 4xx and an open
// breaker fail immediately.
func (c *Client) FetchNAVAll(ctx context.Context) (string, error) {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		attempts = attempt
		body, err := c.fetchOnce(ctx)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if attempt == c.maxAttempts || !isRetryable(ctx, err) {
			break
		}

		delay := c.backoff * time.Duration(1<<(attempt-1))
		c.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("AMFI feed fetch failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("fetch NAV feed: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return "", fmt.Errorf("fetch NAV feed after %d attempt(s): %w", attempts, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// get performs a single rate-limited GET of the feed
func (c *Client) get(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/plain")

	c.logger.Debug().Str("url", c.url).Msg("AMFI feed request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.FeedFetchDuration.WithLabelValues("error").Observe(elapsed.Seconds())
		c.logger.Error().Err(err).Dur("elapsed", elapsed).Msg("AMFI feed request failed")
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	metrics.FeedFetchDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(elapsed.Seconds())

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("AMFI feed non-OK response")
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", &FeedError{StatusCode: resp.StatusCode, URL: c.url, Message: msg}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > c.maxBodyBytes {
		return "", &FeedError{StatusCode: resp.StatusCode, URL: c.url, Message: fmt.Sprintf("body exceeds %d bytes", c.maxBodyBytes)}
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", ErrEmptyFeed
	}

	c.logger.Info().Int("bytes", len(data)).Int("status", resp.StatusCode).Dur("elapsed", elapsed).Msg("AMFI feed fetched")

	return string(data), nil
}

// isRetryable treats a per-request timeout as transient but stops once the
// caller's context is done.
func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return true
}

// Ensure Client implements FeedClient
var _ interfaces.FeedClient = (*Client)(nil)
