// Package httpclient wraps http.Client for outbound metadata lookups.
// Transient failures are retried with exponential backoff, responses are
// transparently decompressed, and logged URLs have credential-bearing query
// parameters redacted.
package httpclient

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// ErrMaxAttempts is returned once every attempt has failed. The final
// attempt's error is wrapped inside it.
var ErrMaxAttempts = errors.New("max attempts exceeded")

// acceptedEncodings is offered on requests when decompression is on.
const acceptedEncodings = "gzip, deflate, br"

// Config holds the client configuration.
type Config struct {
	// Timeout is the per-request timeout, applied when BaseClient is nil.
	Timeout time.Duration

	// MaxAttempts is the total number of attempts per request, including
	// the first. Values below 1 are treated as 1.
	MaxAttempts int

	// RetryDelay is the delay before the first retry. Each further retry
	// multiplies it by BackoffMultiplier, capped at RetryMaxDelay.
	RetryDelay        time.Duration
	RetryMaxDelay     time.Duration
	BackoffMultiplier float64

	// UserAgent is sent on requests that do not set their own.
	UserAgent string

	// Logger receives request and retry logging.
	Logger *slog.Logger

	// EnableDecompression decodes gzip, deflate and brotli response bodies.
	EnableDecompression bool

	// BaseClient overrides the underlying http.Client.
	BaseClient *http.Client
}

// DefaultConfig is tuned for API lookups: three attempts with exponential
// backoff, a 10s per-request timeout and transparent decompression.
func DefaultConfig() Config {
	return Config{
		Timeout:             10 * time.Second,
		MaxAttempts:         3,
		RetryDelay:          time.Second,
		RetryMaxDelay:       10 * time.Second,
		BackoffMultiplier:   2.0,
		UserAgent:           "audiarr",
		Logger:              slog.Default(),
		EnableDecompression: true,
	}
}

// Client retries transient failures and decompresses responses.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a client from cfg, filling in unusable values.
func New(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier <= 1 {
		cfg.BackoffMultiplier = 2.0
	}

	base := cfg.BaseClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{config: cfg, client: base, logger: cfg.Logger}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.Do(req)
}

// Do executes req, retrying transport errors and retryable status codes
// (429, 502, 503, 504) until MaxAttempts is reached. The request is replayed
// as is, so retries are only safe for requests without a body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.EnableDecompression && req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptedEncodings)
	}

	ctx := req.Context()
	var lastErr error

	for attempt := 1; ; attempt++ {
		resp, err := c.attempt(req, attempt)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err

		if attempt == c.config.MaxAttempts {
			break
		}

		delay := c.backoff(attempt)
		c.logger.Debug("retrying request",
			slog.String("url", redactURL(req.URL)),
			slog.Int("next_attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrMaxAttempts, lastErr)
}

// attempt runs a single try. Retryable statuses are converted to errors so
// Do treats them like transport failures.
func (c *Client) attempt(req *http.Request, attempt int) (*http.Response, error) {
	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		c.logger.Warn("request failed",
			slog.String("url", redactURL(req.URL)),
			slog.String("method", req.Method),
			slog.Int("attempt", attempt),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if retryableStatus(resp.StatusCode) {
		resp.Body.Close()
		c.logger.Warn("retryable status",
			slog.String("url", redactURL(req.URL)),
			slog.String("method", req.Method),
			slog.Int("status", resp.StatusCode),
			slog.Int("attempt", attempt),
			slog.Duration("elapsed", elapsed),
		)
		return nil, fmt.Errorf("status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	c.logger.Debug("request completed",
		slog.String("url", redactURL(req.URL)),
		slog.String("method", req.Method),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", elapsed),
		slog.Int64("content_length", resp.ContentLength),
	)

	if c.config.EnableDecompression {
		resp.Body = decodeBody(resp, c.logger)
	}
	return resp, nil
}

// backoff returns the delay before the retry that follows the given attempt.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.RetryDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.config.BackoffMultiplier)
	}
	if d > c.config.RetryMaxDelay {
		d = c.config.RetryMaxDelay
	}
	return d
}

// retryableStatus reports whether a response with this code should be tried
// again. Client errors other than 429 are final.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// decodeBody wraps the response body in a decoder matching its
// Content-Encoding. Unknown encodings pass through untouched.
func decodeBody(resp *http.Response, logger *slog.Logger) io.ReadCloser {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "":
		return resp.Body
	case "gzip":
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			logger.Warn("bad gzip stream, passing body through", slog.String("error", err.Error()))
			return resp.Body
		}
		return &decodedBody{reader: r, raw: resp.Body}
	case "deflate":
		return &decodedBody{reader: flate.NewReader(resp.Body), raw: resp.Body}
	case "br":
		return &decodedBody{reader: brotli.NewReader(resp.Body), raw: resp.Body}
	default:
		return resp.Body
	}
}

// decodedBody pairs a decoder with the network body it draws from, so Close
// releases both.
type decodedBody struct {
	reader io.Reader
	raw    io.Closer
}

func (d *decodedBody) Read(p []byte) (int, error) {
	return d.reader.Read(p)
}

func (d *decodedBody) Close() error {
	if c, ok := d.reader.(io.Closer); ok {
		c.Close()
	}
	return d.raw.Close()
}

// sensitiveParams are query parameter names whose values never appear in
// logs. TMDB carries its credential as ?api_key=.
var sensitiveParams = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"key":           true,
	"token":         true,
	"secret":        true,
	"auth":          true,
	"authorization": true,
	"password":      true,
	"passwd":        true,
	"pass":          true,
}

// redactURL renders u with sensitive query parameter values replaced.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	q := u.Query()
	changed := false
	for name := range q {
		if sensitiveParams[strings.ToLower(name)] {
			q.Set(name, "***")
			changed = true
		}
	}
	if !changed {
		return u.String()
	}

	r := *u
	r.RawQuery = q.Encode()
	return r.String()
}
