package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Retry and backoff constants for transport-level errors, distinct from
// (and beneath) the watcher's own per-job backoff (watch.BackoffConfig).
const (
	maxRetries     = 5
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.2
	defaultUA      = "npm-search-watcher/1.0"
)

// Client is a small HTTP client for the registry's REST surface: change
// feed, document fetch, and info. Auth is optional — public registries
// need none; private mirrors authenticate with a static bearer token via
// an oauth2.TokenSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      oauth2.TokenSource // nil for unauthenticated registries
	userAgent  string
	logger     *slog.Logger

	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a registry Client. token may be nil.
func NewClient(baseURL string, httpClient *http.Client, token oauth2.TokenSource, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		userAgent:  defaultUA,
		logger:     logger,
		sleepFunc:  timeSleep,
	}
}

// do executes a single HTTP request with retry on transport and
// retryable-status errors. The caller is responsible for closing the
// response body on success.
func (c *Client) do(ctx context.Context, method, path string, header http.Header) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int

	for {
		resp, err := c.doOnce(ctx, method, url, header)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("registry: request canceled: %w", ctx.Err())
			}

			if attempt >= maxRetries {
				return nil, fmt.Errorf("registry: %s %s failed after %d retries: %w", method, path, maxRetries, err)
			}

			if sleepErr := c.sleepFunc(ctx, c.calcBackoff(attempt)); sleepErr != nil {
				return nil, fmt.Errorf("registry: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		status := resp.StatusCode
		apiErr := &APIError{StatusCode: status, Message: string(body), Err: classifyStatus(status)}

		if isRetryable(status) && attempt < maxRetries {
			c.logger.Warn("retrying registry request",
				slog.String("method", method), slog.String("path", path),
				slog.Int("status", status), slog.Int("attempt", attempt+1),
			)

			if sleepErr := c.sleepFunc(ctx, c.calcBackoff(attempt)); sleepErr != nil {
				return nil, fmt.Errorf("registry: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		return nil, apiErr
	}
}

func (c *Client) doOnce(ctx context.Context, method, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	req.Header.Set("User-Agent", c.userAgent)

	if c.token != nil {
		tok, err := c.token.Token()
		if err != nil {
			return nil, fmt.Errorf("registry: token: %w", err)
		}

		tok.SetAuthHeader(req)
	}

	return c.httpClient.Do(req) //nolint:bodyclose // caller closes on success, do() closes on error
}

func (c *Client) calcBackoff(attempt int) time.Duration {
	d := time.Duration(float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}

	jitter := 1 + (rand.Float64()*2-1)*jitterFraction

	return time.Duration(float64(d) * jitter)
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
