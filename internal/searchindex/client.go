// Package searchindex is an HTTP client for the downstream search index:
// upsert, delete, and faceted search over an Algolia-shaped index API,
// plus a distinct write-only "lost" index.
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

// Retry and backoff constants, mirroring internal/registry's client —
// duplicated rather than shared since the two clients talk to unrelated
// backends with unrelated auth and error shapes.
const (
	maxRetries    = 5
	baseBackoff   = 500 * time.Millisecond
	maxBackoff    = 20 * time.Second
	backoffFactor = 2.0
	jitterFrac    = 0.2
)

// Client talks to one named index on the search backend.
type Client struct {
	baseURL    string
	appID      string
	apiKey     string
	indexName  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given index. baseURL is the index
// API root, e.g. "https://<app-id>-dsn.algolia.net/1/indexes".
func NewClient(baseURL, appID, apiKey, indexName string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		appID:      appID,
		apiKey:     apiKey,
		indexName:  indexName,
		httpClient: httpClient,
		logger:     logger,
	}
}

// request performs one logical call against the index, retrying
// transport failures and 408/429/500/502/503/504 responses with backoff. The caller owns
// the returned response body on success.
func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("searchindex: encoding request: %w", err)
		}

		payload = encoded
	}

	url := c.baseURL + "/" + c.indexName + path

	var attempt int

	for {
		resp, err := c.doOnce(ctx, method, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("searchindex: request canceled: %w", ctx.Err())
			}

			if attempt >= maxRetries {
				return nil, fmt.Errorf("searchindex: %s %s failed after %d retries: %w", method, path, maxRetries, err)
			}

			if sleepErr := sleepFor(ctx, calcBackoff(attempt)); sleepErr != nil {
				return nil, fmt.Errorf("searchindex: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		if resp.StatusCode < http.StatusBadRequest {
			return resp, nil
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		status := resp.StatusCode
		apiErr := &APIError{StatusCode: status, Message: string(respBody)}

		if isRetryable(status) && attempt < maxRetries {
			c.logger.Warn("retrying search index request",
				slog.String("method", method), slog.String("path", path),
				slog.Int("status", status), slog.Int("attempt", attempt+1),
			)

			if sleepErr := sleepFor(ctx, calcBackoff(attempt)); sleepErr != nil {
				return nil, fmt.Errorf("searchindex: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		return nil, apiErr
	}
}

func (c *Client) doOnce(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("searchindex: building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Algolia-Application-Id", c.appID)
	req.Header.Set("X-Algolia-API-Key", c.apiKey)

	return c.httpClient.Do(req) //nolint:bodyclose // caller closes on success, request() closes on error
}

func isRetryable(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func calcBackoff(attempt int) time.Duration {
	d := time.Duration(float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}

	jitter := 1 + (rand.Float64()*2-1)*jitterFrac

	return time.Duration(float64(d) * jitter)
}

func sleepFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// APIError wraps a non-2xx response from the index backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("searchindex: HTTP %d: %s", e.StatusCode, e.Message)
}

// Upsert writes a record, keyed by ObjectID.
func (c *Client) Upsert(ctx context.Context, record watch.Record) error {
	body := make(map[string]any, len(record.Fields)+1)

	for k, v := range record.Fields {
		body[k] = v
	}

	body["objectID"] = record.ObjectID

	resp, err := c.request(ctx, http.MethodPut, "/"+record.ObjectID, body)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	return nil
}

// Delete removes a record by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	resp, err := c.request(ctx, http.MethodDelete, "/"+id, nil)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	return nil
}
