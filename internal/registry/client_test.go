package registry

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, nil))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func noSleep(ctx context.Context, d time.Duration) error { return nil }

type staticTokenSource struct{ token string }

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

func TestClient_Do_SucceedsOnFirstTry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil, discardLogger())
	c.sleepFunc = noSleep

	resp, err := c.do(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_Do_RetriesRetryableStatusThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil, discardLogger())
	c.sleepFunc = noSleep

	resp, err := c.do(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Do_NonRetryableStatusReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no such package"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil, discardLogger())
	c.sleepFunc = noSleep

	_, err := c.do(context.Background(), http.MethodGet, "/left-pad", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Do_ExhaustsRetriesAndFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil, discardLogger())
	c.sleepFunc = noSleep

	_, err := c.do(context.Background(), http.MethodGet, "/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestClient_Do_CanceledContextStopsRetryLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.do(ctx, http.MethodGet, "/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_DoOnce_SetsAuthHeaderFromTokenSource(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), staticTokenSource{token: "secret"}, discardLogger())
	c.sleepFunc = noSleep

	resp, err := c.do(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestClient_DoOnce_SetsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), nil, discardLogger())
	c.sleepFunc = noSleep

	resp, err := c.do(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, defaultUA, gotUA)
}

func TestClient_CalcBackoff_CapsAtMaxBackoff(t *testing.T) {
	c := NewClient("http://example.invalid", nil, nil, discardLogger())

	d := c.calcBackoff(20)
	assert.LessOrEqual(t, d, maxBackoff+maxBackoff/5)
}
