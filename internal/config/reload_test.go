package config

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestWatchReload_PicksUpChangedWatchTunables(t *testing.T) {
	path := writeTestConfig(t, "[watch]\nmax_prefetch = 50\n")

	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)

	holder := NewHolder(cfg, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- WatchReload(ctx, holder, nil, testLogger(t)) }()

	time.Sleep(100 * time.Millisecond) // let WatchReload register its file watch before the write

	require.NoError(t, os.WriteFile(path, []byte("[watch]\nmax_prefetch = 77\n"), 0o600))

	deadline := time.After(5 * time.Second)

	for {
		if holder.Config().Watch.MaxPrefetch == 77 {
			break
		}

		select {
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WatchReload did not return after cancel")
	}
}

func TestWatchReload_InvokesOnReloadWithMergedConfig(t *testing.T) {
	path := writeTestConfig(t, "[watch]\nmax_prefetch = 50\n")

	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)

	holder := NewHolder(cfg, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan int, 1)
	onReload := func(merged *Config) { seen <- merged.Watch.MaxPrefetch }

	go func() { _ = WatchReload(ctx, holder, onReload, testLogger(t)) }()

	time.Sleep(100 * time.Millisecond) // let WatchReload register its file watch before the write

	require.NoError(t, os.WriteFile(path, []byte("[watch]\nmax_prefetch = 99\n"), 0o600))

	select {
	case got := <-seen:
		assert.Equal(t, 99, got)
	case <-time.After(5 * time.Second):
		t.Fatal("onReload was never called")
	}
}

func TestWatchReload_IgnoresNonWatchSections(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"info\"\n")

	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)

	holder := NewHolder(cfg, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = WatchReload(ctx, holder, nil, testLogger(t)) }()

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlog_level = \"debug\"\n"), 0o600))

	// Wait past the debounce window, then confirm the unrelated logging
	// section was NOT merged — only Watch is safely hot-reloadable.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, "info", holder.Config().Logging.LogLevel)
}

func TestWatchReload_MissingFileDisablesReloadWithoutError(t *testing.T) {
	holder := NewHolder(DefaultConfig(), "/nonexistent/path/config.toml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchReload(ctx, holder, nil, testLogger(t))
	assert.NoError(t, err)
}

func TestWatchReload_StopsOnContextCancel(t *testing.T) {
	path := writeTestConfig(t, "[watch]\nmax_prefetch = 50\n")

	cfg, err := LoadOrDefault(path)
	require.NoError(t, err)

	holder := NewHolder(cfg, path)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() { done <- WatchReload(ctx, holder, nil, testLogger(t)) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WatchReload did not return after cancel")
	}
}
