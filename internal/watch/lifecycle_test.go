package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		MaxPrefetch:    100,
		MinUnpause:     10,
		RetryMax:       3,
		BackoffBase:    time.Millisecond,
		BackoffPow:     1,
		RetrySkipped:   time.Hour,
		RefreshEnabled: false,
	}
}

func newTestController(store *fakeStateStore, reader *fakeRegistryReader, fetcher RegistryFetcher, formatter Formatter, index IndexClient, lost LostIndexClient) *Controller {
	return NewController(testConfig(), Collaborators{
		State:          store,
		RegistryReader: reader,
		RegistryFetch:  fetcher,
		Formatter:      formatter,
		Index:          index,
		LostIndex:      lost,
		ErrorSink:      &fakeErrorSink{},
		Telemetry:      NopTelemetry{},
	}, discardLogger())
}

func TestNewController_WiresWithoutRefreshWhenDisabled(t *testing.T) {
	c := newTestController(newFakeStateStore(State{}), &fakeRegistryReader{}, &fakeFetcher{}, &fakeFormatter{}, &fakeIndexClient{}, &fakeLostIndex{})
	assert.Nil(t, c.refresh)
}

func TestNewController_WiresWithRefreshWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshEnabled = true
	cfg.RefreshPeriod = time.Hour

	c := NewController(cfg, Collaborators{
		State:          newFakeStateStore(State{}),
		RegistryReader: &fakeRegistryReader{},
		RegistryFetch:  &fakeFetcher{},
		Formatter:      &fakeFormatter{},
		Index:          &fakeIndexClient{},
		LostIndex:      &fakeLostIndex{},
		ErrorSink:      &fakeErrorSink{},
	}, discardLogger())

	assert.NotNil(t, c.refresh)
}

func TestController_UpdateTunables_AppliesWatermarksRetryMaxAndPeriods(t *testing.T) {
	c := newTestController(newFakeStateStore(State{}), &fakeRegistryReader{}, &fakeFetcher{}, &fakeFormatter{}, &fakeIndexClient{}, &fakeLostIndex{})

	c.UpdateTunables(Config{
		MaxPrefetch:   5,
		MinUnpause:    1,
		RetryMax:      9,
		BackoffBase:   time.Millisecond,
		BackoffPow:    1,
		RetrySkipped:  2 * time.Hour,
		RefreshPeriod: time.Hour,
	})

	assert.Equal(t, int64(9), c.engine.retryMax.Load())
	assert.Equal(t, int64(5), c.queue.highWater.Load())
	assert.Equal(t, int64(1), c.queue.lowWater.Load())
	assert.Equal(t, int64(2*time.Hour), c.reaper.period.Load())
}

func TestController_UpdateTunables_RefreshEnabledChangeIsLoggedNotApplied(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshEnabled = true
	cfg.RefreshPeriod = time.Hour

	c := NewController(cfg, Collaborators{
		State:          newFakeStateStore(State{}),
		RegistryReader: &fakeRegistryReader{},
		RegistryFetch:  &fakeFetcher{},
		Formatter:      &fakeFormatter{},
		Index:          &fakeIndexClient{},
		LostIndex:      &fakeLostIndex{},
		ErrorSink:      &fakeErrorSink{},
	}, discardLogger())

	require.NotNil(t, c.refresh)

	reloaded := testConfig()
	reloaded.RefreshEnabled = false
	reloaded.RefreshPeriod = 10 * time.Minute

	// Disabling in config does not tear down the already-running scanner —
	// that structural change requires a restart — but its period still updates.
	c.UpdateTunables(reloaded)

	assert.NotNil(t, c.refresh)
	assert.Equal(t, int64(10*time.Minute), c.refresh.period.Load())
}

func TestController_Run_PersistsWatchStageAndStartsFeed(t *testing.T) {
	store := newFakeStateStore(State{Seq: 5})
	reader := &fakeRegistryReader{}
	c := newTestController(store, reader, &fakeFetcher{}, &fakeFormatter{}, &fakeIndexClient{}, &fakeLostIndex{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- c.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return reader.onChange != nil
	}, 2*time.Second, 10*time.Millisecond)

	st, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "watch", st.Stage)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestController_Run_ReturnsErrorWhenInitialStateFails(t *testing.T) {
	store := newFakeStateStore(State{})
	store.getErr = assert.AnError
	c := newTestController(store, &fakeRegistryReader{}, &fakeFetcher{}, &fakeFormatter{}, &fakeIndexClient{}, &fakeLostIndex{})

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestController_Run_ReturnsErrorWhenReaderStartFails(t *testing.T) {
	store := newFakeStateStore(State{})
	reader := &fakeRegistryReader{startErr: assert.AnError}
	c := newTestController(store, reader, &fakeFetcher{}, &fakeFormatter{}, &fakeIndexClient{}, &fakeLostIndex{})

	err := c.Run(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestController_Stop_IsIdempotentAndStopsReader(t *testing.T) {
	store := newFakeStateStore(State{})
	reader := &fakeRegistryReader{}
	c := newTestController(store, reader, &fakeFetcher{}, &fakeFormatter{}, &fakeIndexClient{}, &fakeLostIndex{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return reader.onChange != nil
	}, 2*time.Second, 10*time.Millisecond)

	c.Stop()
	c.Stop()

	assert.Equal(t, 1, reader.stops)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestController_Snapshot_ReflectsQueueAndCheckpointState(t *testing.T) {
	store := newFakeStateStore(State{Seq: 9})
	c := newTestController(store, &fakeRegistryReader{}, &fakeFetcher{}, &fakeFormatter{}, &fakeIndexClient{}, &fakeLostIndex{})

	c.engine.park(Job{Change: Change{ID: "left-pad"}})

	status := c.Snapshot(context.Background())
	assert.Equal(t, int64(9), status.CheckpointSeq)
	assert.Equal(t, 1, status.ParkedCount)
	assert.Equal(t, 0, status.QueueLength)
}

func TestController_RunTotalSeqTicker_StopsOnContextCancel(t *testing.T) {
	store := newFakeStateStore(State{})
	fetcher := &fakeFetcher{}
	telemetry := &LogTelemetry{logger: discardLogger()}

	c := NewController(testConfig(), Collaborators{
		State:          store,
		RegistryReader: &fakeRegistryReader{},
		RegistryFetch:  fetcher,
		Formatter:      &fakeFormatter{},
		Index:          &fakeIndexClient{},
		LostIndex:      &fakeLostIndex{},
		ErrorSink:      &fakeErrorSink{},
		Telemetry:      telemetry,
	}, discardLogger())

	fetcher.doc = Document{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.runTotalSeqTicker(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runTotalSeqTicker did not return after context cancellation")
	}
}

func TestController_RunGaugePump_StopsOnContextCancel(t *testing.T) {
	store := newFakeStateStore(State{})
	c := newTestController(store, &fakeRegistryReader{}, &fakeFetcher{}, &fakeFormatter{}, &fakeIndexClient{}, &fakeLostIndex{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		c.runGaugePump(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runGaugePump did not return after context cancellation")
	}
}
