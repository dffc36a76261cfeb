package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	assertEventuallyTimeout = 2 * time.Second
	assertEventuallyTick    = 10 * time.Millisecond
)

type fakeRegistryReader struct {
	mu        sync.Mutex
	startErr  error
	onChange  func(Change)
	onError   func(error)
	pauses    int
	resumes   int
	stops     int
}

func (f *fakeRegistryReader) Start(ctx context.Context, since int64, onChange func(Change), onError func(error)) error {
	f.onChange = onChange
	f.onError = onError
	return f.startErr
}

func (f *fakeRegistryReader) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeRegistryReader) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
}

func (f *fakeRegistryReader) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeRegistryReader) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses
}

func (f *fakeRegistryReader) resumeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumes
}

func newTestReaderDriver(t *testing.T, reader RegistryReader, handler Handler, maxPrefetch, minUnpause, highWater, lowWater int) (*ReaderDriver, *Queue) {
	t.Helper()

	engine := NewEngine(nil, nil, &fakeLostIndex{}, nil, &fakeErrorSink{}, NopTelemetry{}, 3, discardLogger())
	rd := NewReaderDriver(reader, engine, &fakeErrorSink{}, maxPrefetch, minUnpause, discardLogger())

	q := NewQueue(handler, highWater, lowWater, rd.onSaturatedTransition)
	rd.attachQueue(q)
	q.Start(context.Background())

	return rd, q
}

func TestReaderDriver_Start_WiresFeedCallbacks(t *testing.T) {
	reader := &fakeRegistryReader{}
	rd, _ := newTestReaderDriver(t, reader, func(context.Context, Job) {}, 10, 2, 10, 2)

	err := rd.Start(context.Background(), 42)
	require.NoError(t, err)
	assert.NotNil(t, reader.onChange)
	assert.NotNil(t, reader.onError)
}

func TestReaderDriver_OnChange_HeartbeatIsSilentlyDropped(t *testing.T) {
	reader := &fakeRegistryReader{}
	rd, q := newTestReaderDriver(t, reader, func(context.Context, Job) {}, 10, 2, 10, 2)

	require.NoError(t, rd.Start(context.Background(), 0))
	reader.onChange(Change{ID: ""})

	assert.Equal(t, 0, q.Length())
}

func TestReaderDriver_OnChange_PushesNonHeartbeatJob(t *testing.T) {
	release := make(chan struct{})
	var seen sync.Map
	reader := &fakeRegistryReader{}
	rd, _ := newTestReaderDriver(t, reader, blockingHandler(release, &seen), 10, 2, 10, 2)

	require.NoError(t, rd.Start(context.Background(), 0))
	reader.onChange(Change{ID: "left-pad", Seq: 1})

	close(release)

	assert.Eventually(t, func() bool {
		_, ok := seen.Load("left-pad")
		return ok
	}, assertEventuallyTimeout, assertEventuallyTick)
}

func TestReaderDriver_OnChange_PausesAboveMaxPrefetch(t *testing.T) {
	release := make(chan struct{})
	var seen sync.Map
	reader := &fakeRegistryReader{}
	// maxPrefetch=1 so the third pushed change triggers a pause: the first
	// is in flight and not counted, the second leaves one job queued.
	rd, _ := newTestReaderDriver(t, reader, blockingHandler(release, &seen), 1, 0, 100, 1)

	require.NoError(t, rd.Start(context.Background(), 0))
	reader.onChange(Change{ID: "a", Seq: 1})
	reader.onChange(Change{ID: "b", Seq: 2})
	reader.onChange(Change{ID: "c", Seq: 3})

	assert.Eventually(t, func() bool {
		return reader.pauseCount() > 0
	}, assertEventuallyTimeout, assertEventuallyTick)

	close(release)
}

func TestReaderDriver_OnSaturatedTransition_ResumesBelowMinUnpause(t *testing.T) {
	reader := &fakeRegistryReader{}
	engine := NewEngine(nil, nil, &fakeLostIndex{}, nil, &fakeErrorSink{}, NopTelemetry{}, 3, discardLogger())
	rd := NewReaderDriver(reader, engine, &fakeErrorSink{}, 10, 5, discardLogger())

	q := NewQueue(func(context.Context, Job) {}, 10, 2, rd.onSaturatedTransition)
	rd.attachQueue(q)
	q.Start(context.Background())

	rd.onSaturatedTransition(false)

	assert.Equal(t, 1, reader.resumeCount())
}

func TestReaderDriver_OnSaturatedTransition_UpwardIsInformationalOnly(t *testing.T) {
	reader := &fakeRegistryReader{}
	engine := NewEngine(nil, nil, &fakeLostIndex{}, nil, &fakeErrorSink{}, NopTelemetry{}, 3, discardLogger())
	rd := NewReaderDriver(reader, engine, &fakeErrorSink{}, 10, 5, discardLogger())

	q := NewQueue(func(context.Context, Job) {}, 10, 2, rd.onSaturatedTransition)
	rd.attachQueue(q)
	q.Start(context.Background())

	rd.onSaturatedTransition(true)

	assert.Equal(t, 0, reader.resumeCount())
}

func TestReaderDriver_Stop_StopsUnderlyingReader(t *testing.T) {
	reader := &fakeRegistryReader{}
	rd, _ := newTestReaderDriver(t, reader, func(context.Context, Job) {}, 10, 2, 10, 2)

	rd.Stop()
	assert.Equal(t, 1, reader.stops)
}
