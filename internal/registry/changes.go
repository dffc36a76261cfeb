package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/quinton-ashley/npm-search/internal/watch"
)

// changesEvent mirrors one line of the registry's continuous change
// feed. A blank line (no bytes between newlines) is the heartbeat — it
// never reaches this struct; the scanner loop below converts it
// directly to a watch.Change with an empty ID. Heartbeat discrimination
// downstream is always by empty id, not a transport-level marker, so
// the translation from "blank line" to "empty id" happens at this one
// seam.
type changesEvent struct {
	ID      string `json:"id"`
	Seq     int64  `json:"seq"`
	Deleted bool   `json:"deleted"`
	Changes []struct {
		Rev string `json:"rev"`
	} `json:"changes"`
}

// ChangesReader implements watch.RegistryReader over the registry's
// continuous `_changes` feed: one long-lived HTTP connection, resumable
// by `since`, paused by canceling the in-flight request and resumed by
// reconnecting — there is no partial-pause primitive over HTTP, so
// "pause" here means "stop consuming bytes from the socket".
type ChangesReader struct {
	client *Client
	logger interface {
		Warn(msg string, args ...any)
		Error(msg string, args ...any)
		Debug(msg string, args ...any)
		Info(msg string, args ...any)
	}

	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}
	lastSeq  int64
	cancel   context.CancelFunc
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewChangesReader creates a ChangesReader over client.
func NewChangesReader(client *Client) *ChangesReader {
	return &ChangesReader{
		client:   client,
		logger:   client.logger,
		resumeCh: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins streaming from since. It connects synchronously so setup
// failures (bad URL, auth rejected, registry unreachable) surface to the
// caller immediately — the watch.Lifecycle controller treats "initial
// feed start" as the one kind of startup failure allowed to propagate.
// Once connected, delivery runs on its own goroutine until Stop is
// called or ctx is canceled.
func (r *ChangesReader) Start(ctx context.Context, since int64, onChange func(watch.Change), onError func(error)) error {
	r.lastSeq = since

	connCtx, cancel := context.WithCancel(ctx)

	resp, err := r.connect(connCtx, r.lastSeq)
	if err != nil {
		cancel()
		return fmt.Errorf("registry: opening change feed: %w", err)
	}

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.loop(ctx, resp, onChange, onError)

	return nil
}

// connect opens one streaming request to the change feed starting after
// since. The caller owns the returned response's body.
func (r *ChangesReader) connect(ctx context.Context, since int64) (*http.Response, error) {
	path := "/_changes?feed=continuous&heartbeat=30000&include_docs=false&batch_size=1&since=" + strconv.FormatInt(since, 10)

	return r.client.do(ctx, http.MethodGet, path, nil)
}

// loop reads newline-delimited events from resp until the connection
// ends, then reconnects from the last delivered seq unless stopped.
func (r *ChangesReader) loop(ctx context.Context, resp *http.Response, onChange func(watch.Change), onError func(error)) {
	for {
		r.consume(resp, onChange, onError)
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return
		case <-r.stopped:
			return
		default:
		}

		r.waitWhilePaused()

		select {
		case <-ctx.Done():
			return
		case <-r.stopped:
			return
		default:
		}

		r.mu.Lock()
		connCtx, cancel := context.WithCancel(ctx)
		r.cancel = cancel
		since := r.lastSeq
		r.mu.Unlock()

		next, err := r.connect(connCtx, since)
		if err != nil {
			onError(fmt.Errorf("registry: reconnecting change feed: %w", err))

			if !sleepBriefly(ctx) {
				return
			}

			continue
		}

		resp = next
	}
}

// consume scans one connection's worth of lines, translating each into
// a watch.Change and invoking onChange. Returns when the connection ends
// (EOF, error, or a Pause-triggered cancellation).
func (r *ChangesReader) consume(resp *http.Response, onChange func(watch.Change), onError func(error)) {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()

		if len(line) == 0 {
			onChange(watch.Change{}) // heartbeat: empty id
			continue
		}

		var ev changesEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			onError(fmt.Errorf("registry: decoding change event: %w", err))
			continue
		}

		r.mu.Lock()
		r.lastSeq = ev.Seq
		r.mu.Unlock()

		change := watch.Change{ID: ev.ID, Seq: ev.Seq, Deleted: ev.Deleted}
		for _, c := range ev.Changes {
			change.Changes = append(change.Changes, watch.ChangeRev{Rev: c.Rev})
		}

		onChange(change)
	}

	if err := scanner.Err(); err != nil {
		onError(fmt.Errorf("registry: change feed read error: %w", err))
	}
}

// Pause stops consuming the current connection. The
// reconnect loop parks in waitWhilePaused until Resume is called.
func (r *ChangesReader) Pause() {
	r.mu.Lock()
	already := r.paused
	r.paused = true
	cancel := r.cancel
	r.mu.Unlock()

	if !already && cancel != nil {
		r.logger.Debug("change feed paused")
		cancel()
	}
}

// Resume reconnects from the last delivered seq.
func (r *ChangesReader) Resume() {
	r.mu.Lock()
	if !r.paused {
		r.mu.Unlock()
		return
	}

	r.paused = false
	ch := r.resumeCh
	r.resumeCh = make(chan struct{})
	r.mu.Unlock()

	r.logger.Debug("change feed resumed")
	close(ch)
}

// waitWhilePaused blocks the reconnect loop while paused.
func (r *ChangesReader) waitWhilePaused() {
	for {
		r.mu.Lock()
		paused := r.paused
		ch := r.resumeCh
		r.mu.Unlock()

		if !paused {
			return
		}

		<-ch
	}
}

// Stop ends the subscription. Idempotent.
func (r *ChangesReader) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info("change feed stopped")
		close(r.stopped)

		r.mu.Lock()
		cancel := r.cancel
		r.mu.Unlock()

		if cancel != nil {
			cancel()
		}
	})
}

// sleepBriefly waits a fixed short interval before a reconnect retry,
// returning false if ctx was canceled during the wait.
func sleepBriefly(ctx context.Context) bool {
	timer := time.NewTimer(baseBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
