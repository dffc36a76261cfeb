package watch

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Handler processes a single job. It is called with exactly one job in
// flight at any instant. Handler is supplied by the Lifecycle
// controller as the consumer closure wrapping the process-one-change
// pipeline.
type Handler func(ctx context.Context, job Job)

// Queue is a single-consumer FIFO with O(1) front and back insertion.
// It replaces a library async queue with a goroutine owning a deque
// behind two inbox channels: the deque is never shared without a
// single-writer discipline.
type Queue struct {
	handler Handler

	pushBack   chan Job
	pushFront  chan Job
	lengthReq  chan chan int
	runningReq chan chan int
	drainReq   chan chan struct{}

	saturated func(aboveThreshold bool)
	highWater atomic.Int64
	lowWater  atomic.Int64

	running chan struct{} // closed once Start's goroutine has exited

	closeOnce sync.Once
	stop      chan struct{}
}

// NewQueue creates a Queue that will invoke handler for each job. highWater
// and lowWater implement the saturated-transition hook used by the reader
// driver for backpressure: saturated(true) fires the first time the
// queue length exceeds highWater; saturated(false) fires the first time it
// drops back below lowWater after having been saturated.
func NewQueue(handler Handler, highWater, lowWater int, onSaturated func(aboveThreshold bool)) *Queue {
	q := &Queue{
		handler:    handler,
		pushBack:   make(chan Job),
		pushFront:  make(chan Job),
		lengthReq:  make(chan chan int),
		runningReq: make(chan chan int),
		drainReq:   make(chan chan struct{}),
		saturated:  onSaturated,
		running:    make(chan struct{}),
		stop:       make(chan struct{}),
	}

	q.highWater.Store(int64(highWater))
	q.lowWater.Store(int64(lowWater))

	return q
}

// UpdateWatermarks changes the high/low saturation thresholds applied on
// the next enqueue or dequeue. Safe to call while the queue is running —
// the single consumer goroutine always reads the current value.
func (q *Queue) UpdateWatermarks(highWater, lowWater int) {
	q.highWater.Store(int64(highWater))
	q.lowWater.Store(int64(lowWater))
}

// Start launches the single-consumer loop. Call once; ctx cancellation
// stops the loop after any in-flight job completes.
func (q *Queue) Start(ctx context.Context) {
	go q.loop(ctx)
}

// Push appends a job to the back of the queue. Rejects jobs with an
// empty package id at entry — heartbeats never become jobs.
func (q *Queue) Push(ctx context.Context, job Job) error {
	if job.Change.IsHeartbeat() {
		return ErrRejectedEmptyID
	}

	select {
	case q.pushBack <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		return context.Canceled
	}
}

// Unshift prepends a job to the front of the queue,
// used for retries and for reaper/refresh injections so they preempt
// newly arrived live changes for other ids.
func (q *Queue) Unshift(ctx context.Context, job Job) error {
	if job.Change.IsHeartbeat() {
		return ErrRejectedEmptyID
	}

	select {
	case q.pushFront <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stop:
		return context.Canceled
	}
}

// Length returns the current queue length, not counting any in-flight job.
func (q *Queue) Length() int {
	reply := make(chan int, 1)

	select {
	case q.lengthReq <- reply:
		return <-reply
	case <-q.stop:
		return 0
	}
}

// Running reports whether a job is currently in flight: 1 or 0.
func (q *Queue) Running() int {
	reply := make(chan int, 1)

	select {
	case q.runningReq <- reply:
		return <-reply
	case <-q.stop:
		return 0
	}
}

// Drain blocks until the queue is empty and nothing is in flight. Used
// by the Lifecycle controller's Stop.
func (q *Queue) Drain() {
	reply := make(chan struct{})

	select {
	case q.drainReq <- reply:
		<-reply
	case <-q.running:
	}
}

// loop is the single logical execution context owning the deque.
// All mutation of the deque and of the saturation state happens here;
// nothing outside this goroutine ever touches the list directly.
func (q *Queue) loop(ctx context.Context) {
	defer close(q.running)
	defer close(q.stop)

	deque := list.New()
	wasSaturated := false
	var drainWaiters []chan struct{}
	var runningJob chan struct{} // non-nil while a job is in flight

	dispatch := func() {
		if runningJob != nil || deque.Len() == 0 {
			return
		}

		front := deque.Remove(deque.Front()).(Job) //nolint:errcheck // list holds only Job

		runningJob = make(chan struct{})

		go func(done chan struct{}, job Job) {
			defer close(done)
			q.handler(ctx, job)
		}(runningJob, front)
	}

	checkSaturation := func() {
		if q.saturated == nil {
			return
		}

		n := deque.Len()

		if !wasSaturated && n > int(q.highWater.Load()) {
			wasSaturated = true
			q.saturated(true)
		} else if wasSaturated && n < int(q.lowWater.Load()) {
			wasSaturated = false
			q.saturated(false)
		}
	}

	checkDrainWaiters := func() {
		if deque.Len() != 0 || runningJob != nil {
			return
		}

		for _, w := range drainWaiters {
			close(w)
		}

		drainWaiters = nil
	}

	var jobDone chan struct{}

	for {
		if runningJob != nil {
			jobDone = runningJob
		} else {
			jobDone = nil
		}

		select {
		case job := <-q.pushBack:
			deque.PushBack(job)
			checkSaturation()
			dispatch()

		case job := <-q.pushFront:
			deque.PushFront(job)
			checkSaturation()
			dispatch()

		case reply := <-q.lengthReq:
			reply <- deque.Len()

		case reply := <-q.runningReq:
			if runningJob != nil {
				reply <- 1
			} else {
				reply <- 0
			}

		case reply := <-q.drainReq:
			if deque.Len() == 0 && runningJob == nil {
				close(reply)
			} else {
				drainWaiters = append(drainWaiters, reply)
			}

		case <-jobDone:
			runningJob = nil
			checkSaturation()
			dispatch()
			checkDrainWaiters()

		case <-ctx.Done():
			// Let any in-flight job finish, then exit. New pushes are
			// refused via q.stop once we return (deferred close above).
			if runningJob != nil {
				<-runningJob
			}

			checkDrainWaiters()

			return
		}
	}
}
