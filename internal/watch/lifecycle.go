package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// totalSeqRefreshInterval is how often the Lifecycle controller refreshes
// the best-effort total-sequence gauge from the registry's info endpoint.
const totalSeqRefreshInterval = 5 * time.Second

// gaugePumpInterval is how often queue length and parked count are
// pushed into Telemetry — ambient introspection for internal/statusapi,
// not part of the core ingestion algorithm.
const gaugePumpInterval = 2 * time.Second

// Config parameterizes the controller's retry, prefetch, and backoff knobs.
type Config struct {
	MaxPrefetch    int
	MinUnpause     int
	RetryMax       int
	BackoffBase    time.Duration
	BackoffPow     float64
	RetrySkipped   time.Duration
	RefreshPeriod  time.Duration
	RefreshEnabled bool
}

// Controller is the Lifecycle controller: it wires the checkpointer,
// engine, queue, reader driver, reaper, and refresh scanner together,
// owns run/stop, and owns the total-sequence gauge refresher. It is the
// only component that exposes a public start/stop surface; every other
// type in this package is reached only through it or through tests.
type Controller struct {
	cfgMu sync.Mutex // guards cfg against concurrent UpdateTunables calls
	cfg   Config

	checkpointer *Checkpointer
	engine       *Engine
	queue        *Queue
	reader       *ReaderDriver
	reaper       *Reaper
	refresh      *RefreshScanner // nil when disabled
	info         RegistryFetcher
	errorSink    ErrorSink
	telemetry    Telemetry
	logger       *slog.Logger

	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
}

// Collaborators groups the external-contract implementations the
// Controller wires together.
type Collaborators struct {
	State          StateStore
	RegistryReader RegistryReader
	RegistryFetch  RegistryFetcher
	Formatter      Formatter
	Index          IndexClient
	LostIndex      LostIndexClient
	ErrorSink      ErrorSink
	Telemetry      Telemetry
}

// NewController builds a fully wired but not-yet-running Controller.
func NewController(cfg Config, c Collaborators, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}

	if c.Telemetry == nil {
		c.Telemetry = NopTelemetry{}
	}

	checkpointer := NewCheckpointer(c.State, logger)

	backoff := BackoffConfig{Base: cfg.BackoffBase, Pow: cfg.BackoffPow}
	pipeline := NewPipeline(c.RegistryFetch, c.Formatter, c.Index, c.Telemetry, backoff, logger)
	engine := NewEngine(checkpointer, pipeline, c.LostIndex, c.Index, c.ErrorSink, c.Telemetry, cfg.RetryMax, logger)

	reader := NewReaderDriver(c.RegistryReader, engine, c.ErrorSink, cfg.MaxPrefetch, cfg.MinUnpause, logger)

	queue := NewQueue(engine.handle, cfg.MaxPrefetch, cfg.MinUnpause, reader.onSaturatedTransition)
	engine.attachQueue(queue)
	reader.attachQueue(queue)

	reaper := NewReaper(engine, queue, cfg.RetrySkipped, logger)

	var refresh *RefreshScanner
	if cfg.RefreshEnabled {
		refresh = NewRefreshScanner(engine, queue, c.Index, cfg.RefreshPeriod, logger)
	}

	return &Controller{
		cfg:          cfg,
		checkpointer: checkpointer,
		engine:       engine,
		queue:        queue,
		reader:       reader,
		reaper:       reaper,
		refresh:      refresh,
		info:         c.RegistryFetch,
		errorSink:    c.ErrorSink,
		telemetry:    c.Telemetry,
		logger:       logger,
	}
}

// UpdateTunables applies a newer Config's safely-mutable knobs — prefetch
// watermarks, retry ceiling, backoff curve, and the reaper/refresh tick
// periods — to the running controller without a restart. It is the write
// side of
// internal/config's fsnotify-driven reload: the config package calls it
// with the freshly parsed watch section whenever the config file changes.
//
// The reader driver's pause threshold is not among those knobs: it keeps
// the MaxPrefetch the controller was built with, so a reloaded
// MaxPrefetch changes only the Queue's saturation watermarks.
//
// cfg.RefreshEnabled is compared against the value the controller was
// built with and, if it differs, only logged: starting or stopping the
// refresh scanner goroutine is a structural change this method cannot
// make safely on a running controller, so that one knob still needs a
// restart to take effect.
func (c *Controller) UpdateTunables(cfg Config) {
	c.queue.UpdateWatermarks(cfg.MaxPrefetch, cfg.MinUnpause)
	c.engine.UpdateRetryMax(cfg.RetryMax)
	c.engine.UpdateBackoff(BackoffConfig{Base: cfg.BackoffBase, Pow: cfg.BackoffPow})
	c.reaper.UpdatePeriod(cfg.RetrySkipped)

	if c.refresh != nil {
		c.refresh.UpdatePeriod(cfg.RefreshPeriod)
	}

	c.cfgMu.Lock()
	runningRefreshEnabled := c.cfg.RefreshEnabled
	c.cfg.MaxPrefetch = cfg.MaxPrefetch
	c.cfg.MinUnpause = cfg.MinUnpause
	c.cfg.RetryMax = cfg.RetryMax
	c.cfg.BackoffBase = cfg.BackoffBase
	c.cfg.BackoffPow = cfg.BackoffPow
	c.cfg.RetrySkipped = cfg.RetrySkipped
	c.cfg.RefreshPeriod = cfg.RefreshPeriod
	c.cfgMu.Unlock()

	if cfg.RefreshEnabled != runningRefreshEnabled {
		c.logger.Warn("watch.refresh_enabled changed in config but requires a restart to take effect",
			slog.Bool("running", runningRefreshEnabled),
			slog.Bool("requested", cfg.RefreshEnabled),
		)
	}

	c.logger.Info("watch tunables reloaded",
		slog.Int("max_prefetch", cfg.MaxPrefetch),
		slog.Int("min_unpause", cfg.MinUnpause),
		slog.Int("retry_max", cfg.RetryMax),
		slog.Duration("backoff_base", cfg.BackoffBase),
		slog.Float64("backoff_pow", cfg.BackoffPow),
		slog.Duration("retry_skipped", cfg.RetrySkipped),
		slog.Duration("refresh_period", cfg.RefreshPeriod),
	)
}

// Run persists the watch stage, starts every timer and the reader
// driver, and blocks until ctx is canceled or Stop is called.
// Only initial state read and initial feed start are allowed to surface
// an error to the caller; every other failure is handled
// internally and logged.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	defer close(c.done)

	state, err := c.checkpointer.Get(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("watch: reading initial state: %w", err)
	}

	if err := c.checkpointer.Save(ctx, StatePartial{Stage: "watch"}); err != nil {
		c.errorSink.ReportError(ctx, err, map[string]any{"phase": "persist_stage"})
		c.logger.Error("persisting watch stage failed, continuing", slog.String("error", err.Error()))
	}

	g, gctx := errgroup.WithContext(ctx)

	c.queue.Start(gctx)

	g.Go(func() error {
		c.reaper.Run(gctx)
		return nil
	})

	if c.refresh != nil {
		g.Go(func() error {
			c.refresh.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		c.runTotalSeqTicker(gctx)
		return nil
	})

	g.Go(func() error {
		c.runGaugePump(gctx)
		return nil
	})

	if err := c.reader.Start(gctx, state.Seq); err != nil {
		cancel()
		_ = g.Wait()

		return fmt.Errorf("watch: starting change feed: %w", err)
	}

	<-ctx.Done()
	_ = g.Wait()

	return nil
}

// Stop stops the upstream reader, awaits queue.Drain(), and tears down
// every timer. Idempotent; never raises.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.reader != nil {
			c.reader.Stop()
		}

		if c.queue != nil {
			c.queue.Drain()
		}

		if c.cancel != nil {
			c.cancel()
		}

		if c.done != nil {
			<-c.done
		}
	})
}

// runTotalSeqTicker refreshes the best-effort total-sequence gauge every
// totalSeqRefreshInterval. Failures are logged, not fatal.
func (c *Controller) runTotalSeqTicker(ctx context.Context) {
	ticker := time.NewTicker(totalSeqRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := c.info.Info(ctx)
			if err != nil {
				c.errorSink.ReportError(ctx, err, map[string]any{"component": "total_seq_ticker"})
				continue
			}

			c.telemetry.SetTotalSequence(info.UpdateSeq)
		}
	}
}

// runGaugePump periodically pushes queue length and parked count into
// Telemetry for the status API — ambient introspection, not part of
// the core ingestion algorithm.
func (c *Controller) runGaugePump(ctx context.Context) {
	ticker := time.NewTicker(gaugePumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.telemetry.SetQueueLength(c.queue.Length())
			c.telemetry.SetParkedCount(c.engine.parkedCount())
		}
	}
}

// Status is a read-only snapshot of the running pipeline, consumed by
// internal/statusapi. Producing it never mutates watcher state.
type Status struct {
	QueueLength   int
	Running       int
	ParkedCount   int
	CheckpointSeq int64
	TotalSequence int64
}

// Snapshot returns the current Status. Safe to call concurrently with Run.
func (c *Controller) Snapshot(ctx context.Context) Status {
	state, _ := c.checkpointer.Get(ctx)

	status := Status{
		QueueLength:   c.queue.Length(),
		Running:       c.queue.Running(),
		ParkedCount:   c.engine.parkedCount(),
		CheckpointSeq: state.Seq,
	}

	if snap, ok := c.telemetry.(interface{ Snapshot() TelemetrySnapshot }); ok {
		status.TotalSequence = snap.Snapshot().TotalSequence
	}

	return status
}
