package watch

import (
	"context"
	"log/slog"
	"sync"
)

// Checkpointer wraps an external StateStore. It is the sole writer
// of seq and guarantees two things the raw store does not: writes apply
// in submission order with each durable before the next begins, and seq
// never regresses.
type Checkpointer struct {
	store  StateStore
	logger *slog.Logger

	mu      sync.Mutex // serializes Save calls
	current State
	loaded  bool
}

// NewCheckpointer creates a Checkpointer over store.
func NewCheckpointer(store StateStore, logger *slog.Logger) *Checkpointer {
	return &Checkpointer{store: store, logger: logger}
}

// Get returns the current state, loading it from the store on first call
// and caching it thereafter so Save's monotonic check doesn't need a
// round trip to the store on every call.
func (c *Checkpointer) Get(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.current, nil
	}

	st, err := c.store.Get(ctx)
	if err != nil {
		return State{}, err
	}

	c.current = st
	c.loaded = true

	return st, nil
}

// Save persists partial, holding the lock for the full round trip so
// concurrent Save calls serialize and apply in submission order.
// A save with a lower seq than the current checkpoint is a monotonic
// no-op: it is logged and dropped rather than persisted. A
// refresh-scanner synthetic seq of -1 is rejected by this same guard
// since -1 < any real current.Seq once the pipeline has processed at
// least one live change, and is rejected against the zero State
// otherwise since -1 < 0.
func (c *Checkpointer) Save(ctx context.Context, partial StatePartial) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		st, err := c.store.Get(ctx)
		if err != nil {
			return err
		}

		c.current = st
		c.loaded = true
	}

	if partial.SeqSet && partial.Seq < c.current.Seq {
		c.logger.Debug("checkpoint save ignored: seq would regress",
			slog.Int64("current_seq", c.current.Seq),
			slog.Int64("attempted_seq", partial.Seq),
		)

		return nil
	}

	if err := c.store.Save(ctx, partial); err != nil {
		return err
	}

	if partial.Stage != "" {
		c.current.Stage = partial.Stage
	}

	if partial.SeqSet {
		c.current.Seq = partial.Seq
	}

	return nil
}
