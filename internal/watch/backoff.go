package watch

import (
	"context"
	"math"
	"time"
)

// BackoffConfig parameterizes the exponential retry delay
// Base * Pow^retry, so the first retry (retry == 1) waits Base * Pow.
type BackoffConfig struct {
	Base time.Duration
	Pow  float64
}

// delay returns the deterministic backoff duration for the given retry
// count. delay(0) is always zero — a first attempt never waits.
func (b BackoffConfig) delay(retry int) time.Duration {
	if retry <= 0 {
		return 0
	}

	factor := math.Pow(b.Pow, float64(retry))

	return time.Duration(float64(b.Base) * factor)
}

// sleep suspends the caller for delay(retry), returning early if ctx is
// canceled. A canceled sleep returns ctx.Err() so callers can distinguish
// shutdown from a completed backoff.
func (b BackoffConfig) sleep(ctx context.Context, retry int) error {
	d := b.delay(retry)
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
