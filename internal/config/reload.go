package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	reloadDebounce    = 250 * time.Millisecond
	watchErrBackoff   = 1 * time.Second
	watchErrMaxBackoff = 30 * time.Second
)

// WatchReload watches holder's config file for writes. On each debounced
// write it reparses the file, stores the merged result in holder, and —
// if onReload is non-nil — passes the merged config to onReload so a
// live consumer (the watcher's Lifecycle controller, via its
// UpdateTunables method) can apply the safe-to-change-without-a-restart
// subset: prefetch watermarks, retry ceiling, backoff curve, and the
// reaper/refresh tick periods. onReload is called synchronously on the debounce timer's
// goroutine; it must not block. It runs until ctx is canceled.
func WatchReload(ctx context.Context, holder *Holder, onReload func(*Config), logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(holder.Path()); err != nil {
		logger.Warn("config hot-reload disabled: could not watch file",
			slog.String("path", holder.Path()), slog.String("error", err.Error()))

		return nil
	}

	var pending *time.Timer

	errBackoff := watchErrBackoff

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if pending != nil {
				pending.Stop()
			}

			pending = time.AfterFunc(reloadDebounce, func() { Reload(holder, onReload, logger) })

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("config watcher error", slog.String("error", watchErr.Error()))

			if sleepErr := sleepFor(ctx, errBackoff); sleepErr != nil {
				return nil
			}

			errBackoff *= 2
			if errBackoff > watchErrMaxBackoff {
				errBackoff = watchErrMaxBackoff
			}
		}
	}
}

// Reload reparses holder's config file, stores the merged result, and
// invokes onReload (if non-nil) with the new config. Exported so it can
// also be triggered out-of-process via SIGHUP (signal.go), not just by
// the debounced fsnotify path above.
func Reload(holder *Holder, onReload func(*Config), logger *slog.Logger) {
	next, err := Load(holder.Path())
	if err != nil {
		logger.Warn("config reload failed, keeping previous config", slog.String("error", err.Error()))
		return
	}

	current := holder.Config()
	merged := *current
	merged.Watch = next.Watch

	holder.Update(&merged)

	if onReload != nil {
		onReload(&merged)
	}

	logger.Info("config reloaded", slog.String("path", holder.Path()))
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
