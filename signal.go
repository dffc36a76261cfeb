package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second, giving the controller time to finish the
// job in flight and checkpoint before the process dies. SIGHUP never
// cancels the context — it invokes onReload, the same config-reload path
// the fsnotify watcher in watch_cmd.go takes on a file write, so a running
// daemon can pick up new tunables without dropping its queue.
func shutdownContext(parent context.Context, onReload func(), logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)

	waitFirst:
		for {
			select {
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					logger.Info("received SIGHUP, reloading config")

					if onReload != nil {
						onReload()
					}

					continue
				}

				logger.Info("received signal, checkpointing and draining the queue",
					slog.String("signal", sig.String()),
				)
				cancel()

				break waitFirst

			case <-ctx.Done():
				return
			}
		}

		// Wait for a second SIGINT/SIGTERM — force exit. A SIGHUP here is
		// pointless (the watcher is already shutting down) so it's ignored.
		for {
			select {
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					continue
				}

				logger.Warn("received second signal, forcing exit",
					slog.String("signal", sig.String()),
				)
				os.Exit(1)
			case <-parent.Done():
				return
			}
		}
	}()

	return ctx
}
