package recipe

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDur coalesces editor save bursts into one rerun.
const debounceDur = 500 * time.Millisecond

// Watch runs the recipe once, then reruns it whenever a file under one of
// the watched paths changes. It blocks until ctx is cancelled. A failing
// recipe run does not stop the watch; the failure is logged and the watcher
// waits for the next change.
func (r *Runner) Watch(ctx context.Context, rec Recipe, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	//nolint:errcheck // Deferred cleanup, error not actionable
	defer func() { _ = watcher.Close() }()

	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
	}

	runOnce := func() {
		if err := r.Run(ctx, rec); err != nil {
			r.logger.Warn("recipe failed, waiting for changes",
				zap.String("recipe", rec.Name),
				zap.Error(err))
		}
	}

	runOnce()

	var debounce *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			r.logger.Debug("change detected",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDur, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", zap.Error(err))

		case <-pending:
			runOnce()
		}
	}
}
