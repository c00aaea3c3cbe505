package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/dagforge/internal/loader"
)

// DefaultDebounce is the quiet period used when Options.Debounce is unset.
const DefaultDebounce = 200 * time.Millisecond

// Watch runs Generate once, then again each time record files in
// opts.ConfigsDir change, until ctx is cancelled. Bursts of events are
// coalesced into one batch. Every batch is passed to onReport.
func (e *Engine) Watch(ctx context.Context, opts Options, onReport func(*Report, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(opts.ConfigsDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.ConfigsDir, err)
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	onReport(e.Generate(ctx, opts))

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !loader.IsRecordFile(event.Name) {
				continue
			}
			e.logger.Debug("config change detected", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if ctx.Err() != nil {
				return nil
			}
			onReport(e.Generate(ctx, opts))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watcher error", "error", err)
		}
	}
}
