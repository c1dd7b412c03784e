// Package watch re-runs work when a file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses bursts of writes into one change.
const DefaultDebounce = 200 * time.Millisecond

// File calls fn after path is written, created or renamed into place, and
// blocks until ctx is cancelled. The parent directory is watched so editors
// and tools that replace the file atomically are seen too. Calls to fn never
// overlap.
func File(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, fn func(context.Context)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}
	logger.Debug("watching file", "path", target)

	var (
		mu            sync.Mutex
		wg            sync.WaitGroup
		debounceTimer *time.Timer
	)
	defer func() {
		mu.Lock()
		if debounceTimer != nil && debounceTimer.Stop() {
			wg.Done()
		}
		mu.Unlock()
		wg.Wait()
	}()

	var running sync.Mutex
	trigger := func() {
		defer wg.Done()
		running.Lock()
		defer running.Unlock()
		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != target {
				continue
			}

			mu.Lock()
			if debounceTimer != nil && debounceTimer.Stop() {
				wg.Done()
			}
			wg.Add(1)
			debounceTimer = time.AfterFunc(debounce, trigger)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
