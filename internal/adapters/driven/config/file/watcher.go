package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/custodia-labs/papercache/internal/logger"
)

// watchDebounce coalesces the burst of events an editor produces on save.
const watchDebounce = 200 * time.Millisecond

// Watcher is anything that reports changes to files it owns.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Watchers fans one Watch call out to several watchers.
type Watchers []Watcher

// Watch starts every watcher. It fails on the first watcher that cannot start.
func (ws Watchers) Watch(ctx context.Context, onChange func()) error {
	for _, w := range ws {
		if err := w.Watch(ctx, onChange); err != nil {
			return err
		}
	}
	return nil
}

// Watch reloads the store whenever the config file changes on disk and
// then calls onChange. Watching stops when ctx is done.
func (s *ConfigStore) Watch(ctx context.Context, onChange func()) error {
	target := filepath.Clean(s.filePath)
	return watchDir(ctx, filepath.Dir(s.filePath), "config",
		func(name string) bool { return filepath.Clean(name) == target },
		s.Load,
		onChange)
}

// watchDir watches dir rather than individual files so that editors which
// replace a file on save are seen. Events on files accepted by match are
// debounced, then reload runs and, if it succeeds, onChange.
func watchDir(
	ctx context.Context,
	dir, component string,
	match func(name string) bool,
	reload func() error,
	onChange func(),
) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		log := logger.Zap().Named(component)

		timer := time.NewTimer(watchDebounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !match(event.Name) {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					timer.Reset(watchDebounce)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watcher error", zap.Error(err))

			case <-timer.C:
				if err := reload(); err != nil {
					log.Warn("reload failed", zap.String("dir", dir), zap.Error(err))
					continue
				}
				log.Debug("reloaded", zap.String("dir", dir))
				if onChange != nil {
					onChange()
				}
			}
		}
	}()
	return nil
}
