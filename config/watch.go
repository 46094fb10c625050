package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the bursts of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

type WatchOptions struct {
	Debounce time.Duration
	// Load turns the file into a config; Load when nil.
	Load func(path string) (Config, error)
}

// Watch calls fn with the reloaded config each time path changes, until ctx
// is done. A file that fails to load is logged and ignored.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a new file over the old one keep working.
func Watch(ctx context.Context, path string, fn func(Config), opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Load == nil {
		opts.Load = Load
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	log := slog.Default().With("config", path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	log.Debug("watching config file")

	timer := time.NewTimer(opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(opts.Debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "error", err)
		case <-timer.C:
			cfg, err := opts.Load(path)
			if err != nil {
				log.Warn("ignoring config change", "error", err)
				continue
			}
			log.Info("config file changed")
			fn(cfg)
		}
	}
}
