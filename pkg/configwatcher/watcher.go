package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"coursecraft_backend/internal/config"
	"coursecraft_backend/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type Reloader func(cfg *config.Config)

const debounce = time.Second

// Watch reloads config.yaml from dir whenever it changes and hands the new
// config to reload. Bursts of events are collapsed into one reload. The
// directory is watched rather than the file so editors that replace the file
// are picked up. Watch blocks until ctx is done.
func Watch(ctx context.Context, dir string, reload Reloader) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	if err := watcher.Add(absDir); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	target := filepath.Join(absDir, "config.yaml")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)
		case <-timer.C:
			cfg, err := config.LoadConfig(absDir)
			if err != nil {
				logger.Log.Error("failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("config reloaded", zap.String("file", target))
			reload(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Log.Error("config watcher error", zap.Error(err))
		}
	}
}
