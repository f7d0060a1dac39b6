package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/babyproofxr/hazard/logging"
)

// Watch re-reads the config file whenever it changes and hands each valid result to onChange.
// Invalid edits are logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, filePath string, logger logging.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer watcher.Close()

	// editors often replace the file, so watch its directory
	target := filepath.Clean(filePath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return errors.Wrapf(err, "cannot watch %q", filePath)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.CWarnw(ctx, "config watcher error", "error", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := Read(ctx, filePath, logger)
			if err != nil {
				logger.CWarnw(ctx, "ignoring invalid config change", "path", filePath, "error", err)
				continue
			}
			logger.CInfow(ctx, "config reloaded", "path", filePath)
			onChange(cfg)
		}
	}
}
