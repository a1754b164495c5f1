package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchSecretFile monitors path and calls onChange with the new secret each
// time its content changes. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself, so atomic
// saves and mounted-secret symlink swaps are picked up. A reload that fails
// or yields an empty secret is logged and the previous secret stays active.
func WatchSecretFile(ctx context.Context, path string, current string, logger *slog.Logger, onChange func(string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger.Info("watching internal secret file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			secret, err := ReadSecretFile(path)
			if err != nil {
				logger.Warn("secret reload failed, keeping previous secret",
					"path", path, "error", err)
				continue
			}
			if secret == current {
				continue
			}

			current = secret
			logger.Info("internal secret rotated", "path", path)
			onChange(secret)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("secret watcher error", "error", err)
		}
	}
}
