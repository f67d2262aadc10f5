package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of filesystem events an editor save
// or atomic rename produces into a single reload.
const watchDebounce = 100 * time.Millisecond

// Watch reloads the QoS config at path each time the file changes and
// hands the freshly validated Config to onChange, typically to rebuild
// the engine. It runs until ctx is cancelled.
//
// A reload that fails to read, parse, or validate is logged and
// swallowed: onChange is not called and the previously loaded config
// stays live, so a half-written decision table never reaches the engine.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	slog.Info("config: watching", "path", path)

	reload := time.NewTimer(time.Hour)
	reload.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Writes, creates, and renames all show up during saves;
			// anything else (chmod) is noise.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			reload.Reset(watchDebounce)
			pending = true

		case <-reload.C:
			if !pending {
				continue
			}
			pending = false

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
			} else {
				slog.Info("config: reloaded",
					"path", path,
					"signals", len(cfg.Signals),
					"rules", len(cfg.Evaluator.Rules),
					"decisions", len(cfg.Decisions),
				)
				onChange(cfg)
			}

			// An atomic save replaces the inode; re-add so the next save
			// is still seen.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
