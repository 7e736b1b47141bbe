package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the event bursts editors and atomic saves produce
// into a single reload.
const debounceDelay = 200 * time.Millisecond

// Watch monitors the config file at path and calls onChange with a freshly
// loaded Config each time its contents actually change. It runs until ctx is
// cancelled.
//
// The watch is placed on the parent directory rather than the file itself:
// editors and configuration tools typically save atomically by writing a temp
// file and renaming it over the original, which replaces the inode a
// file-level watch is pinned to. Events are debounced; a reload that fails to
// parse or validate is logged and dropped, and a reload yielding a config
// identical to the last delivered one is skipped. onChange only ever sees a
// valid, changed Config.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	base := filepath.Base(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	// Seed the change detector with the current state so a rewrite with
	// identical contents does not restart downstream loops.
	last, _ := Load(path)

	debounce := time.NewTimer(debounceDelay)
	if !debounce.Stop() {
		<-debounce.C
	}

	slog.Info("config: watching for changes", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			// Write covers in-place edits; Create and Rename cover
			// replace-by-rename saves.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			debounce.Reset(debounceDelay)

		case <-debounce.C:
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", path, "err", err)
				continue
			}
			if last != nil && reflect.DeepEqual(cfg, last) {
				continue
			}
			last = cfg
			slog.Info("config: reloaded", "path", path)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
