package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch reloads the settings file whenever it is written and passes the new
// settings to sink. The parent directory is watched so that editors that
// replace the file are seen. Invalid files are logged and skipped. Watch
// blocks until ctx is done.
//
// sink runs on the watcher goroutine; it must hand the settings over to the
// render thread rather than apply them.
func Watch(ctx context.Context, path string, sink func(*Settings)) error {
	path, err := Expand(path)
	if err != nil {
		return err
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating settings watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("error watching %s: %w", path, err)
	}

	log := logrus.WithField("settings", path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s, err := LoadSettings(path)
			if err != nil {
				log.WithError(err).Warn("ignoring settings change")
				continue
			}
			log.Info("settings reloaded")
			sink(s)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("settings watcher error")
		}
	}
}
