// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package api

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SessionWatcher reloads a FileSessionSource when the session file
// changes on disk, so a long-running TUI picks up a `quill login` or
// `quill logout` issued from another terminal without restarting.
//
// The watcher observes the file's parent directory rather than the
// file itself: editors and our own WriteSessionFile replace the file,
// and a watch on the old inode would go quiet after the first write.
// Events are debounced so a write burst triggers one reload.
type SessionWatcher struct {
	source   *FileSessionSource
	watcher  *fsnotify.Watcher
	onChange func(*Session)
	logger   *slog.Logger
	debounce time.Duration
	done     chan struct{}
}

// WatchSession starts watching the source's file. onChange is called
// (from the watcher goroutine) with the freshly loaded session after
// every successful reload; it may be nil. Call Close to stop.
func WatchSession(source *FileSessionSource, onChange func(*Session), logger *slog.Logger) (*SessionWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(source.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &SessionWatcher{
		source:   source,
		watcher:  fsw,
		onChange: onChange,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher and releases the underlying fsnotify
// resources.
func (w *SessionWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *SessionWatcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	target := filepath.Clean(w.source.Path())
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("session watcher error", "error", err)
		case <-timerC:
			timerC = nil
			if err := w.source.Reload(); err != nil {
				w.logger.Warn("session reload failed", "error", err)
				continue
			}
			w.logger.Debug("session reloaded",
				"authenticated", w.source.Current() != nil)
			if w.onChange != nil {
				w.onChange(w.source.Current())
			}
		}
	}
}
