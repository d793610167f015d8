package loader

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	sentryhelper "github.com/aposazhennikov/music-organizer/sentry_helper"
)

// EventKind says what happened to a watched file.
type EventKind int

const (
	FileAdded EventKind = iota
	FileRemoved
)

func (k EventKind) String() string {
	if k == FileAdded {
		return "added"
	}
	return "removed"
}

// Event is a change to a track file in the watched directory.
type Event struct {
	Kind EventKind
	Path string
}

// Watcher reports track files appearing in or disappearing from a directory.
type Watcher struct {
	watcher      *fsnotify.Watcher
	ext          string
	events       chan Event
	done         chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
	logger       *slog.Logger
	sentryHelper *sentryhelper.SentryHelper
}

// NewWatcher starts watching dir for files with extension ext.
func NewWatcher(dir, ext string, logger *slog.Logger, sentryHelper *sentryhelper.SentryHelper) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if sentryHelper == nil {
		sentryHelper = sentryhelper.NewSentryHelper(false, logger)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		sentryHelper.CaptureError(err, "watcher", "create")
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		sentryHelper.CaptureError(err, "watcher", "add")
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	w := &Watcher{
		watcher:      fsw,
		ext:          ext,
		events:       make(chan Event, 16),
		done:         make(chan struct{}),
		logger:       logger.With("component", "watcher", "directory", dir),
		sentryHelper: sentryHelper,
	}

	w.wg.Add(1)
	go w.watchDirectory()

	return w, nil
}

// Events returns the channel of file events. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
		close(w.events)
	})
	if err != nil {
		w.sentryHelper.CaptureError(err, "watcher", "close")
	}
	return err
}

// watchDirectory translates fsnotify events into track events.
func (w *Watcher) watchDirectory() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !HasExtension(event.Name, w.ext) {
				continue
			}

			var kind EventKind
			switch {
			case event.Op&fsnotify.Create != 0:
				kind = FileAdded
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				kind = FileRemoved
			default:
				continue
			}

			w.logger.Info("Change detected", "file", event.Name, "kind", kind.String())
			select {
			case w.events <- Event{Kind: kind, Path: event.Name}:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("fsnotify error", "error", err)
			w.sentryHelper.CaptureError(fmt.Errorf("fsnotify error: %w", err), "watcher", "watch")
		}
	}
}
