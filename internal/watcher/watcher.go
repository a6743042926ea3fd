package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileEvent is a debounced change to the watched firmware file
type FileEvent struct {
	Path      string
	Operation string
	Time      time.Time
}

// Watcher reports changes to a single file. The parent directory is watched
// so that files replaced by rename are still seen.
type Watcher struct {
	watcher    *fsnotify.Watcher
	events     chan FileEvent
	errors     chan error
	done       chan struct{}
	debounceMs int
	target     string
}

func NewWatcher(debounceMs int) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:    fsWatcher,
		events:     make(chan FileEvent),
		errors:     make(chan error),
		done:       make(chan struct{}),
		debounceMs: debounceMs,
	}, nil
}

// Watch starts delivering events for path
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	w.target = abs

	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	go w.processEvents()
	return nil
}

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

func (w *Watcher) processEvents() {
	var pending *FileEvent
	timer := time.NewTimer(time.Duration(w.debounceMs) * time.Millisecond)
	timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target || event.Op&relevantOps == 0 {
				continue
			}
			pending = &FileEvent{
				Path:      event.Name,
				Operation: event.Op.String(),
				Time:      time.Now(),
			}
			timer.Reset(time.Duration(w.debounceMs) * time.Millisecond)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}

		case <-timer.C:
			if pending == nil {
				continue
			}
			select {
			case w.events <- *pending:
			case <-w.done:
				return
			}
			pending = nil

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
