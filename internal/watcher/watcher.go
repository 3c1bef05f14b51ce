// Package watcher reports changes to individual files, such as a mounted
// secret being rotated.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a set of files.
//
// Each file is watched through its parent directory, so replacements by
// rename or symlink swap are seen as well as in-place writes. An event is sent
// only once the file has been quiet for SettleDelay and its size or
// modification time actually moved.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger
	opts   Options

	mu    sync.Mutex
	files map[string]*watchedFile // clean path -> state
	dirs  map[string][]string     // directory -> watched paths in it

	events    chan Event
	errors    chan error
	closeOnce sync.Once
}

// watchedFile is the last observed state of a file.
type watchedFile struct {
	path    string
	exists  bool
	size    int64
	modTime time.Time
	timer   *time.Timer
}

// New creates a new file watcher.
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		fs:     fsw,
		logger: logger,
		opts:   opts,
		files:  make(map[string]*watchedFile),
		dirs:   make(map[string][]string),
		events: make(chan Event, 16),
		errors: make(chan error, 4),
	}, nil
}

// Watch adds a file to be monitored. The file may not exist yet, but its
// directory must.
func (w *Watcher) Watch(path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.files[path]; ok {
		return nil
	}

	if _, ok := w.dirs[dir]; !ok {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("added watch", "path", dir)
	}

	f := &watchedFile{path: path}
	f.observe()
	w.files[path] = f
	w.dirs[dir] = append(w.dirs[dir], path)
	return nil
}

// Start processes file system notifications until ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", "error", err)
			}
		}
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() error {
	var err error
	w.closeOnce.Do(func() {
		w.mu.Lock()
		for _, f := range w.files {
			if f.timer != nil {
				f.timer.Stop()
			}
		}
		w.mu.Unlock()
		err = w.fs.Close()
	})
	return err
}

// Events returns the channel for receiving settled file events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel for receiving errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// handle (re)arms the settle timer of every watched file in the event's
// directory. Symlink swaps touch sibling entries, not the file itself.
func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range w.dirs[filepath.Dir(event.Name)] {
		f := w.files[path]
		if f.timer != nil {
			f.timer.Reset(w.opts.SettleDelay)
			continue
		}
		f.timer = time.AfterFunc(w.opts.SettleDelay, func() { w.settle(path) })
	}
}

// settle compares the file with its last observed state and emits an event
// when it moved.
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	f := w.files[path]
	f.timer = nil
	prev := *f
	f.observe()
	cur := *f
	w.mu.Unlock()

	var event Event
	switch {
	case !cur.exists && prev.exists:
		event = Event{Type: EventRemoved, Path: path}
	case cur.exists && (!prev.exists || cur.size != prev.size || !cur.modTime.Equal(prev.modTime)):
		event = Event{Type: EventChanged, Path: path, Size: cur.size, ModTime: cur.modTime}
	default:
		return
	}

	select {
	case w.events <- event:
		w.logger.Debug("file event", "type", event.Type.String(), "path", path)
	default:
		w.logger.Warn("file event dropped", "type", event.Type.String(), "path", path)
	}
}

// observe refreshes f from disk, following symlinks.
func (f *watchedFile) observe() {
	info, err := os.Stat(f.path)
	if err != nil {
		// Unreadable counts as gone; the next change re-checks.
		f.exists = false
		f.size = 0
		f.modTime = time.Time{}
		return
	}
	f.exists = true
	f.size = info.Size()
	f.modTime = info.ModTime()
}
