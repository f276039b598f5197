// Package watch adapts the OS-specific notification backends into engine
// events: a recursive fsnotify watcher for filesystem changes and an OS
// signal listener. Debouncing is not done here; the engine's collector owns
// that.
package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/felixonmars/watchexec/internal/event"
)

// Submitter is the slice of the engine surface the sources need.
type Submitter interface {
	SubmitEvent(ev event.Event) error
}

// Watcher wraps fsnotify and forwards change events to a Submitter.
type Watcher struct {
	watcher *fsnotify.Watcher
	submit  Submitter
	errors  chan error

	mu       sync.Mutex
	watching map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a filesystem watcher feeding sub.
func NewWatcher(sub Submitter) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		watcher:  w,
		submit:   sub,
		errors:   make(chan error, 10),
		watching: make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins forwarding events.
func (w *Watcher) Start() {
	go w.processEvents()
}

// Stop tears the watcher down.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	close(w.errors)
	return err
}

// Errors surfaces backend errors to the embedding application, which
// decides whether to continue or shut down.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// AddPath watches a path; directories are added recursively.
func (w *Watcher) AddPath(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if w.watching[absPath] {
		return nil
	}

	if err := w.watcher.Add(absPath); err != nil {
		return err
	}
	w.watching[absPath] = true

	info, err := os.Stat(absPath)
	if err == nil && info.IsDir() {
		return w.addDirectoryRecursive(absPath)
	}
	return nil
}

func (w *Watcher) addDirectoryRecursive(dirPath string) error {
	return filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() || w.watching[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("Error adding directory %s: %v", path, err)
			return nil // Continue on error
		}
		w.watching[path] = true
		return nil
	})
}

func (w *Watcher) processEvents() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	kind := determineKind(ev)
	if kind == "" {
		return
	}

	// New directories need watches of their own.
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if !w.watching[ev.Name] {
				if err := w.watcher.Add(ev.Name); err == nil {
					w.watching[ev.Name] = true
				}
			}
			w.mu.Unlock()
		}
	}

	if err := w.submit.SubmitEvent(event.FileChange(ev.Name, kind)); err != nil {
		log.Printf("dropping file event for %s: %v", ev.Name, err)
	}
}

func determineKind(ev fsnotify.Event) string {
	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		return event.FileCreated
	case ev.Op&fsnotify.Write == fsnotify.Write:
		return event.FileModified
	case ev.Op&fsnotify.Remove == fsnotify.Remove:
		return event.FileDeleted
	case ev.Op&fsnotify.Rename == fsnotify.Rename:
		return event.FileRenamed
	case ev.Op&fsnotify.Chmod == fsnotify.Chmod:
		return "" // metadata only, not a content change
	}
	return event.FileModified
}
