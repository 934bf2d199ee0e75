// Package watcher reports new footage dropped into an ingest folder.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/droneedit/droneedit-agent/internal/logging"
)

type Watcher interface {
	Watch(ctx context.Context, path string) error
	Stop() error
	OnChange(callback func(path string, event EventType))
}

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	}
	return "unknown"
}

// DefaultDebounce is how long a file must stay quiet before it is reported.
// Cards copy footage in many writes.
const DefaultDebounce = 2 * time.Second

var videoExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
	".mkv": true,
	".avi": true,
	".mts": true,
}

// IsVideoFile reports whether name looks like camera footage. Low
// resolution proxies (.lrv) are not.
func IsVideoFile(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// FSWatcher watches directories (not recursively) with fsnotify.
type FSWatcher struct {
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	fs       *fsnotify.Watcher
	callback func(path string, event EventType)
	pending  map[string]*pendingEvent
	stopped  bool
}

type pendingEvent struct {
	timer *time.Timer
	kind  EventType
}

func NewFSWatcher(logger *slog.Logger, debounce time.Duration) *FSWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FSWatcher{
		logger:   logging.WithComponent(logging.OrDiscard(logger), "watcher"),
		debounce: debounce,
		pending:  make(map[string]*pendingEvent),
	}
}

func (w *FSWatcher) OnChange(callback func(path string, event EventType)) {
	w.mu.Lock()
	w.callback = callback
	w.mu.Unlock()
}

// Watch adds the directory path. The watcher stops when ctx is done.
func (w *FSWatcher) Watch(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", path)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return errors.New("watcher stopped")
	}
	if w.fs == nil {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		w.fs = fw
		go w.loop(ctx, fw)
	}
	if err := w.fs.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	w.logger.Info("watching folder", "path", logging.SanitizePath(path))
	return nil
}

func (w *FSWatcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *FSWatcher) handle(ev fsnotify.Event) {
	if !IsVideoFile(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.mu.Lock()
		if p, ok := w.pending[ev.Name]; ok {
			p.timer.Stop()
			delete(w.pending, ev.Name)
		}
		w.mu.Unlock()
		w.emit(ev.Name, EventDelete)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		kind := EventModify
		if ev.Has(fsnotify.Create) {
			kind = EventCreate
		}
		w.schedule(ev.Name, kind)
	}
}

// schedule restarts the quiet period for path. A burst that began with a
// create is reported as a create.
func (w *FSWatcher) schedule(path string, kind EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if p, ok := w.pending[path]; ok {
		p.timer.Reset(w.debounce)
		return
	}
	p := &pendingEvent{kind: kind}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		cur, ok := w.pending[path]
		if ok && cur == p {
			delete(w.pending, path)
		}
		w.mu.Unlock()
		if ok && cur == p {
			w.emit(path, p.kind)
		}
	})
	w.pending[path] = p
}

func (w *FSWatcher) emit(path string, kind EventType) {
	w.mu.Lock()
	cb := w.callback
	w.mu.Unlock()
	w.logger.Debug("footage changed", "path", logging.SanitizePath(path), "event", kind.String())
	if cb != nil {
		cb(path, kind)
	}
}

// Stop closes the watcher and drops pending events. It is safe to call
// more than once.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for path, p := range w.pending {
		p.timer.Stop()
		delete(w.pending, path)
	}
	fw := w.fs
	w.mu.Unlock()

	if fw != nil {
		return fw.Close()
	}
	return nil
}
