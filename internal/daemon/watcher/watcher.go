// Package watcher watches the daemon's control-request mailbox.
package watcher

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/motioninput/mimonitor/internal/config"
)

// EventType represents the type of file system event.
type EventType int

// Event types for file system changes.
const (
	EventRequest         EventType = iota // a control request file appeared
	EventSettingsChanged                  // settings.yaml was rewritten
)

func (t EventType) String() string {
	if t == EventSettingsChanged {
		return "settings-changed"
	}
	return "request"
}

const debounceDelay = 100 * time.Millisecond

// Event represents a file system change event.
type Event struct {
	Type EventType
	Path string
}

// Watcher reports control request files dropped into the mailbox and
// changes to the settings file.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	requestsDir  string
	settingsPath string
	eventsChan   chan Event
	done         chan struct{}
	stopOnce     sync.Once
	debounce     map[string]*time.Timer
	debounceMu   sync.Mutex
	logger       *slog.Logger
}

// New creates a watcher over requestsDir. settingsPath may be empty.
func New(requestsDir, settingsPath string, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		fsWatcher:    fsWatcher,
		requestsDir:  filepath.Clean(requestsDir),
		settingsPath: settingsPath,
		eventsChan:   make(chan Event, 100),
		done:         make(chan struct{}),
		debounce:     make(map[string]*time.Timer),
		logger:       logger,
	}, nil
}

// Events returns the channel for receiving events.
func (w *Watcher) Events() <-chan Event {
	return w.eventsChan
}

// Start begins watching and returns without waiting for a consumer. Request
// files already waiting in the mailbox are reported before new ones.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.requestsDir); err != nil {
		return err
	}
	if w.settingsPath != "" {
		if err := w.fsWatcher.Add(filepath.Dir(w.settingsPath)); err != nil {
			w.logger.Warn("failed to watch settings dir", "error", err)
		}
	}

	go w.processEvents()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.fsWatcher.Close()

		w.debounceMu.Lock()
		for path, timer := range w.debounce {
			timer.Stop()
			delete(w.debounce, path)
		}
		w.debounceMu.Unlock()
	})
}

// processEvents reports the pending requests, then processes file system
// events until Stop.
func (w *Watcher) processEvents() {
	pending, err := pendingIn(w.requestsDir)
	if err != nil {
		w.logger.Warn("failed to list pending requests", "error", err)
	}
	for _, path := range pending {
		w.emit(Event{Type: EventRequest, Path: path})
	}

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.logger.Debug("fsnotify", "op", event.Op.String(), "path", event.Name)
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// handleEvent processes a single file system event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Requests are written to a temp name and renamed into place, so the
	// target shows up as Create (or Rename on some platforms).
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	w.debounceEvent(event.Name, func() {
		w.processFileChange(event.Name)
	})
}

// debounceEvent debounces events for the same path.
func (w *Watcher) debounceEvent(path string, fn func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}

	w.debounce[path] = time.AfterFunc(debounceDelay, func() {
		w.debounceMu.Lock()
		delete(w.debounce, path)
		w.debounceMu.Unlock()
		fn()
	})
}

// processFileChange classifies a debounced file change.
func (w *Watcher) processFileChange(path string) {
	if w.settingsPath != "" && filepath.Clean(path) == filepath.Clean(w.settingsPath) {
		w.emit(Event{Type: EventSettingsChanged, Path: path})
		return
	}
	if filepath.Dir(path) == w.requestsDir && config.IsRequestFile(path) && config.FileExists(path) {
		w.emit(Event{Type: EventRequest, Path: path})
	}
}

func (w *Watcher) emit(e Event) {
	select {
	case w.eventsChan <- e:
	case <-w.done:
	}
}

func pendingIn(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+config.RequestFileExt))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if config.IsRequestFile(m) {
			out = append(out, m)
		}
	}
	return out, nil
}
