// Package filewatch calls back when files change on disk.
//
// The directories containing the files are watched with fsnotify, so files
// replaced by editors that save through a rename are still seen. Bursts of
// events are debounced into one callback. When fsnotify is unavailable the
// watcher falls back to polling modification times.
package filewatch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"connectorctl/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounceInterval is the quiet period before OnChange runs.
	DefaultDebounceInterval = 200 * time.Millisecond

	// DefaultPollInterval is used when fsnotify is unavailable.
	DefaultPollInterval = time.Second
)

// Config configures a Watcher.
type Config struct {
	// Files are the paths to watch.
	Files []string

	// Debounce defaults to DefaultDebounceInterval.
	Debounce time.Duration

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// OnChange runs once per burst of changes.
	OnChange func()
}

// Watcher watches a set of files.
type Watcher struct {
	mu      sync.Mutex
	config  Config
	files   map[string]bool
	fs      *fsnotify.Watcher
	stopCh  chan struct{}
	running bool

	modTimes map[string]time.Time

	debounceMu    sync.Mutex
	debounceTimer *time.Timer
}

// New creates a Watcher. Paths are made absolute.
func New(config Config) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounceInterval
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	files := make(map[string]bool, len(config.Files))
	for _, f := range config.Files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, err
		}
		files[abs] = true
	}

	return &Watcher{
		config:   config,
		files:    files,
		modTimes: make(map[string]time.Time),
	}, nil
}

// Start begins watching. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.stopCh = make(chan struct{})
	w.running = true

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("FileWatch", "fsnotify not available, falling back to polling: %v", err)
		go w.poll()
		return nil
	}

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := fs.Add(dir); err != nil {
			logging.Warn("FileWatch", "Failed to watch %s, falling back to polling: %v", dir, err)
			fs.Close()
			go w.poll()
			return nil
		}
	}

	w.fs = fs
	go w.processEvents(fs.Events, fs.Errors)
	return nil
}

func (w *Watcher) processEvents(events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			logging.Error("FileWatch", err, "fsnotify error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.files[filepath.Clean(event.Name)] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	logging.Debug("FileWatch", "%s changed (%s)", event.Name, event.Op)
	w.triggerDebounced()
}

func (w *Watcher) triggerDebounced() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		running := w.running
		callback := w.config.OnChange
		w.mu.Unlock()

		if running && callback != nil {
			callback()
		}
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.checkForChanges()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.checkForChanges() {
				w.triggerDebounced()
			}
		}
	}
}

// checkForChanges records modification times and reports whether any moved
// forward since the previous check.
func (w *Watcher) checkForChanges() bool {
	changed := false
	for f := range w.files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if last, ok := w.modTimes[f]; ok && mod.After(last) {
			changed = true
		}
		w.modTimes[f] = mod
	}
	return changed
}

// Stop stops watching and drops any pending callback.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)

	w.debounceMu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
	w.debounceMu.Unlock()

	if w.fs != nil {
		if err := w.fs.Close(); err != nil {
			logging.Warn("FileWatch", "Error closing fsnotify watcher: %v", err)
		}
		w.fs = nil
	}
	return nil
}

// IsRunning returns whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
