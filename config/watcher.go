package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/penlight/vitalsum/logging"
)

// Watcher watches a configuration file for changes and reloads it
type Watcher struct {
	path      string
	config    *Config
	loader    *Loader
	onChange  func(*Config)
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	mu        sync.RWMutex
	debouncer *debouncer
}

// NewWatcher creates a new configuration file watcher
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	expandedPath := os.ExpandEnv(path)

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	loader := NewLoader()
	loader.AddSource(NewFileSource(expandedPath))
	loader.AddValidator(NewStandardValidator())

	w := &Watcher{
		path:      expandedPath,
		loader:    loader,
		onChange:  onChange,
		watcher:   fsWatcher,
		stopCh:    make(chan struct{}),
		debouncer: newDebouncer(500 * time.Millisecond),
	}

	return w, nil
}

// Start loads the initial configuration and begins watching
func (w *Watcher) Start() error {
	cfg, err := w.loader.LoadWithDefaults()
	if err != nil {
		return fmt.Errorf("failed to load initial configuration: %w", err)
	}

	w.mu.Lock()
	w.config = cfg
	w.mu.Unlock()

	if err := w.addWatches(); err != nil {
		return fmt.Errorf("failed to add file watches: %w", err)
	}

	go w.processEvents()

	return nil
}

// Stop stops watching the configuration file
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.debouncer.stop()
	return w.watcher.Close()
}

// Current returns the current configuration
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// addWatches watches the file and its directory, so replace-by-rename
// edits are seen too.
func (w *Watcher) addWatches() error {
	if _, err := os.Stat(w.path); err == nil {
		if err := w.watcher.Add(w.path); err != nil {
			return fmt.Errorf("failed to watch config file %s: %w", w.path, err)
		}
	}

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	return nil
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.LogWarnf("config watcher error: %v", err)

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Name != w.path {
		return
	}

	// Editors fire bursts of events per save.
	w.debouncer.debounce(func() {
		w.reloadConfig()
	})
}

func (w *Watcher) reloadConfig() {
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		logging.LogWarnf("config file deleted: %s", w.path)
		return
	}

	cfg, err := w.loader.LoadWithDefaults()
	if err != nil {
		logging.LogWarnf("failed to reload configuration: %v", err)
		return
	}

	w.mu.Lock()
	oldConfig := w.config
	w.config = cfg
	w.mu.Unlock()

	if !configChanged(oldConfig, cfg) {
		return
	}

	if w.onChange != nil {
		w.onChange(cfg)
	}

	logging.LogInfof("configuration reloaded from %s", w.path)
}

func configChanged(old, new *Config) bool {
	if old == nil || new == nil {
		return true
	}
	return fmt.Sprintf("%+v", old) != fmt.Sprintf("%+v", new)
}

// debouncer collapses rapid successive events into one callback
type debouncer struct {
	delay    time.Duration
	timer    *time.Timer
	callback func()
	mu       sync.Mutex
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay: delay,
	}
}

func (d *debouncer) debounce(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.callback = callback
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.callback != nil {
			d.callback()
		}
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
