package theme

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a user theme file when it changes on disk.
type Watcher struct {
	mu       sync.Mutex
	logger   *slog.Logger
	theme    *Theme
	onChange func(css string)

	watcher *fsnotify.Watcher
	done    chan struct{}
	running bool
}

// NewWatcher creates a watcher for theme. onChange receives the new CSS
// on the watcher's goroutine.
func NewWatcher(theme *Theme, onChange func(css string), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		logger:   logger,
		theme:    theme,
		onChange: onChange,
	}
}

// Start begins watching. Bundled themes are not watched.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	if w.theme == nil || w.theme.Bundled {
		w.logger.Debug("not watching bundled theme")
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors replace files on save, so watch the directory.
	if err := fw.Add(filepath.Dir(w.theme.Path)); err != nil {
		_ = fw.Close()
		return err
	}

	w.watcher = fw
	w.done = make(chan struct{})
	w.running = true
	go w.loop(fw, w.done)

	w.logger.Debug("theme watcher started", "path", w.theme.Path)
	return nil
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	fw, done := w.watcher, w.done
	w.mu.Unlock()

	_ = fw.Close()
	<-done
	w.logger.Debug("theme watcher stopped")
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Partials in the same directory can change the result too.
			if filepath.Ext(event.Name) != ".css" {
				continue
			}
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("theme watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	theme, callback := w.theme, w.onChange
	w.mu.Unlock()

	changed, err := theme.Reload()
	if err != nil {
		w.logger.Debug("theme reload skipped", "path", theme.Path, "error", err)
		return
	}
	if !changed {
		return
	}
	w.logger.Info("theme file changed, reloading", "path", theme.Path)
	if callback != nil {
		callback(theme.CSS)
	}
}
