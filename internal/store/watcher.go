package store

import (
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long the report file must be quiet before a
// change is picked up. A persistence rewrite lands as several events.
const DefaultSettleDelay = 100 * time.Millisecond

// FileWatcher follows a report file appended to by another process (the
// daemon) and hydrates the log with whatever it adds.
type FileWatcher struct {
	log    *ReportLog
	logger *slog.Logger
	path   string
	settle time.Duration

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	stop    chan struct{}
	stopped chan struct{}
}

// NewFileWatcher creates a watcher for the report file at path.
func NewFileWatcher(log *ReportLog, path string, logger *slog.Logger) (*FileWatcher, error) {
	if log == nil {
		return nil, errors.New("report log is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWatcher{
		log:    log,
		logger: logger.With("component", "report-watcher"),
		path:   path,
		settle: DefaultSettleDelay,
	}, nil
}

// Start begins watching. Calling Start on a running watcher is a no-op.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Rewrites rename a temp file over the log, so the directory is watched.
	if err := fsw.Add(filepath.Dir(fw.path)); err != nil {
		_ = fsw.Close()
		return err
	}

	fw.fsw = fsw
	fw.stop = make(chan struct{})
	fw.stopped = make(chan struct{})
	go fw.loop(fsw, fw.stop, fw.stopped)
	return nil
}

func (fw *FileWatcher) loop(fsw *fsnotify.Watcher, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	name := filepath.Base(fw.path)
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				timer.Reset(fw.settle)
			}

		case <-timer.C:
			before := fw.log.Count()
			if err := fw.log.Hydrate(); err != nil {
				fw.logger.Warn("failed to hydrate from report file", "path", fw.path, "error", err)
				continue
			}
			if added := fw.log.Count() - before; added > 0 {
				fw.logger.Debug("picked up reports", "path", fw.path, "added", added)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("watch error", "error", err)

		case <-stop:
			return
		}
	}
}

// Stop stops watching and waits for the watch loop to exit.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	fsw, stop, stopped := fw.fsw, fw.stop, fw.stopped
	fw.fsw = nil
	fw.mu.Unlock()

	if fsw == nil {
		return nil
	}
	close(stop)
	<-stopped
	return fsw.Close()
}
