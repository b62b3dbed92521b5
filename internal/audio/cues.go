package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmylchreest/uiv1/internal/config"
)

// ErrUnknownCue is returned when a cue has no configured sound file.
var ErrUnknownCue = errors.New("unknown sound cue")

// CueError reports a cue that could not be played.
type CueError struct {
	Cue   string
	Path  string
	Cause error
}

func (e *CueError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("cue %q: %v", e.Cue, e.Cause)
	}
	return fmt.Sprintf("cue %q (%s): %v", e.Cue, e.Path, e.Cause)
}

func (e *CueError) Unwrap() error {
	return e.Cause
}

// Cues maps cue names to sound files and plays them.
type Cues struct {
	mu      sync.RWMutex
	logger  *slog.Logger
	player  *Player
	enabled bool
	paths   map[string]string
	mtimes  map[string]time.Time

	pollInterval time.Duration
	stopCh       chan struct{}
	doneCh       chan struct{}
	running      bool
}

// NewCues creates a cue player from the audio config section.
func NewCues(cfg *config.Config, player *Player, logger *slog.Logger) *Cues {
	if logger == nil {
		logger = slog.Default()
	}
	if player == nil {
		player = NewPlayer(nil, logger)
	}
	c := &Cues{
		logger:       logger,
		player:       player,
		pollInterval: 2 * time.Second,
	}
	c.Configure(cfg)
	return c
}

// Configure applies a (possibly reloaded) config.
func (c *Cues) Configure(cfg *config.Config) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	paths := make(map[string]string, len(cfg.Audio.Cues))
	for cue := range cfg.Audio.Cues {
		paths[cue] = cfg.CuePath(cue)
	}

	c.mu.Lock()
	c.enabled = cfg.Audio.Enabled
	c.paths = paths
	c.mtimes = make(map[string]time.Time, len(paths))
	c.mu.Unlock()

	c.player.SetVolume(float64(cfg.Audio.Volume) / 100)
	c.player.ClearCache()
	c.logger.Debug("configured sound cues", "enabled", cfg.Audio.Enabled, "cues", len(paths))
}

// Enabled reports whether cues are played at all.
func (c *Cues) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Play plays a cue. An empty cue or disabled audio is a no-op.
func (c *Cues) Play(cue string) error {
	if cue == "" {
		return nil
	}
	c.mu.RLock()
	enabled := c.enabled
	path, ok := c.paths[cue]
	c.mu.RUnlock()

	if !enabled {
		return nil
	}
	if !ok || path == "" {
		return &CueError{Cue: cue, Cause: ErrUnknownCue}
	}
	if err := c.player.Play(path); err != nil {
		return &CueError{Cue: cue, Path: path, Cause: err}
	}
	return nil
}

// Start preloads every cue and polls the files for changes until ctx is
// cancelled or Stop is called.
func (c *Cues) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running || !c.enabled {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	paths := make(map[string]string, len(c.paths))
	for k, v := range c.paths {
		paths[k] = v
	}
	c.mu.Unlock()

	for cue, path := range paths {
		if err := c.player.Preload(path); err != nil {
			c.logger.Warn("failed to preload sound cue", "cue", cue, "path", path, "error", err)
		}
		c.stat(path)
	}

	go c.poll(ctx)
}

// Stop ends polling and releases the audio device.
func (c *Cues) Stop() {
	c.mu.Lock()
	running := c.running
	c.running = false
	if running {
		close(c.stopCh)
	}
	c.mu.Unlock()

	if running {
		<-c.doneCh
	}
	c.player.Close()
}

func (c *Cues) poll(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.refresh()
		}
	}
}

// refresh invalidates cached sounds whose files changed on disk.
func (c *Cues) refresh() {
	c.mu.RLock()
	paths := make([]string, 0, len(c.paths))
	for _, p := range c.paths {
		paths = append(paths, p)
	}
	c.mu.RUnlock()

	for _, path := range paths {
		if c.stat(path) {
			c.logger.Debug("sound cue changed", "path", path)
			c.player.Invalidate(path)
		}
	}
}

// stat records the file's mtime and reports whether it moved forward.
func (c *Cues) stat(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, seen := c.mtimes[path]
	c.mtimes[path] = info.ModTime()
	return seen && info.ModTime().After(prev)
}
