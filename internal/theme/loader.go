package theme

import (
	"log/slog"
	"sync"

	"github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gdk/v4"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"
)

// Loader applies a theme to the GTK display and keeps it current.
type Loader struct {
	mu        sync.Mutex
	logger    *slog.Logger
	provider  *gtk.CSSProvider
	themesDir string
	theme     *Theme
	watcher   *Watcher
}

// NewLoader creates a loader reading user themes from themesDir. It must
// be called on the GTK main thread.
func NewLoader(themesDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger:    logger,
		provider:  gtk.NewCSSProvider(),
		themesDir: themesDir,
	}
}

// LoadTheme resolves name and loads it into the provider. An unknown name
// falls back to the default theme.
func (l *Loader) LoadTheme(name string) error {
	t, err := Resolve(name, l.themesDir)
	if err != nil {
		l.logger.Warn("theme not found, using default", "theme", name, "error", err)
		t, err = Resolve(DefaultThemeName, "")
		if err != nil {
			return err
		}
	}

	l.mu.Lock()
	l.theme = t
	l.mu.Unlock()

	l.provider.LoadFromString(t.CSS)
	l.logger.Info("loaded theme", "name", t.Name, "path", t.Path, "bundled", t.Bundled)
	return nil
}

// Apply installs the provider on display, or the default display when nil.
func (l *Loader) Apply(display *gdk.Display) {
	if display == nil {
		display = gdk.DisplayGetDefault()
	}
	if display == nil {
		l.logger.Warn("no display available, cannot apply theme")
		return
	}
	gtk.StyleContextAddProviderForDisplay(display, l.provider, gtk.STYLE_PROVIDER_PRIORITY_APPLICATION)
}

// StartHotReload watches the current theme file. Changes are loaded on the
// GTK main loop.
func (l *Loader) StartHotReload() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.theme == nil || l.theme.Bundled {
		l.logger.Debug("not starting hot-reload for bundled theme")
		return
	}
	if l.watcher != nil {
		l.watcher.Stop()
	}

	name := l.theme.Name
	l.watcher = NewWatcher(l.theme, func(css string) {
		glib.IdleAdd(func() {
			l.provider.LoadFromString(css)
			l.logger.Info("hot-reloaded theme", "name", name)
		})
	}, l.logger)
	if err := l.watcher.Start(); err != nil {
		l.logger.Warn("failed to start theme watcher", "error", err)
	}
}

// StopHotReload stops watching the theme.
func (l *Loader) StopHotReload() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		l.watcher.Stop()
		l.watcher = nil
	}
}

// CurrentTheme returns the name of the loaded theme.
func (l *Loader) CurrentTheme() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.theme == nil {
		return ""
	}
	return l.theme.Name
}
