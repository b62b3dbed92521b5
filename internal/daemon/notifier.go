package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/uiv1/internal/model"
	"github.com/jmylchreest/uiv1/internal/store"
)

// Level indicates the severity of an internal event.
type Level int

const (
	// LevelInfo is for informational events.
	LevelInfo Level = iota
	// LevelWarning is for recoverable failures.
	LevelWarning
	// LevelError is for failures that disable a feature.
	LevelError
)

// Event is an internal uiv1d event worth surfacing to the developer.
type Event struct {
	Key     string
	Summary string
	Body    string
	Level   Level
}

// Notifier surfaces internal uiv1d events (reloads, startup, errors).
// Repeats of the same key within the minimum interval are dropped.
type Notifier struct {
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time

	handler func(Event)

	lastNotifyTime map[string]time.Time
	minInterval    time.Duration

	enabled bool
}

// NewNotifier creates a Notifier with no handler.
func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		logger:         logger,
		now:            time.Now,
		lastNotifyTime: make(map[string]time.Time),
		minInterval:    5 * time.Second,
		enabled:        true,
	}
}

// SetHandler sets the function that receives events.
func (n *Notifier) SetHandler(handler func(Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = handler
}

// SetEnabled enables or disables internal events.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// SetMinInterval sets the minimum interval between events with the same key.
func (n *Notifier) SetMinInterval(interval time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.minInterval = interval
}

// Notify sends an event unless it is rate-limited.
func (n *Notifier) Notify(key, summary, body string, level Level) {
	n.mu.Lock()
	if !n.enabled {
		n.mu.Unlock()
		return
	}
	if n.handler == nil {
		n.mu.Unlock()
		n.logger.Debug("internal event skipped: no handler", "summary", summary)
		return
	}

	now := n.now()
	if last, ok := n.lastNotifyTime[key]; ok && now.Sub(last) < n.minInterval {
		n.mu.Unlock()
		n.logger.Debug("internal event rate-limited", "key", key, "summary", summary)
		return
	}
	n.lastNotifyTime[key] = now
	handler := n.handler
	n.mu.Unlock()

	n.logger.Debug("sending internal event", "key", key, "summary", summary, "level", level)
	handler(Event{Key: key, Summary: summary, Body: body, Level: level})
}

// NotifyConfigReloaded reports a successful config reload.
func (n *Notifier) NotifyConfigReloaded() {
	n.Notify("config-reload", "Configuration Reloaded",
		"uiv1d configuration has been successfully reloaded.", LevelInfo)
}

// NotifyConfigError reports a config file that failed validation.
func (n *Notifier) NotifyConfigError(err error) {
	n.Notify("config-error", "Configuration Error",
		"Failed to reload configuration: "+err.Error(), LevelWarning)
}

// NotifyThemeReloaded reports a theme switch.
func (n *Notifier) NotifyThemeReloaded(themeName string) {
	n.Notify("theme-reload", "Theme Reloaded",
		"Theme '"+themeName+"' has been reloaded.", LevelInfo)
}

// NotifyThemeError reports a theme that could not be loaded.
func (n *Notifier) NotifyThemeError(err error) {
	n.Notify("theme-error", "Theme Error",
		"Failed to load theme: "+err.Error(), LevelWarning)
}

// NotifyTransitionsReloaded reports a reload of the transition assets.
func (n *Notifier) NotifyTransitionsReloaded(failed int) {
	if failed == 0 {
		n.Notify("transitions-reload", "Transitions Reloaded",
			"Transition assets have been reloaded.", LevelInfo)
		return
	}
	n.Notify("transitions-reload", "Transitions Reloaded",
		"Transition assets reloaded with failures; affected windows will show without animation.", LevelWarning)
}

// NotifyBusError reports that the debug bus service could not start.
func (n *Notifier) NotifyBusError(err error) {
	n.Notify("dbus-error", "Debug Bus Unavailable",
		"Failed to export the debug interface: "+err.Error(), LevelError)
}

// NotifyStartup reports that the daemon has started.
func (n *Notifier) NotifyStartup(version string) {
	n.Notify("startup", "uiv1d Started",
		"UI daemon v"+version+" is now running.", LevelInfo)
}

// ReportHandler returns an event handler that records warnings and errors
// in log as cosmetic reports. Informational events are only logged.
func ReportHandler(log *store.ReportLog, logger *slog.Logger) func(Event) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(e Event) {
		if e.Level == LevelInfo {
			logger.Info(e.Summary, "event", e.Key)
			return
		}
		logger.Warn(e.Summary, "event", e.Key, "detail", e.Body)
		if log == nil {
			return
		}
		r, err := model.NewReport(model.KindCosmetic, "uiv1d")
		if err != nil {
			logger.Warn("failed to create event report", "error", err)
			return
		}
		if e.Level == LevelError {
			r.SetSeverity(model.SeverityError)
		}
		r.Op = e.Key
		r.Message = e.Body
		if err := log.Add(*r); err != nil {
			logger.Warn("failed to record event report", "event", e.Key, "error", err)
		}
	}
}
