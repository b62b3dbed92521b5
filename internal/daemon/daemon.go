package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/jmylchreest/uiv1/internal/app"
	"github.com/jmylchreest/uiv1/internal/appmode"
	"github.com/jmylchreest/uiv1/internal/audio"
	"github.com/jmylchreest/uiv1/internal/cleanup"
	"github.com/jmylchreest/uiv1/internal/config"
	"github.com/jmylchreest/uiv1/internal/dbus"
	"github.com/jmylchreest/uiv1/internal/layout"
	"github.com/jmylchreest/uiv1/internal/store"
	"github.com/jmylchreest/uiv1/internal/transition"
	"github.com/jmylchreest/uiv1/internal/uiv1"
	"github.com/jmylchreest/uiv1/internal/widget"
	"github.com/jmylchreest/uiv1/internal/window"
)

// Paths locates the files uiv1d reads and writes. Empty fields disable the
// matching persistence.
type Paths struct {
	Config       string
	Reports      string
	Suppressions string
	UIState      string
}

// DefaultPaths returns the standard XDG locations.
func DefaultPaths() Paths {
	return Paths{
		Config:       config.ConfigPath(),
		Reports:      config.ReportsPath(),
		Suppressions: config.SuppressionsPath(),
		UIState:      config.UIStatePath(),
	}
}

// Options configures a Daemon.
type Options struct {
	Config  *config.Config
	Paths   Paths
	Logger  *slog.Logger
	Version string

	// Backend realizes widgets; nil runs headless.
	Backend widget.Backend
	// Audio plays sound cues; nil selects the system speaker.
	Audio audio.Output
	Tracer trace.Tracer
	// Getenv reads the environment; os.Getenv when nil.
	Getenv func(string) string

	// Quit is called when the UI asks the process to exit.
	Quit func()
	// OnConfigReload runs on the logic thread after a reloaded config has
	// been applied.
	OnConfigReload func(prev, next *config.Config)
	// OnSwitch runs on the logic thread after every app mode switch.
	OnSwitch func(appmode.Mode, *uiv1.Subsystem)
}

// Daemon owns every long-lived uiv1d component. Construction is safe on
// any goroutine; Start, ApplyConfig and Shutdown must run on the logic
// thread.
type Daemon struct {
	cfg     *config.Config
	paths   Paths
	logger  *slog.Logger
	version string
	getenv  func(string) string

	onConfigReload func(prev, next *config.Config)

	core        *app.Core
	table       *widget.Table
	library     *transition.Library
	transitions *transition.Watcher
	player      *audio.Player
	cues        *audio.Cues
	windows     *window.Manager
	verifier    *cleanup.Verifier
	layouts     *layout.Loader
	reports     *store.ReportLog
	suppress    *store.SuppressFile
	server      *dbus.Server
	switcher    *appmode.Switcher
	demo        *appmode.Demo
	notifier    *Notifier
	watcher     *ConfigWatcher

	cancel  context.CancelFunc
	started bool
}

// New builds the component graph. Nothing is started.
func New(opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	policy, err := cleanup.ParsePolicy(cfg.Cleanup.Policy)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:            cfg,
		paths:          opts.Paths,
		logger:         logger,
		version:        opts.Version,
		getenv:         getenv,
		onConfigReload: opts.OnConfigReload,
		notifier:       NewNotifier(logger),
	}

	d.reports, err = d.openReports()
	if err != nil {
		return nil, err
	}
	d.notifier.SetHandler(ReportHandler(d.reports, logger))

	d.core = app.NewCore(app.Options{Logger: logger})
	d.table = widget.NewTable(d.core, opts.Backend, logger)
	d.library = transition.NewLibrary(transition.BundledAssets(), cfg.TransitionsDir(), logger)
	if err := d.library.Load(); err != nil {
		logger.Warn("transition assets unavailable, windows will not animate", "error", err)
	}
	d.player = audio.NewPlayer(opts.Audio, logger)
	d.cues = audio.NewCues(cfg, d.player, logger)
	d.layouts = layout.NewLoader(cfg.LayoutsDir())

	d.windows = window.NewManager(d.core, d.table, d.library, window.Options{
		Logger:            logger,
		Sounds:            d.cues,
		Tracer:            opts.Tracer,
		OnCosmeticFailure: d.reportCosmetic,
	})

	d.switcher = appmode.NewSwitcher(d.core, d.newSubsystem, appmode.Options{
		Logger:    logger,
		StatePath: opts.Paths.UIState,
		OnSwitch:  opts.OnSwitch,
	})

	var reporters cleanup.Reporters
	if cfg.Cleanup.Report && d.reports != nil {
		reporters = append(reporters, d.reports)
	}
	if cfg.Debug.DBus {
		d.server = dbus.NewServer(d.core, d.switcher.UI, dbus.Options{
			Logger: logger,
			Mode:   d.modeName,
		})
		d.server.SetServerInfo(dbus.ServerInfo{
			Name:    "uiv1d",
			Vendor:  "uiv1",
			Version: opts.Version,
		})
		reporters = append(reporters, d.server)
	}
	d.verifier = cleanup.New(d.core, cleanup.Options{
		Logger:   logger,
		Policy:   policy,
		Reporter: reporters,
	})
	d.verifier.Attach(d.windows)

	d.demo = appmode.NewDemo(d.core, d.switcher, opts.Quit, logger)
	return d, nil
}

func (d *Daemon) openReports() (*store.ReportLog, error) {
	if !d.cfg.Debug.ReportLog {
		return store.NewReportLog(nil, "uiv1d", d.logger), nil
	}

	var persistence store.Persistence
	if d.paths.Reports != "" {
		p, err := store.NewJSONLPersistence(d.paths.Reports)
		if err != nil {
			return nil, fmt.Errorf("open report log: %w", err)
		}
		persistence = p
	}
	log := store.NewReportLog(persistence, "uiv1d", d.logger)
	if err := log.Hydrate(); err != nil {
		d.logger.Warn("failed to hydrate report log", "error", err)
	}

	if d.paths.Suppressions != "" {
		d.suppress = store.NewSuppressFile(d.paths.Suppressions)
		keys, err := d.suppress.Load()
		if err != nil {
			d.logger.Warn("failed to load suppressions", "error", err)
		}
		log.LoadSuppressions(keys)
	}
	d.logger.Info("report log initialized", "path", d.paths.Reports, "count", log.Count())
	return log, nil
}

func (d *Daemon) newSubsystem() *uiv1.Subsystem {
	return uiv1.New(d.core, d.windows, d.verifier, uiv1.Options{
		Logger:  d.logger,
		Config:  d.cfg,
		Layouts: d.layouts,
		Getenv:  d.getenv,
	})
}

func (d *Daemon) modeName() string {
	if m := d.switcher.Current(); m != nil {
		return m.Name()
	}
	return ""
}

func (d *Daemon) reportCosmetic(e *window.CosmeticError) {
	if d.reports != nil && d.cfg.Debug.ReportLog {
		d.reports.ReportCosmetic(e)
	}
}

// Core returns the app core.
func (d *Daemon) Core() *app.Core { return d.core }

// Widgets returns the widget table.
func (d *Daemon) Widgets() *widget.Table { return d.table }

// Switcher returns the app mode switcher.
func (d *Daemon) Switcher() *appmode.Switcher { return d.switcher }

// Demo returns the built-in demo modes.
func (d *Daemon) Demo() *appmode.Demo { return d.demo }

// Reports returns the report log.
func (d *Daemon) Reports() *store.ReportLog { return d.reports }

// Notifier returns the internal event notifier.
func (d *Daemon) Notifier() *Notifier { return d.notifier }

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config { return d.cfg }

// UI returns the active subsystem, or nil.
func (d *Daemon) UI() *uiv1.Subsystem { return d.switcher.UI() }

// Back runs back navigation on the active subsystem. Native windows call
// it from their Escape handler.
func (d *Daemon) Back() {
	ui := d.switcher.UI()
	if ui == nil {
		return
	}
	if err := ui.Back(); err != nil {
		d.logger.Warn("back failed", "error", err)
	}
}

// Start marks the core ready, starts the watchers and the debug bus, and
// activates the main menu. The core must already be bound to the calling
// goroutine.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.core.CheckThread("daemon_start"); err != nil {
		return err
	}
	if d.started {
		return nil
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.core.MarkReady()

	if d.cfg.Transitions.HotReload {
		w, err := transition.NewWatcher(d.library, d.onTransitionsReloaded, d.logger)
		if err != nil {
			d.logger.Warn("failed to create transition watcher", "error", err)
		} else if err := w.Start(); err != nil {
			d.logger.Warn("failed to start transition watcher", "error", err)
			_ = w.Stop()
		} else {
			d.transitions = w
		}
	}

	d.cues.Start(ctx)

	if d.paths.Config != "" {
		d.watcher = NewConfigWatcher(d.paths.Config, d.logger)
		d.watcher.SetReloadCallback(func(next *config.Config) {
			d.core.PushCall(func() { d.ApplyConfig(next) })
		})
		d.watcher.SetErrorCallback(d.notifier.NotifyConfigError)
		if err := d.watcher.Start(ctx, d.cfg); err != nil {
			d.logger.Warn("failed to start config watcher", "error", err)
		}
	}

	if d.server != nil {
		if err := d.server.Start(); err != nil {
			d.logger.Warn("failed to start debug bus service", "error", err)
			d.notifier.NotifyBusError(err)
		}
	}

	if err := d.switcher.Switch(d.demo.Menu); err != nil {
		return fmt.Errorf("activate main menu: %w", err)
	}

	d.notifier.NotifyStartup(d.version)
	return nil
}

func (d *Daemon) onTransitionsReloaded() {
	failed := 0
	for _, e := range d.library.Entries() {
		if e.Err != nil {
			failed++
		}
	}
	d.notifier.NotifyTransitionsReloaded(failed)
}

// ApplyConfig swaps in a reloaded configuration. Sound cues and the layouts
// directory change at once; scale, cleanup interval and default transition
// apply from the next app mode switch. The cleanup policy and debug bus are fixed for the process
// lifetime.
func (d *Daemon) ApplyConfig(next *config.Config) {
	if err := d.core.CheckThread("apply_config"); err != nil {
		d.logger.Error("config reload dropped", "error", err)
		return
	}
	if next == nil {
		return
	}
	prev := d.cfg
	if next.Cleanup.Policy != prev.Cleanup.Policy {
		d.logger.Warn("cleanup policy change requires a restart",
			"current", prev.Cleanup.Policy, "configured", next.Cleanup.Policy)
	}
	if next.Debug.DBus != prev.Debug.DBus {
		d.logger.Warn("debug bus change requires a restart")
	}

	d.cfg = next
	d.cues.Configure(next)
	if next.Audio.Enabled && !prev.Audio.Enabled {
		d.cues.Start(context.Background())
	}
	if next.LayoutsDir() != prev.LayoutsDir() {
		d.layouts = layout.NewLoader(next.LayoutsDir())
		if ui := d.switcher.UI(); ui != nil && !ui.TornDown() {
			if err := ui.SetLayouts(d.layouts); err != nil {
				d.logger.Warn("layouts reload not applied to active mode", "error", err)
			}
		}
	}

	if d.onConfigReload != nil {
		d.onConfigReload(prev, next)
	}
	d.notifier.NotifyConfigReloaded()
}

// Tick advances the core by dt.
func (d *Daemon) Tick(dt time.Duration) error {
	return d.core.Tick(dt)
}

// Run binds the core to the calling goroutine, starts the daemon and ticks
// at the configured frame rate until ctx is cancelled. It is the headless
// driver; GTK drives Tick from its own main loop instead.
func (d *Daemon) Run(ctx context.Context) error {
	d.core.Bind()
	if err := d.Start(ctx); err != nil {
		return err
	}
	err := d.core.Run(ctx, d.cfg.FrameInterval())
	if serr := d.Shutdown(); serr != nil {
		d.logger.Warn("shutdown failed", "error", serr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown deactivates the active mode and stops every component. It is
// safe to call more than once.
func (d *Daemon) Shutdown() error {
	if err := d.core.CheckThread("daemon_shutdown"); err != nil {
		return err
	}
	var errs []error
	if err := d.switcher.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.transitions != nil {
		if err := d.transitions.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	d.cues.Stop()
	if d.server != nil {
		if err := d.server.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	d.windows.Close()
	if d.reports != nil {
		if err := d.reports.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
