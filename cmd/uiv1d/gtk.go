package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/core/glib"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/jmylchreest/uiv1/internal/config"
	"github.com/jmylchreest/uiv1/internal/daemon"
	"github.com/jmylchreest/uiv1/internal/gtkengine"
	"github.com/jmylchreest/uiv1/internal/theme"
)

// runGTK runs the daemon inside a libadwaita application. The GTK main
// loop goroutine is the logic thread. args are the arguments left after
// flag parsing.
func runGTK(ctx context.Context, cancel context.CancelFunc, opts daemon.Options, args []string) int {
	logger := opts.Logger
	logger.Info("starting uiv1d", "version", version)

	app := adw.NewApplication(appID, 0)

	var (
		d           *daemon.Daemon
		themeLoader *theme.Loader
		tickSource  glib.SourceHandle
		running     atomic.Bool
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
		case <-ctx.Done():
		}
		cancel()
		glib.IdleAdd(func() {
			if running.Load() {
				app.Quit()
			}
		})
	}()

	opts.Quit = func() {
		glib.IdleAdd(func() { app.Quit() })
	}
	opts.OnConfigReload = func(prev, next *config.Config) {
		if themeLoader == nil || next.Theme.Name == prev.Theme.Name {
			return
		}
		if err := themeLoader.LoadTheme(next.Theme.Name); err != nil {
			logger.Warn("failed to load new theme", "theme", next.Theme.Name, "error", err)
			d.Notifier().NotifyThemeError(err)
			return
		}
		themeLoader.Apply(nil)
		if next.Theme.HotReload {
			themeLoader.StartHotReload()
		} else {
			themeLoader.StopHotReload()
		}
		d.Notifier().NotifyThemeReloaded(themeLoader.CurrentTheme())
	}

	app.ConnectActivate(func() {
		if running.Load() {
			logger.Warn("application already running")
			return
		}
		running.Store(true)

		engine := gtkengine.New(&app.Application, logger)
		if err := engine.Start(); err != nil {
			logger.Error("failed to start gtk engine", "error", err)
			app.Quit()
			return
		}

		opts.Backend = engine
		var err error
		d, err = daemon.New(opts)
		if err != nil {
			logger.Error("failed to create daemon", "error", err)
			app.Quit()
			return
		}
		engine.Bind(d.Widgets())
		engine.OnBack(d.Back)

		cfg := d.Config()
		themeLoader = theme.NewLoader(cfg.ThemesDir(), logger)
		if err := themeLoader.LoadTheme(cfg.Theme.Name); err != nil {
			logger.Warn("failed to load theme", "error", err)
		}
		themeLoader.Apply(nil)
		if cfg.Theme.HotReload {
			themeLoader.StartHotReload()
		}

		d.Core().Bind()
		if err := d.Start(ctx); err != nil {
			logger.Error("failed to start daemon", "error", err)
			app.Quit()
			return
		}

		last := time.Now()
		interval := uint(cfg.FrameInterval().Milliseconds())
		if interval == 0 {
			interval = 1
		}
		tickSource = glib.TimeoutAdd(interval, func() bool {
			now := time.Now()
			if err := d.Tick(now.Sub(last)); err != nil {
				logger.Error("tick failed", "error", err)
			}
			last = now
			return true
		})

		// GTK apps quit when their last window closes; mode switches
		// briefly leave none.
		keepAliveWindow := gtk.NewWindow()
		keepAliveWindow.SetApplication(&app.Application)
		keepAliveWindow.SetDefaultSize(1, 1)
		keepAliveWindow.SetDecorated(false)
		keepAliveWindow.SetVisible(false)

		logger.Info("uiv1d ready", "theme", themeLoader.CurrentTheme())
	})

	app.ConnectShutdown(func() {
		logger.Info("application shutting down")
		if tickSource != 0 {
			glib.SourceRemove(tickSource)
			tickSource = 0
		}
		if themeLoader != nil {
			themeLoader.StopHotReload()
		}
		if d != nil {
			if err := d.Shutdown(); err != nil {
				logger.Warn("shutdown failed", "error", err)
			}
		}
		running.Store(false)
	})

	argv := append([]string{os.Args[0]}, args...)
	status := app.Run(argv)
	cancel()
	return status
}
