// Package main is the entry point for the uiv1d UI daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmylchreest/uiv1/internal/config"
	"github.com/jmylchreest/uiv1/internal/daemon"
	"github.com/jmylchreest/uiv1/internal/telemetry"
)

const (
	appID   = "io.github.jmylchreest.uiv1d"
	appName = "uiv1d"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	headless := flag.Bool("headless", false, "Run without a display (widgets are kept in memory only)")
	configPath := flag.String("config", "", "Config file path (default: ~/.config/uiv1/uiv1.toml)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.BoolVar(verbose, "v", false, "Enable debug logging (shorthand)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(appName, "version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	os.Exit(run(logger, *headless, *configPath))
}

func run(logger *slog.Logger, headless bool, configPath string) int {
	paths := daemon.DefaultPaths()
	if configPath != "" {
		paths.Config = configPath
	}

	cfg, err := config.LoadConfig(paths.Config)
	if err != nil {
		logger.Error("failed to load config", "path", paths.Config, "error", err)
		return 1
	}
	if err := config.EnsureDataDir(); err != nil {
		logger.Warn("failed to create data directory", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.New(ctx, os.Getenv)
	if err != nil {
		logger.Warn("failed to set up tracing", "error", err)
		tp, _ = telemetry.New(ctx, func(string) string { return "" })
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()
	if tp.Enabled() {
		logger.Info("exporting traces", "endpoint", os.Getenv(telemetry.EndpointEnv))
	}

	opts := daemon.Options{
		Config:  cfg,
		Paths:   paths,
		Logger:  logger,
		Version: version,
		Tracer:  tp.Tracer(appName),
	}

	var status int
	if headless {
		status = runHeadless(ctx, cancel, opts)
	} else {
		status = runGTK(ctx, cancel, opts, flag.Args())
	}
	if status != 0 {
		logger.Error("uiv1d exited with error", "status", status)
		return status
	}
	logger.Info("uiv1d stopped")
	return 0
}

// runHeadless drives the daemon from a ticker on the calling goroutine
// until SIGINT or SIGTERM.
func runHeadless(ctx context.Context, cancel context.CancelFunc, opts daemon.Options) int {
	logger := opts.Logger
	logger.Info("starting uiv1d in headless mode", "version", version)

	opts.Quit = cancel
	d, err := daemon.New(opts)
	if err != nil {
		logger.Error("failed to create daemon", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon stopped with error", "error", err)
		return 1
	}
	return 0
}
