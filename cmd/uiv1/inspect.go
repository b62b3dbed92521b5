package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/uiv1/internal/dbus"
	"github.com/jmylchreest/uiv1/internal/tui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Launch the interactive report inspector",
	Long: `Launch the terminal inspector for the report log.

The inspector provides:
  - Scrollable list of leak and cosmetic reports
  - Filtering by kind, window and free text
  - Detail view with the full report
  - Copy to clipboard support
  - Live snapshot of the running daemon's window stack
  - Real-time updates as uiv1d appends reports

Key bindings:
  j/k, ↑/↓    Navigate list
  enter       View report details
  a           Acknowledge report
  A           Show or hide acknowledged reports
  x           Suppress reports like this one
  c           Copy message to clipboard
  i           Copy report ID
  C           Copy all reports as JSON
  /           Search reports
  r           Refresh
  w           Show the daemon's window stack
  K           Run a cleanup check in the daemon
  ?           Show help
  q           Quit`,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	bus := &lazyBus{}
	return tui.Run(tui.RunOptions{
		Config:       cfg,
		Log:          reportLog,
		Suppressions: suppressFile,
		Snapshot:     bus.snapshot,
		Check:        bus.check,
		PersistPath:  reportsPath(),
		Logger:       logger,
	})
}

// lazyBus connects to the session bus on first use so the inspector still
// starts without a running daemon.
type lazyBus struct {
	client *dbus.Client
}

func (b *lazyBus) get() (*dbus.Client, error) {
	if b.client != nil {
		return b.client, nil
	}
	c, err := dbus.Connect()
	if err != nil {
		return nil, err
	}
	if !c.Running() {
		return nil, fmt.Errorf("uiv1d is not running on the session bus")
	}
	b.client = c
	return c, nil
}

func (b *lazyBus) snapshot(ctx context.Context) (string, error) {
	c, err := b.get()
	if err != nil {
		return "", err
	}
	return c.Snapshot(ctx)
}

func (b *lazyBus) check(ctx context.Context) (int, error) {
	c, err := b.get()
	if err != nil {
		return 0, err
	}
	leaks, err := c.Check(ctx)
	if err != nil {
		return 0, err
	}
	return len(leaks), nil
}
