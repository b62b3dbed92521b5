package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/uiv1/internal/dbus"
	"github.com/jmylchreest/uiv1/internal/uiv1"
)

const busTimeout = 5 * time.Second

var busOpts struct {
	quiet bool
}

var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Print the running daemon's window stack",
	Long:  `Print the window stack of the running uiv1d, bottom window first.`,
	RunE: withBus(func(ctx context.Context, cmd *cobra.Command, c *dbus.Client, args []string) error {
		stack, err := c.Stack(ctx)
		if err != nil {
			return err
		}
		for i, name := range stack {
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", i, name)
		}
		return nil
	}),
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the running daemon's UI snapshot",
	RunE: withBus(func(ctx context.Context, cmd *cobra.Command, c *dbus.Client, args []string) error {
		snap, err := c.Snapshot(ctx)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), snap)
		if !strings.HasSuffix(snap, "\n") {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	}),
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a cleanup check in the running daemon",
	Long: `Ask uiv1d to verify that every destroyed window released its widgets.
Exits with status 1 when leaks are found.`,
	RunE: withBus(func(ctx context.Context, cmd *cobra.Command, c *dbus.Client, args []string) error {
		leaks, err := c.Check(ctx)
		if err != nil {
			return err
		}
		if !busOpts.quiet {
			for _, l := range leaks {
				printLeak(cmd, l)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d leak(s)\n", len(leaks))
		}
		if len(leaks) > 0 {
			os.Exit(1)
		}
		return nil
	}),
}

var backCmd = &cobra.Command{
	Use:   "back",
	Short: "Pop the top window in the running daemon",
	RunE: withBus(func(ctx context.Context, cmd *cobra.Command, c *dbus.Client, args []string) error {
		return c.Back(ctx)
	}),
}

var pressCmd = &cobra.Command{
	Use:   "press <element>",
	Short: "Press a root UI element in the running daemon",
	Long:  "Press a root UI element. Elements: " + elementNames(),
	Args:  cobra.ExactArgs(1),
	RunE: withBus(func(ctx context.Context, cmd *cobra.Command, c *dbus.Client, args []string) error {
		el, err := uiv1.ParseRootElement(args[0])
		if err != nil {
			return err
		}
		return c.Press(ctx, el.String())
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print leaks as the running daemon detects them",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connectBus()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = c.WatchLeaks(ctx, func(l dbus.LeakInfo) { printLeak(cmd, l) })
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the running daemon's server information",
	RunE: withBus(func(ctx context.Context, cmd *cobra.Command, c *dbus.Client, args []string) error {
		info, err := c.ServerInfo(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", info.Name, info.Version, info.Vendor)
		return nil
	}),
}

func init() {
	checkCmd.Flags().BoolVarP(&busOpts.quiet, "quiet", "q", false,
		"Suppress output, return exit code only (0=clean, 1=leaks)")

	rootCmd.AddCommand(stackCmd, snapshotCmd, checkCmd, backCmd, pressCmd, watchCmd, infoCmd)
}

type busFunc func(ctx context.Context, cmd *cobra.Command, c *dbus.Client, args []string) error

// withBus connects to the running daemon and runs fn with a call timeout.
func withBus(fn busFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := connectBus()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), busTimeout)
		defer cancel()
		return fn(ctx, cmd, c, args)
	}
}

func connectBus() (*dbus.Client, error) {
	c, err := dbus.Connect()
	if err != nil {
		return nil, err
	}
	if !c.Running() {
		return nil, fmt.Errorf("uiv1d is not running (is debug.dbus enabled?)")
	}
	return c, nil
}

func printLeak(cmd *cobra.Command, l dbus.LeakInfo) {
	subject := l.Owner
	if l.Handle != "" {
		subject = l.Kind + l.Handle
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[leak] %s #%d %s: %s\n", windowLabel(l.Window), l.WindowID, subject, l.Message)
}

func elementNames() string {
	var names []string
	for _, e := range uiv1.RootElements() {
		names = append(names, e.String())
	}
	return strings.Join(names, ", ")
}
