package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/uiv1/internal/adapter/input"
	"github.com/jmylchreest/uiv1/internal/core"
	"github.com/jmylchreest/uiv1/internal/model"
)

var ackOpts struct {
	stdin     bool
	stdinJSON bool
}

var leaksAckCmd = &cobra.Command{
	Use:   "ack [id...]",
	Short: "Acknowledge reports",
	Long: `Mark reports as acknowledged. Acknowledged reports stay in the log but
are hidden by --unacked and do not count towards status.

IDs can be given as arguments or read from stdin (--stdin), where each line
is scanned for a report ID.

Examples:
  uiv1 leaks ack 01HZX0LEAK00000000000000001
  uiv1 leaks --kind cosmetic --format ids | uiv1 leaks ack --stdin
  uiv1 leaks --format json | uiv1 leaks ack --stdin-json`,
	RunE: runAck,
}

var suppressOpts struct {
	stdin bool
}

var leaksSuppressCmd = &cobra.Command{
	Use:   "suppress [id...]",
	Short: "Drop reports like these, now and in future",
	Long: `Remove every report sharing the given reports' suppress key (kind,
window, owner and widget) and keep dropping matching reports.`,
	RunE: runSuppress,
}

var pruneOpts struct {
	olderThan string
	dryRun    bool
}

var leaksPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old reports",
	Long: `Remove reports older than a duration from the log.

Examples:
  # Remove reports older than 7 days
  uiv1 leaks prune --older-than 7d

  # Preview what would be removed
  uiv1 leaks prune --older-than 48h --dry-run`,
	RunE: runPrune,
}

var leaksImportCmd = &cobra.Command{
	Use:   "import [file|-]",
	Short: "Import reports from JSON or JSONL",
	Long: `Add reports to the log from a file or stdin. Input is a JSON array of
reports or one report per line. Missing IDs, sources and timestamps are
filled in; invalid reports are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

var clearOpts struct {
	yes bool
}

var leaksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every report",
	RunE:  runClear,
}

func init() {
	leaksAckCmd.Flags().BoolVar(&ackOpts.stdin, "stdin", false,
		"Read IDs from stdin (one per line, or scans for ULID pattern)")
	leaksAckCmd.Flags().BoolVar(&ackOpts.stdinJSON, "stdin-json", false,
		"Read JSON reports from stdin and use their id field")

	leaksSuppressCmd.Flags().BoolVar(&suppressOpts.stdin, "stdin", false,
		"Read IDs from stdin")

	leaksPruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove reports older than this duration (e.g., 48h, 7d, 1w)")
	leaksPruneCmd.Flags().BoolVar(&pruneOpts.dryRun, "dry-run", false,
		"Show what would be removed without removing")
	_ = leaksPruneCmd.MarkFlagRequired("older-than")

	leaksClearCmd.Flags().BoolVarP(&clearOpts.yes, "yes", "y", false,
		"Do not ask for confirmation")

	leaksCmd.AddCommand(leaksAckCmd, leaksSuppressCmd, leaksPruneCmd, leaksImportCmd, leaksClearCmd)
}

func runAck(cmd *cobra.Command, args []string) error {
	ids, err := collectIDs(args, ackOpts.stdin, ackOpts.stdinJSON)
	if err != nil {
		return err
	}

	var acked, missing int
	for _, id := range ids {
		r := reportLog.Lookup(id)
		if r == nil {
			logger.Warn("report not found", "id", id)
			missing++
			continue
		}
		if err := reportLog.Ack(r.ID); err != nil {
			return fmt.Errorf("failed to acknowledge %s: %w", r.ID, err)
		}
		acked++
	}

	out := cmd.OutOrStdout()
	if missing > 0 {
		out = cmd.ErrOrStderr()
	}
	fmt.Fprintf(out, "acknowledged %d report(s)", acked)
	if missing > 0 {
		fmt.Fprintf(out, ", %d not found", missing)
	}
	fmt.Fprintln(out)
	return nil
}

func runSuppress(cmd *cobra.Command, args []string) error {
	ids, err := collectIDs(args, suppressOpts.stdin, false)
	if err != nil {
		return err
	}

	for _, id := range ids {
		r := reportLog.Lookup(id)
		if r == nil {
			logger.Warn("report not found", "id", id)
			continue
		}
		key, err := reportLog.Suppress(r.ID)
		if err != nil {
			return fmt.Errorf("failed to suppress %s: %w", r.ID, err)
		}
		if key == "" {
			continue
		}
		if err := suppressFile.Append(key); err != nil {
			logger.Warn("failed to save suppression", "key", key, "error", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "suppressed %s\n", key)
	}
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	maxAge, err := core.ParseDuration(pruneOpts.olderThan)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if maxAge <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	out := cmd.OutOrStdout()
	if pruneOpts.dryRun {
		stale := olderThan(reportLog.All(), time.Now().Add(-maxAge))
		if len(stale) == 0 {
			fmt.Fprintln(out, "No reports to remove")
			return nil
		}
		fmt.Fprintf(out, "Would remove %d report(s):\n", len(stale))
		for i, r := range stale {
			if i >= 10 {
				fmt.Fprintf(out, "  ... and %d more\n", len(stale)-10)
				break
			}
			fmt.Fprintf(out, "  - [%s] %s: %s (%s)\n", r.Kind, r.Subject(), r.MessageTruncated(60),
				humanize.Time(r.TimestampTime()))
		}
		return nil
	}

	removed, err := reportLog.Prune(maxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed %d report(s)\n", removed)
	return nil
}

// olderThan returns the reports timestamped before cutoff.
func olderThan(reports []model.Report, cutoff time.Time) []model.Report {
	var out []model.Report
	for _, r := range reports {
		if r.TimestampTime().Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

func runImport(cmd *cobra.Command, args []string) error {
	source := ""
	if len(args) > 0 {
		source = args[0]
	}
	imp, err := input.NewImporter(source)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	reports, err := imp.Import(ctx)
	if err != nil {
		return err
	}
	before := reportLog.Count()
	if err := reportLog.AddBatch(reports); err != nil {
		return fmt.Errorf("failed to add reports: %w", err)
	}
	added := reportLog.Count() - before
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d report(s) from %s\n", added, len(reports), imp.Name())
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	n := reportLog.Count()
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No reports to remove")
		return nil
	}
	if !clearOpts.yes {
		return fmt.Errorf("refusing to remove %s report(s) without --yes", humanize.Comma(int64(n)))
	}
	if err := reportLog.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d report(s)\n", n)
	return nil
}
