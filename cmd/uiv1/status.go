package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/uiv1/internal/core"
	"github.com/jmylchreest/uiv1/internal/model"
)

var statusOpts struct {
	since string
	all   bool // Include acknowledged reports
}

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text       string `json:"text"`
	Alt        string `json:"alt,omitempty"`
	Tooltip    string `json:"tooltip,omitempty"`
	Class      string `json:"class,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Output Waybar-compatible JSON status",
	Long: `Output the report log status in Waybar's custom module JSON format.

By default, counts only unacknowledged reports. Use --all to include
acknowledged ones.

  "custom/uiv1": {
    "exec": "uiv1 status",
    "interval": 5,
    "return-type": "json",
    "on-click": "uiv1 inspect"
  }

The output includes:
  - text: Number of reports
  - alt/class: error when a leak is present, warning for cosmetic
    failures only, empty otherwise
  - tooltip: Breakdown by kind and the newest report`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusOpts.all, "all", false,
		"Include acknowledged reports in the count")
	statusCmd.Flags().StringVar(&statusOpts.since, "since", "",
		"Only count reports from the last duration")
}

func runStatus(cmd *cobra.Command, args []string) error {
	opts := core.FilterOptions{Unacked: !statusOpts.all}
	if statusOpts.since != "" {
		d, err := core.ParseDuration(statusOpts.since)
		if err != nil {
			return err
		}
		opts.Since = d
	}
	reports := reportLog.Filter(opts, core.DefaultSortOptions())

	return json.NewEncoder(cmd.OutOrStdout()).Encode(buildStatus(reports, time.Now()))
}

// buildStatus summarises reports, newest first.
func buildStatus(reports []model.Report, now time.Time) WaybarStatus {
	if len(reports) == 0 {
		return WaybarStatus{Text: "", Alt: "empty", Class: "empty"}
	}

	var leaks, cosmetic int
	for _, r := range reports {
		if r.Kind == model.KindLeak {
			leaks++
		} else {
			cosmetic++
		}
	}

	class := "warning"
	if leaks > 0 {
		class = "error"
	}

	var lines []string
	if leaks > 0 {
		lines = append(lines, fmt.Sprintf("Leaks: %d", leaks))
	}
	if cosmetic > 0 {
		lines = append(lines, fmt.Sprintf("Cosmetic: %d", cosmetic))
	}
	newest := reports[0]
	lines = append(lines, fmt.Sprintf("Latest: %s in %s, %s",
		newest.Subject(), windowLabel(newest.Window),
		humanize.RelTime(newest.TimestampTime(), now, "ago", "from now")))

	return WaybarStatus{
		Text:       fmt.Sprintf("%d", len(reports)),
		Alt:        class,
		Tooltip:    strings.Join(lines, "\n"),
		Class:      class,
		Percentage: min(len(reports), 100),
	}
}

func windowLabel(name string) string {
	if name == "" {
		return "(no window)"
	}
	return name
}
