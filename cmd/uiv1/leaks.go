package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/uiv1/internal/adapter/output"
	"github.com/jmylchreest/uiv1/internal/core"
	"github.com/jmylchreest/uiv1/internal/model"
)

var leaksOpts struct {
	// Filter options
	since    string
	kind     string
	window   string
	windowID uint64
	owner    string
	widget   string
	source   string
	severity string
	filter   string
	search   string
	unacked  bool
	limit    int

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format   string
	field    string
	template string
}

var leaksCmd = &cobra.Command{
	Use:   "leaks [index|id]",
	Short: "Query the report log",
	Long: `Query the leak and cosmetic reports written by uiv1d.

Without arguments, outputs all reports in dmenu format (suitable for fuzzel,
walker, rofi, etc.). With an index (1-based) or ID argument, outputs that
single report.

Examples:
  # Unacknowledged leaks from the last hour
  uiv1 leaks --kind leak --unacked --since 1h

  # Filter expression
  uiv1 leaks --filter "window=settings,severity>=warning"

  # Message of the third report
  uiv1 leaks 3 --field message

  # Acknowledge everything left by the settings window
  uiv1 leaks --window settings --format ids | uiv1 leaks ack --stdin`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLeaks,
}

func init() {
	rootCmd.AddCommand(leaksCmd)

	f := leaksCmd.Flags()
	f.StringVar(&leaksOpts.since, "since", "",
		"Show reports from the last duration (e.g., 1h, 7d, 1w)")
	f.StringVar(&leaksOpts.kind, "kind", "",
		"Filter by kind (leak, cosmetic)")
	f.StringVar(&leaksOpts.window, "window", "",
		"Filter by window name (exact match)")
	f.Uint64Var(&leaksOpts.windowID, "window-id", 0,
		"Filter by window instance id")
	f.StringVar(&leaksOpts.owner, "owner", "",
		"Filter by owner (exact match)")
	f.StringVar(&leaksOpts.widget, "widget", "",
		"Filter by leaked widget kind, or owner for unreachable owners")
	f.StringVar(&leaksOpts.source, "source", "",
		"Filter by report source (e.g. uiv1d, import)")
	f.StringVar(&leaksOpts.severity, "severity", "",
		"Filter by severity (info, warning, error)")
	f.StringVar(&leaksOpts.filter, "filter", "",
		`Filter expression (e.g. "kind=leak,owner~=^\*menu\."); fields: `+strings.Join(core.FilterFields(), ", "))
	f.StringVarP(&leaksOpts.search, "search", "s", "",
		"Search in owner, window and message")
	f.BoolVar(&leaksOpts.unacked, "unacked", false,
		"Hide acknowledged reports")
	f.IntVarP(&leaksOpts.limit, "limit", "n", 0,
		"Maximum number of reports to show (0=unlimited)")

	f.StringVar(&leaksOpts.sortBy, "sort", "timestamp",
		"Sort by field (timestamp, window, severity, kind)")
	f.StringVar(&leaksOpts.sortOrder, "order", "desc",
		"Sort order (asc, desc)")

	f.StringVarP(&leaksOpts.format, "format", "f", "dmenu",
		"Output format (dmenu, json, yaml, plain, ids)")
	f.StringVar(&leaksOpts.field, "field", "",
		"Output a single field (id, kind, window, owner, widget, handle, op, severity, source, message, all)")
	f.StringVar(&leaksOpts.template, "template", "",
		"Custom Go template for dmenu output")
}

func runLeaks(cmd *cobra.Command, args []string) error {
	reports, err := selectReports()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		r, err := lookupReport(reports, args[0])
		if err != nil {
			return err
		}
		return outputSingle(cmd.OutOrStdout(), r)
	}

	if len(reports) == 0 {
		logger.Debug("no reports to output")
		return nil
	}
	f, err := newFormatter(leaksOpts.format)
	if err != nil {
		return err
	}
	return f.Format(cmd.OutOrStdout(), reports)
}

// selectReports applies the filter and sort flags to the report log.
func selectReports() ([]model.Report, error) {
	opts := core.FilterOptions{
		Kind:     strings.ToLower(leaksOpts.kind),
		Window:   leaksOpts.window,
		WindowID: leaksOpts.windowID,
		Owner:    leaksOpts.owner,
		Widget:   strings.ToLower(leaksOpts.widget),
		Source:   leaksOpts.source,
		Unacked:  leaksOpts.unacked,
	}
	if leaksOpts.since != "" {
		d, err := core.ParseDuration(leaksOpts.since)
		if err != nil {
			return nil, err
		}
		opts.Since = d
	}
	if leaksOpts.severity != "" {
		s, err := core.ParseSeverity(leaksOpts.severity)
		if err != nil {
			return nil, err
		}
		opts.Severity = &s
	}

	field, err := core.ParseSortField(leaksOpts.sortBy)
	if err != nil {
		return nil, err
	}
	order, err := core.ParseSortOrder(leaksOpts.sortOrder)
	if err != nil {
		return nil, err
	}

	reports := reportLog.Filter(opts, core.SortOptions{Field: field, Order: order})

	if leaksOpts.filter != "" {
		expr, err := core.ParseFilter(leaksOpts.filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter: %w", err)
		}
		reports = core.FilterWithExpr(reports, expr)
	}
	if leaksOpts.search != "" {
		reports = core.Search(reports, leaksOpts.search)
	}
	if leaksOpts.limit > 0 && len(reports) > leaksOpts.limit {
		reports = reports[:leaksOpts.limit]
	}
	return reports, nil
}

// lookupReport resolves a 1-based index, a dmenu line, an ID, or an ID
// prefix against the listed reports.
func lookupReport(reports []model.Report, arg string) (*model.Report, error) {
	sel := parseDmenuSelection(arg)
	if idx, err := strconv.Atoi(sel); err == nil && idx > 0 {
		if r := core.LookupByIndex(reports, idx); r != nil {
			return r, nil
		}
		return nil, fmt.Errorf("report at index %d not found", idx)
	}
	if r := reportLog.Lookup(sel); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("report with ID %s not found", sel)
}

// parseDmenuSelection extracts the index from a dmenu line such as
// "1 | 5m | settings | [leak] button#4.1: handle still live", or returns
// the input unchanged.
func parseDmenuSelection(selection string) string {
	selection = strings.TrimSpace(selection)
	if !strings.Contains(selection, "|") {
		return selection
	}
	idx := strings.TrimSpace(strings.SplitN(selection, "|", 2)[0])
	if n, err := strconv.Atoi(idx); err == nil && n > 0 {
		return idx
	}
	return selection
}

func outputSingle(w io.Writer, r *model.Report) error {
	if leaksOpts.field != "" {
		_, err := fmt.Fprintln(w, output.FormatField(r, leaksOpts.field))
		return err
	}
	format := leaksOpts.format
	if strings.EqualFold(format, string(output.FormatDmenu)) {
		format = string(output.FormatJSON)
	}
	f, err := newFormatter(format)
	if err != nil {
		return err
	}
	return f.Format(w, []model.Report{*r})
}

// newFormatter creates the output formatter for a --format value.
func newFormatter(format string) (output.Formatter, error) {
	ft, err := output.ParseFormatType(format)
	if err != nil {
		return nil, err
	}
	opts := output.DefaultFormatterOptions()
	opts.Template = leaksOpts.template
	return output.NewFormatter(ft, opts), nil
}

// ULID pattern: 26 characters of Crockford base32.
var ulidPattern = regexp.MustCompile(`\b[0-9A-HJKMNP-TV-Z]{26}\b`)

// extractID returns the first valid ULID in line, or "".
func extractID(line string) string {
	for _, m := range ulidPattern.FindAllString(strings.ToUpper(line), -1) {
		if _, err := ulid.ParseStrict(m); err == nil {
			return m
		}
	}
	return ""
}

// readIDs reads report IDs from r. Each line is scanned for a ULID, or r
// holds JSON reports (as written by --format json) when asJSON is set.
func readIDs(r io.Reader, asJSON bool) ([]string, error) {
	if asJSON {
		var reports []model.Report
		if err := json.NewDecoder(r).Decode(&reports); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		ids := make([]string, 0, len(reports))
		for _, rep := range reports {
			if rep.ID != "" {
				ids = append(ids, rep.ID)
			}
		}
		return ids, nil
	}

	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if id := extractID(scanner.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, scanner.Err()
}

// collectIDs merges positional IDs with IDs read from stdin, dropping
// duplicates while keeping order.
func collectIDs(args []string, stdin, stdinJSON bool) ([]string, error) {
	ids := append([]string(nil), args...)
	if stdin || stdinJSON {
		read, err := readIDs(os.Stdin, stdinJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		ids = append(ids, read...)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no report IDs provided")
	}
	return uniqueStrings(ids), nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
