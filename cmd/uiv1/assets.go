package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/uiv1/internal/layout"
	"github.com/jmylchreest/uiv1/internal/theme"
	"github.com/jmylchreest/uiv1/internal/transition"
)

var assetOpts struct {
	format string
}

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "List window layout templates",
	Long: `List the layout templates uiv1d can build, user templates first.
A user template in layouts.dir overrides the bundled one of the same name.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := layout.NewLoader(cfg.LayoutsDir())
		var rows []layoutRow
		for _, name := range loader.Names() {
			row := layoutRow{Name: name}
			tmpl, err := loader.Load(name)
			if err != nil {
				row.Error = err.Error()
			} else {
				row.Widgets = tmpl.Count()
				row.Transition = tmpl.Transition
				row.Modal = tmpl.Modal
			}
			rows = append(rows, row)
		}
		return writeRows(cmd.OutOrStdout(), rows, "NAME\tWIDGETS\tTRANSITION\tMODAL", func(r layoutRow) string {
			if r.Error != "" {
				return fmt.Sprintf("%s\t-\t-\t-\t%s", r.Name, r.Error)
			}
			return fmt.Sprintf("%s\t%d\t%s\t%t", r.Name, r.Widgets, dash(r.Transition), r.Modal)
		})
	},
}

var transitionsCmd = &cobra.Command{
	Use:   "transitions",
	Short: "List transition assets",
	Long:  `List every animated transition with the asset uiv1d would load.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lib := transition.NewLibrary(transition.BundledAssets(), cfg.TransitionsDir(), logger)
		if err := lib.Load(); err != nil {
			logger.Debug("some transitions failed to load", "error", err)
		}
		var rows []transitionRow
		for _, e := range lib.Entries() {
			row := transitionRow{Name: e.Kind.String()}
			if e.Err != nil {
				row.Error = e.Err.Error()
			} else {
				row.Duration = e.Asset.Duration.Duration().String()
				row.Easing = e.Asset.Easing
				row.Sound = e.Asset.Sound
				row.Source = e.Asset.Source
			}
			rows = append(rows, row)
		}
		return writeRows(cmd.OutOrStdout(), rows, "NAME\tDURATION\tEASING\tSOUND\tSOURCE", func(r transitionRow) string {
			if r.Error != "" {
				return fmt.Sprintf("%s\t-\t-\t-\t%s", r.Name, r.Error)
			}
			return fmt.Sprintf("%s\t%s\t%s\t%s\t%s", r.Name, r.Duration, dash(r.Easing), dash(r.Sound), r.Source)
		})
	},
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List available GTK themes",
	RunE: func(cmd *cobra.Command, args []string) error {
		themes, err := theme.ListAvailable(cfg.ThemesDir())
		if err != nil {
			logger.Warn("failed to read themes directory", "dir", cfg.ThemesDir(), "error", err)
		}
		current := cfg.Theme.Name
		if current == "" {
			current = theme.DefaultThemeName
		}
		return writeRows(cmd.OutOrStdout(), themes, "NAME\tSOURCE\tACTIVE", func(t theme.Info) string {
			source := "bundled"
			if t.Path != "" {
				source = t.Path
			}
			active := ""
			if t.Name == current {
				active = "*"
			}
			return fmt.Sprintf("%s\t%s\t%s", t.Name, source, active)
		})
	},
}

type layoutRow struct {
	Name       string `json:"name" yaml:"name"`
	Widgets    int    `json:"widgets,omitempty" yaml:"widgets,omitempty"`
	Transition string `json:"transition,omitempty" yaml:"transition,omitempty"`
	Modal      bool   `json:"modal" yaml:"modal"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

type transitionRow struct {
	Name     string `json:"name" yaml:"name"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Easing   string `json:"easing,omitempty" yaml:"easing,omitempty"`
	Sound    string `json:"sound,omitempty" yaml:"sound,omitempty"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func init() {
	for _, cmd := range []*cobra.Command{layoutsCmd, transitionsCmd, themesCmd} {
		cmd.Flags().StringVarP(&assetOpts.format, "format", "f", "table",
			"Output format (table, json, yaml)")
		rootCmd.AddCommand(cmd)
	}
}

// writeRows writes rows as a table, JSON or YAML depending on --format.
func writeRows[T any](w io.Writer, rows []T, header string, line func(T) string) error {
	switch assetOpts.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if rows == nil {
			rows = []T{}
		}
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, header)
		for _, r := range rows {
			fmt.Fprintln(tw, line(r))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q (use table, json, or yaml)", assetOpts.format)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
