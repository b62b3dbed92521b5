package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/uiv1/internal/config"
)

var configOpts struct {
	format string
	force  bool
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		var buf bytes.Buffer
		switch configOpts.format {
		case "toml", "":
			enc := toml.NewEncoder(&buf)
			enc.SetIndentTables(true)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
		case "yaml":
			// Round-trip through TOML so keys keep their file names.
			data, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}
			var tree map[string]any
			if err := toml.Unmarshal(data, &tree); err != nil {
				return err
			}
			enc := yaml.NewEncoder(&buf)
			enc.SetIndent(2)
			if err := enc.Encode(tree); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q (use toml or yaml)", configOpts.format)
		}
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration and data file paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config:       %s\n", configPath())
		fmt.Fprintf(out, "reports:      %s\n", reportsPath())
		fmt.Fprintf(out, "suppressions: %s\n", config.SuppressionsPath())
		fmt.Fprintf(out, "uistate:      %s\n", config.UIStatePath())
		fmt.Fprintf(out, "transitions:  %s\n", cfg.TransitionsDir())
		fmt.Fprintf(out, "layouts:      %s\n", cfg.LayoutsDir())
		fmt.Fprintf(out, "themes:       %s\n", cfg.ThemesDir())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil && !configOpts.force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	configShowCmd.Flags().StringVarP(&configOpts.format, "format", "f", "toml",
		"Output format (toml, yaml)")
	configInitCmd.Flags().BoolVar(&configOpts.force, "force", false,
		"Overwrite an existing file")

	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
