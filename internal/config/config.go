// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultScale          = "auto"
	DefaultCleanupPolicy  = "upkeep"
	DefaultUpkeepInterval = 2654300 * time.Microsecond
	DefaultTransition     = "slide-in"
	DefaultFrameRate      = 60
	DefaultVolume         = 80
)

// Config represents the uiv1 configuration.
// Loaded from ~/.config/uiv1/uiv1.toml
type Config struct {
	UI          UIConfig         `toml:"ui"`
	Cleanup     CleanupConfig    `toml:"cleanup"`
	Transitions TransitionConfig `toml:"transitions"`
	Layouts     LayoutsConfig    `toml:"layouts"`
	Audio       AudioConfig      `toml:"audio"`
	Frame       FrameConfig      `toml:"frame"`
	Debug       DebugConfig      `toml:"debug"`
	Theme       ThemeConfig      `toml:"theme"`
	Clipboard   ClipboardConfig  `toml:"clipboard"`
}

// UIConfig holds general UI settings.
type UIConfig struct {
	Scale string `toml:"scale"` // auto, small, medium, large
}

// CleanupConfig controls the widget leak verifier.
type CleanupConfig struct {
	Policy         string   `toml:"policy"`          // upkeep, on-demand, off
	UpkeepInterval Duration `toml:"upkeep_interval"` // e.g. "2.6543s"
	Report         bool     `toml:"report"`          // Append leaks to the report log
}

// TransitionConfig controls window transition assets.
type TransitionConfig struct {
	Dir       string `toml:"dir"`        // User override directory (empty = default)
	Default   string `toml:"default"`    // Transition used when a window doesn't pick one
	HotReload bool   `toml:"hot_reload"` // Watch Dir for changes
}

// LayoutsConfig controls window layout templates.
type LayoutsConfig struct {
	Dir string `toml:"dir"` // User override directory (empty = default)
}

// AudioConfig contains transition sound cue settings.
type AudioConfig struct {
	Enabled bool              `toml:"enabled"`
	Volume  int               `toml:"volume"` // 0-100
	Cues    map[string]string `toml:"cues"`   // cue name -> sound file
}

// FrameConfig controls the tick driver.
type FrameConfig struct {
	Rate int `toml:"rate"` // Ticks per second
}

// DebugConfig contains developer diagnostics settings.
type DebugConfig struct {
	DBus      bool `toml:"dbus"`       // Export the debug bus service
	ReportLog bool `toml:"report_log"` // Persist cosmetic/leak reports
}

// ThemeConfig selects the GTK stylesheet.
type ThemeConfig struct {
	Name      string `toml:"name"`       // Theme name (empty = default)
	Dir       string `toml:"dir"`        // User themes directory (empty = default)
	HotReload bool   `toml:"hot_reload"` // Reload the theme file when it changes
}

// ClipboardConfig holds clipboard settings (inspector only).
type ClipboardConfig struct {
	Command string `toml:"command"` // Clipboard command (empty = auto-detect)
}

// Scale values accepted by UIConfig.Scale.
var validScales = map[string]bool{
	"auto":   true,
	"small":  true,
	"medium": true,
	"large":  true,
}

// Cleanup policies accepted by CleanupConfig.Policy.
var validPolicies = map[string]bool{
	"upkeep":    true,
	"on-demand": true,
	"off":       true,
}

// Transition names accepted by TransitionConfig.Default.
var validTransitions = map[string]bool{
	"none":      true,
	"slide-in":  true,
	"slide-out": true,
	"fade":      true,
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		UI: UIConfig{
			Scale: DefaultScale,
		},
		Cleanup: CleanupConfig{
			Policy:         DefaultCleanupPolicy,
			UpkeepInterval: Duration(DefaultUpkeepInterval),
			Report:         true,
		},
		Transitions: TransitionConfig{
			Default:   DefaultTransition,
			HotReload: true,
		},
		Audio: AudioConfig{
			Enabled: false,
			Volume:  DefaultVolume,
			Cues:    make(map[string]string),
		},
		Frame: FrameConfig{
			Rate: DefaultFrameRate,
		},
		Debug: DebugConfig{
			DBus:      true,
			ReportLog: true,
		},
		Theme: ThemeConfig{
			Name:      "default",
			HotReload: true,
		},
	}
}

// ConfigDir returns the uiv1 config directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "uiv1")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "uiv1.toml")
}

// DataPath returns the path to the data directory.
// Uses XDG_DATA_HOME if set, otherwise ~/.local/share.
func DataPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "uiv1")
}

// ReportsPath returns the path to the diagnostics report JSONL file.
func ReportsPath() string {
	return filepath.Join(DataPath(), "reports.jsonl")
}

// SuppressionsPath returns the path to the suppressed report keys file.
func SuppressionsPath() string {
	return filepath.Join(DataPath(), "suppressions.json")
}

// UIStatePath returns the path to the saved UI state file.
func UIStatePath() string {
	return filepath.Join(DataPath(), "uistate.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	path := DataPath()
	if path == "" {
		return errors.New("unable to determine data directory")
	}
	return os.MkdirAll(path, 0755)
}

// TransitionsDir returns the directory holding user transition assets.
func (c *Config) TransitionsDir() string {
	if c.Transitions.Dir != "" {
		return expandPath(c.Transitions.Dir)
	}
	if dir := ConfigDir(); dir != "" {
		return filepath.Join(dir, "transitions")
	}
	return ""
}

// LayoutsDir returns the directory holding user layout templates.
func (c *Config) LayoutsDir() string {
	if c.Layouts.Dir != "" {
		return expandPath(c.Layouts.Dir)
	}
	if dir := ConfigDir(); dir != "" {
		return filepath.Join(dir, "layouts")
	}
	return ""
}

// ThemesDir returns the directory holding user stylesheets.
func (c *Config) ThemesDir() string {
	if c.Theme.Dir != "" {
		return expandPath(c.Theme.Dir)
	}
	if dir := ConfigDir(); dir != "" {
		return filepath.Join(dir, "themes")
	}
	return ""
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Start with defaults
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Audio.Cues == nil {
		cfg.Audio.Cues = make(map[string]string)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed and writes atomically via a temp file.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !validScales[c.UI.Scale] {
		return fmt.Errorf("invalid ui scale %q, must be one of: auto, small, medium, large", c.UI.Scale)
	}
	if !validPolicies[c.Cleanup.Policy] {
		return fmt.Errorf("invalid cleanup policy %q, must be one of: upkeep, on-demand, off", c.Cleanup.Policy)
	}
	if c.Cleanup.Policy == "upkeep" && c.Cleanup.UpkeepInterval.Duration() <= 0 {
		return fmt.Errorf("upkeep_interval must be positive when policy is upkeep")
	}
	if !validTransitions[c.Transitions.Default] {
		return fmt.Errorf("invalid default transition %q", c.Transitions.Default)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}
	if c.Frame.Rate < 1 || c.Frame.Rate > 240 {
		return fmt.Errorf("frame rate must be between 1 and 240, got %d", c.Frame.Rate)
	}
	return nil
}

// FrameInterval returns the duration of one tick.
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Frame.Rate)
}

// CuePath returns the sound file configured for a cue, with ~ expanded.
func (c *Config) CuePath(cue string) string {
	return expandPath(c.Audio.Cues[cue])
}
