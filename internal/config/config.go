package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GridConfig describes a grid layout in cells and pixels.
type GridConfig struct {
	Rows    int `yaml:"rows"`
	Cols    int `yaml:"cols"`
	Padding int `yaml:"padding"`
	Margin  int `yaml:"margin"`
}

// Config is the effective daemon configuration.
type Config struct {
	// Script is the user JavaScript file evaluated at startup and on reload.
	Script string `yaml:"script"`

	// Display overrides $DISPLAY for the X11 connection.
	Display string `yaml:"display"`

	LogLevel string `yaml:"log_level" split_words:"true"`

	Grid GridConfig `yaml:"grid"`

	// ScreenGrids overrides Grid for screens by RandR output name.
	ScreenGrids map[string]GridConfig `yaml:"screen_grids" ignored:"true"`

	// ReconcileInterval is the full resync period in seconds; 0 disables it.
	ReconcileInterval int `yaml:"reconcile_interval" split_words:"true"`

	// ScriptTimeout bounds a single script evaluation in seconds.
	ScriptTimeout int `yaml:"script_timeout" split_words:"true"`

	MetricsAddr  string `yaml:"metrics_addr" split_words:"true"`
	ReloadHotkey string `yaml:"reload_hotkey" split_words:"true"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Script:   "init.js",
		LogLevel: "info",
		Grid: GridConfig{
			Rows:    2,
			Cols:    2,
			Padding: 0,
			Margin:  0,
		},
		ScreenGrids:       map[string]GridConfig{},
		ReconcileInterval: 30,
		ScriptTimeout:     5,
		MetricsAddr:       "",
		ReloadHotkey:      "Mod4-Mod1-r",
	}
}

// ValidationError reports an invalid value at a YAML path.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Source.Kind == SourceEnv && e.Source.Name != "" {
		return fmt.Sprintf("%s (from %s): %v", e.Path, e.Source.Name, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (g GridConfig) validate(path string) error {
	if g.Rows < 1 {
		return &ValidationError{Path: path + ".rows", Err: fmt.Errorf("rows must be >= 1")}
	}
	if g.Cols < 1 {
		return &ValidationError{Path: path + ".cols", Err: fmt.Errorf("cols must be >= 1")}
	}
	if g.Padding < 0 {
		return &ValidationError{Path: path + ".padding", Err: fmt.Errorf("padding must be >= 0")}
	}
	if g.Margin < 0 {
		return &ValidationError{Path: path + ".margin", Err: fmt.Errorf("margin must be >= 0")}
	}
	return nil
}

// Validate checks every field and returns the first problem as a
// *ValidationError.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Script) == "" {
		return &ValidationError{Path: "script", Err: fmt.Errorf("script is required")}
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if err := c.Grid.validate("grid"); err != nil {
		return err
	}
	if c.ScreenGrids == nil {
		return &ValidationError{Path: "screen_grids", Err: fmt.Errorf("screen_grids must not be null")}
	}
	names := make([]string, 0, len(c.ScreenGrids))
	for name := range c.ScreenGrids {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return &ValidationError{Path: "screen_grids", Err: fmt.Errorf("screen_grids contains an empty screen name")}
		}
		if err := c.ScreenGrids[name].validate("screen_grids." + name); err != nil {
			return err
		}
	}
	if c.ReconcileInterval < 0 {
		return &ValidationError{Path: "reconcile_interval", Err: fmt.Errorf("reconcile_interval must be >= 0")}
	}
	if c.ScriptTimeout < 1 {
		return &ValidationError{Path: "script_timeout", Err: fmt.Errorf("script_timeout must be >= 1")}
	}
	return nil
}

// ReconcileEvery returns the resync period, or 0 when disabled.
func (c *Config) ReconcileEvery() time.Duration {
	return time.Duration(c.ReconcileInterval) * time.Second
}

// ScriptDeadline returns the per-evaluation script timeout.
func (c *Config) ScriptDeadline() time.Duration {
	return time.Duration(c.ScriptTimeout) * time.Second
}

// ScriptPath resolves Script against the config directory and expands a
// leading "~/".
func (c *Config) ScriptPath(configDir string) string {
	p := c.Script
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	if !filepath.IsAbs(p) && configDir != "" {
		p = filepath.Join(configDir, p)
	}
	return p
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
