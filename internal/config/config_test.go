package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Grid.Rows != 2 || cfg.Grid.Cols != 2 {
		t.Fatalf("expected a 2x2 default grid, got %+v", cfg.Grid)
	}
	if cfg.ScriptDeadline() != 5*time.Second {
		t.Fatalf("expected 5s script timeout, got %v", cfg.ScriptDeadline())
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != "" {
		t.Fatalf("expected no file, got %q", res.File)
	}
	if res.Config.LogLevel != "info" {
		t.Fatalf("expected default log level, got %q", res.Config.LogLevel)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := writeConfig(t, "# empty")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Script != "init.js" {
		t.Fatalf("expected default script, got %q", res.Config.Script)
	}
}

func TestLoadFromPath_PartialGridKeepsDefaults(t *testing.T) {
	path := writeConfig(t,
		"grid:",
		"  cols: 3",
		"  padding: 4",
	)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := GridConfig{Rows: 2, Cols: 3, Padding: 4, Margin: 0}
	if res.Config.Grid != want {
		t.Fatalf("grid = %+v, want %+v", res.Config.Grid, want)
	}
}

func TestLoadFromPath_ScreenGrids(t *testing.T) {
	path := writeConfig(t,
		"screen_grids:",
		"  HDMI-1:",
		"    rows: 1",
		"    cols: 4",
	)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g, ok := res.Config.ScreenGrids["HDMI-1"]
	if !ok || g.Rows != 1 || g.Cols != 4 {
		t.Fatalf("unexpected screen grids: %+v", res.Config.ScreenGrids)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := writeConfig(t, "unknown_key: 1")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), filepath.Base(path)) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorCarriesSource(t *testing.T) {
	path := writeConfig(t,
		"log_level: info",
		"grid:",
		"  rows: 0",
	)

	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "grid.rows" {
		t.Fatalf("expected path grid.rows, got %q", verr.Path)
	}
	if verr.Source.Kind != SourceFile || verr.Source.Line != 3 {
		t.Fatalf("expected file source on line 3, got %+v", verr.Source)
	}
	if !strings.Contains(err.Error(), ":3:") {
		t.Fatalf("expected line number in message, got %q", err.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"empty script", func(c *Config) { c.Script = " " }, "script"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"zero cols", func(c *Config) { c.Grid.Cols = 0 }, "grid.cols"},
		{"negative padding", func(c *Config) { c.Grid.Padding = -1 }, "grid.padding"},
		{"negative margin", func(c *Config) { c.Grid.Margin = -2 }, "grid.margin"},
		{"null screen grids", func(c *Config) { c.ScreenGrids = nil }, "screen_grids"},
		{"bad screen grid", func(c *Config) { c.ScreenGrids["DP-1"] = GridConfig{Rows: 0, Cols: 1} }, "screen_grids.DP-1.rows"},
		{"negative reconcile", func(c *Config) { c.ReconcileInterval = -1 }, "reconcile_interval"},
		{"zero script timeout", func(c *Config) { c.ScriptTimeout = 0 }, "script_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("path = %q, want %q", verr.Path, tt.path)
			}
		})
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	path := writeConfig(t,
		"log_level: warning",
		"grid:",
		"  rows: 3",
	)
	t.Setenv("AUTUMN_LOG_LEVEL", "debug")
	t.Setenv("AUTUMN_GRID_COLS", "6")
	t.Setenv("AUTUMN_METRICS_ADDR", "127.0.0.1:9310")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.LogLevel)
	}
	if cfg.Grid.Rows != 3 || cfg.Grid.Cols != 6 {
		t.Fatalf("expected rows from file and cols from env, got %+v", cfg.Grid)
	}
	if cfg.MetricsAddr != "127.0.0.1:9310" {
		t.Fatalf("expected metrics addr from env, got %q", cfg.MetricsAddr)
	}

	_, src, err := Explain(res, "log_level")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if src.Kind != SourceEnv || src.Name != "AUTUMN_LOG_LEVEL" {
		t.Fatalf("expected env source, got %+v", src)
	}
}

func TestLoadFromPath_EnvOverrideValidated(t *testing.T) {
	t.Setenv("AUTUMN_SCRIPT_TIMEOUT", "0")

	_, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "AUTUMN_SCRIPT_TIMEOUT") {
		t.Fatalf("expected env name in message, got %q", err.Error())
	}
}

func TestLoadFromPath_EnvParseError(t *testing.T) {
	t.Setenv("AUTUMN_GRID_ROWS", "many")

	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a non-numeric override")
	}
}

func TestExplain(t *testing.T) {
	path := writeConfig(t,
		"display: \":1\"",
		"grid:",
		"  rows: 4",
	)
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	tests := []struct {
		path string
		want any
		kind SourceKind
	}{
		{"display", ":1", SourceFile},
		{"grid.rows", 4, SourceFile},
		{"grid.cols", 2, SourceDefault},
		{"script_timeout", 5, SourceDefault},
	}
	for _, tt := range tests {
		val, src, err := Explain(res, tt.path)
		if err != nil {
			t.Fatalf("explain %s: %v", tt.path, err)
		}
		if val != tt.want {
			t.Fatalf("explain %s = %#v, want %#v", tt.path, val, tt.want)
		}
		if src.Kind != tt.kind {
			t.Fatalf("explain %s source = %v, want %v", tt.path, src.Kind, tt.kind)
		}
	}

	if _, _, err := Explain(res, "grid.depth"); err == nil {
		t.Fatal("expected error for unknown grid field")
	}
	if _, _, err := Explain(res, "nope"); err == nil {
		t.Fatal("expected error for unknown path")
	}
}

func TestScriptPath(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ScriptPath("/etc/autumn"); got != "/etc/autumn/init.js" {
		t.Fatalf("relative script = %q", got)
	}
	cfg.Script = "/opt/autumn.js"
	if got := cfg.ScriptPath("/etc/autumn"); got != "/opt/autumn.js" {
		t.Fatalf("absolute script = %q", got)
	}
}
