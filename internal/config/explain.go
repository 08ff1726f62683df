package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Explain returns the effective value at the given YAML path and its source.
//
// Supported paths include:
//
//	script
//	display
//	log_level
//	grid.rows
//	grid.padding
//	screen_grids.<output>.cols
//	reconcile_interval
//	script_timeout
//	metrics_addr
//	reload_hotkey
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault, Name: "defaults"}, nil
}

// FormatSource renders a source for CLI output.
func FormatSource(src Source) string {
	switch src.Kind {
	case SourceFile:
		return fmt.Sprintf("%s:%d:%d", src.File, src.Line, src.Column)
	case SourceEnv:
		return "env " + src.Name
	default:
		return string(SourceDefault)
	}
}

func lookupValue(cfg *Config, path string) (any, error) {
	parts := strings.Split(path, ".")
	switch parts[0] {
	case "script":
		return scalar(parts, cfg.Script)
	case "display":
		return scalar(parts, cfg.Display)
	case "log_level":
		return scalar(parts, cfg.LogLevel)
	case "reconcile_interval":
		return scalar(parts, cfg.ReconcileInterval)
	case "script_timeout":
		return scalar(parts, cfg.ScriptTimeout)
	case "metrics_addr":
		return scalar(parts, cfg.MetricsAddr)
	case "reload_hotkey":
		return scalar(parts, cfg.ReloadHotkey)
	case "grid":
		return gridValue(cfg.Grid, parts[1:], path)
	case "screen_grids":
		if len(parts) == 1 {
			return cfg.ScreenGrids, nil
		}
		g, ok := cfg.ScreenGrids[parts[1]]
		if !ok {
			return nil, fmt.Errorf("unknown screen grid %q", parts[1])
		}
		return gridValue(g, parts[2:], path)
	default:
		return nil, fmt.Errorf("unknown config path %q", path)
	}
}

func scalar(parts []string, v any) (any, error) {
	if len(parts) != 1 {
		return nil, fmt.Errorf("%s is not a section", parts[0])
	}
	return v, nil
}

func gridValue(g GridConfig, rest []string, path string) (any, error) {
	if len(rest) == 0 {
		return g, nil
	}
	if len(rest) != 1 {
		return nil, fmt.Errorf("unknown config path %q", path)
	}
	switch rest[0] {
	case "rows":
		return g.Rows, nil
	case "cols":
		return g.Cols, nil
	case "padding":
		return g.Padding, nil
	case "margin":
		return g.Margin, nil
	default:
		return nil, fmt.Errorf("unknown grid field %q (want rows, cols, padding or margin)", rest[0])
	}
}

// FormatValue renders a looked-up value on one line.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case GridConfig:
		return fmt.Sprintf("{rows: %d, cols: %d, padding: %d, margin: %d}", x.Rows, x.Cols, x.Padding, x.Margin)
	default:
		return fmt.Sprintf("%v", x)
	}
}
