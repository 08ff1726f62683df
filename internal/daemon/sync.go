package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/1broseidon/autumn/internal/config"
	"github.com/1broseidon/autumn/internal/grid"
)

// NewLogger builds the daemon's text logger for a config log level.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps a config log level to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warning", "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func gridSpec(g config.GridConfig) grid.Spec {
	return grid.Spec{Rows: g.Rows, Cols: g.Cols, Padding: g.Padding, Margin: g.Margin}
}

// applyGrid pushes the default and per-screen grids into the manager. The
// manager is left unchanged when any grid is rejected.
func applyGrid(m *grid.Manager, cfg *config.Config) error {
	def := gridSpec(cfg.Grid)
	if err := def.Validate(); err != nil {
		return fmt.Errorf("grid: %w", err)
	}
	names := make([]string, 0, len(cfg.ScreenGrids))
	for name, g := range cfg.ScreenGrids {
		if err := gridSpec(g).Validate(); err != nil {
			return fmt.Errorf("screen_grids.%s: %w", name, err)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if err := m.SetSpec(def); err != nil {
		return err
	}
	m.ClearScreenSpecs()
	for _, name := range names {
		if err := m.SetScreenSpec(name, gridSpec(cfg.ScreenGrids[name])); err != nil {
			return err
		}
	}
	return nil
}

// loadScript (re)starts the script host with the file at path. A missing
// file leaves an empty runtime so EVAL still works.
func (d *Daemon) loadScript(path string) error {
	d.host.Stop()
	d.host.SetTimeout(d.cfg.Config.ScriptDeadline())

	err := d.host.LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Info("no script found, starting empty runtime", "path", path)
		return d.host.Start()
	}
	return err
}

// reload re-reads the configuration and reloads the script. It runs on the
// loop. A config error keeps the previous configuration and script running.
func (d *Daemon) reload() error {
	res, err := d.load()
	if err != nil {
		d.metrics.ScriptReloaded(err)
		d.logger.Warn("config reload failed", "error", err)
		return err
	}
	if err := applyGrid(d.grid, res.Config); err != nil {
		d.metrics.ScriptReloaded(err)
		return err
	}
	d.cfg = res

	err = d.loadScript(res.ScriptPath())
	d.metrics.ScriptReloaded(err)
	if err != nil {
		d.logger.Warn("script reload failed", "path", res.ScriptPath(), "error", err)
		return err
	}
	d.rebindReloadHotkey()
	d.logger.Info("reloaded", "config", res.File, "script", res.ScriptPath())
	return nil
}
