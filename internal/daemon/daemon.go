// Package daemon wires the desktop registries, the grid engine, the script
// host and the control socket around a single coordination loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/autumn/internal/config"
	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/grid"
	"github.com/1broseidon/autumn/internal/ipc"
	"github.com/1broseidon/autumn/internal/metrics"
	"github.com/1broseidon/autumn/internal/platform"
	"github.com/1broseidon/autumn/internal/runloop"
	"github.com/1broseidon/autumn/internal/script"
)

// Options configures a Daemon.
type Options struct {
	Config  *config.LoadResult
	Backend platform.Backend
	// Hotkeys enables script hotkeys and the reload hotkey. Optional.
	Hotkeys platform.HotkeyBinder
	// Load re-reads the configuration on reload. Defaults to reloading
	// Config.File, or the default config path when no file was loaded.
	Load   func() (*config.LoadResult, error)
	Logger *slog.Logger
}

// Daemon owns every long-lived component. All of them except the loop itself
// are only touched from tasks on the loop.
type Daemon struct {
	cfg     *config.LoadResult
	load    func() (*config.LoadResult, error)
	backend platform.Backend
	hotkeys platform.HotkeyBinder
	logger  *slog.Logger

	loop       *runloop.Loop
	desktop    *desktop.Desktop
	grid       *grid.Manager
	host       *script.Host
	metrics    *metrics.Metrics
	server     *ipc.Server
	reconciler *Reconciler

	reloadSeq string
	reloadTok platform.Token
	bg        sync.WaitGroup
}

// New builds the component graph. Nothing runs until Run.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Backend == nil {
		return nil, errors.New("daemon requires a config and a backend")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	load := opts.Load
	if load == nil {
		file := opts.Config.File
		load = func() (*config.LoadResult, error) {
			if file != "" {
				return config.LoadFromPath(file)
			}
			return config.Load()
		}
	}

	cfg := opts.Config.Config
	d := &Daemon{
		cfg:     opts.Config,
		load:    load,
		backend: opts.Backend,
		logger:  logger,
		loop:    runloop.New(),
		metrics: metrics.New(),
	}
	if opts.Hotkeys != nil {
		d.hotkeys = loopBinder{binder: opts.Hotkeys, loop: d.loop}
	}

	d.desktop = desktop.New(opts.Backend, d.loop, logger.With("component", "desktop"), desktop.WithRecorder(d.metrics))

	gm, err := grid.NewManager(d.desktop, gridSpec(cfg.Grid), logger.With("component", "grid"))
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	if err := applyGrid(gm, cfg); err != nil {
		return nil, err
	}
	d.grid = gm

	hostOpts := []script.Option{script.WithTimeout(cfg.ScriptDeadline())}
	if d.hotkeys != nil {
		hostOpts = append(hostOpts, script.WithHotkeys(d.hotkeys))
	}
	d.host = script.New(d.desktop, gm, logger.With("component", "script"), hostOpts...)

	d.server, err = ipc.NewServer(ipc.Deps{
		Loop:    d.loop,
		Desktop: d.desktop,
		Grid:    gm,
		Script:  d.host,
		Reload:  d.reload,
		Logger:  logger.With("component", "ipc"),
	})
	if err != nil {
		return nil, err
	}

	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: cfg.ReconcileEvery(),
		Logger:   logger.With("component", "reconciler"),
	}, d.loop, d.desktop, d.metrics)

	return d, nil
}

// Loop returns the coordination loop.
func (d *Daemon) Loop() *runloop.Loop { return d.loop }

// Metrics returns the daemon's collectors.
func (d *Daemon) Metrics() *metrics.Metrics { return d.metrics }

// Run sets up the registries, loads the script, starts the control socket
// and drives the loop until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.desktop.Setup(); err != nil {
		return fmt.Errorf("desktop setup: %w", err)
	}
	d.logger.Info("desktop ready",
		"apps", d.desktop.Apps().Len(),
		"windows", d.desktop.Windows().Len(),
		"screens", d.desktop.Screens().Len())

	if err := d.loadScript(d.cfg.ScriptPath()); err != nil {
		// Keep running; RELOAD retries the script.
		d.logger.Error("script failed to load", "path", d.cfg.ScriptPath(), "error", err)
	}
	d.rebindReloadHotkey()
	d.reconciler.recordSizes()

	if err := d.server.Start(); err != nil {
		d.shutdown()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := d.cfg.Config.MetricsAddr; addr != "" {
		d.goBackground(func() {
			if err := d.metrics.Serve(runCtx, addr, d.logger.With("component", "metrics")); err != nil {
				d.logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		})
	}
	if d.cfg.Config.ReconcileInterval > 0 {
		d.goBackground(func() { d.reconciler.Run(runCtx) })
	}

	d.logger.Info("autumn daemon running", "socket", d.server.SocketPath())
	err := d.loop.Run(runCtx)

	d.server.Stop()
	cancel()
	d.bg.Wait()
	d.shutdown()
	d.logger.Info("autumn daemon stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RequestReload schedules a reload on the loop without waiting for it.
func (d *Daemon) RequestReload() {
	d.loop.Post(func() { _ = d.reload() })
}

func (d *Daemon) goBackground(fn func()) {
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		fn()
	}()
}

// shutdown releases everything the loop owned. The loop is stopped, so it
// runs on the caller's goroutine.
func (d *Daemon) shutdown() {
	d.unbindReloadHotkey()
	d.host.Stop()
	d.desktop.Teardown()
}

func (d *Daemon) rebindReloadHotkey() {
	seq := d.cfg.Config.ReloadHotkey
	if d.hotkeys == nil || seq == d.reloadSeq {
		return
	}
	d.unbindReloadHotkey()
	if seq == "" {
		return
	}
	tok, err := d.hotkeys.BindHotkey(seq, func() { _ = d.reload() })
	if err != nil {
		d.logger.Warn("failed to register reload hotkey", "hotkey", seq, "error", err)
		return
	}
	d.reloadSeq, d.reloadTok = seq, tok
	d.logger.Info("reload hotkey registered", "hotkey", seq)
}

func (d *Daemon) unbindReloadHotkey() {
	if d.reloadSeq == "" {
		return
	}
	if err := d.hotkeys.UnbindHotkey(d.reloadTok); err != nil {
		d.logger.Debug("reload hotkey unbind failed", "error", err)
	}
	d.reloadSeq, d.reloadTok = "", 0
}

// loopBinder delivers hotkey presses as loop tasks, since binders invoke
// handlers on their own event goroutine.
type loopBinder struct {
	binder platform.HotkeyBinder
	loop   *runloop.Loop
}

func (b loopBinder) BindHotkey(sequence string, fn func()) (platform.Token, error) {
	return b.binder.BindHotkey(sequence, func() { b.loop.Post(fn) })
}

func (b loopBinder) UnbindHotkey(tok platform.Token) error {
	return b.binder.UnbindHotkey(tok)
}
