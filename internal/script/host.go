// Package script embeds a JavaScript runtime that exposes the desktop graph,
// the grid engine and global hotkeys to a user script.
//
// A Host is confined to the coordination loop: evaluation, callbacks and
// Stop must all run there.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/grid"
	"github.com/1broseidon/autumn/internal/platform"
	"github.com/dop251/goja"
)

// DefaultTimeout bounds one evaluation or callback when no timeout is set.
const DefaultTimeout = 5 * time.Second

// ErrNotRunning is returned by Eval when no script runtime is active.
var ErrNotRunning = errors.New("script runtime not running")

// module is one script-visible global. start installs it into a fresh
// runtime; stop clears every reference it holds into that runtime.
type module interface {
	name() string
	start(h *Host) error
	stop()
}

// Host owns the JavaScript runtime and the script-visible modules.
type Host struct {
	desktop *desktop.Desktop
	grid    *grid.Manager
	hotkeys platform.HotkeyBinder
	logger  *slog.Logger
	timeout time.Duration

	vm      *goja.Runtime
	modules []module
	apps    *appModule
	windows *windowModule
	screens *screenModule
	running bool
	path    string

	alerts func(string)
}

// Option configures a Host.
type Option func(*Host)

// WithTimeout sets the interrupt deadline for evaluations and callbacks.
func WithTimeout(d time.Duration) Option {
	return func(h *Host) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithHotkeys enables the Hotkey global.
func WithHotkeys(b platform.HotkeyBinder) Option {
	return func(h *Host) { h.hotkeys = b }
}

// WithAlertSink receives every alert() message in addition to the log.
func WithAlertSink(fn func(string)) Option {
	return func(h *Host) { h.alerts = fn }
}

// New creates a stopped host.
func New(d *desktop.Desktop, gm *grid.Manager, logger *slog.Logger, opts ...Option) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Host{
		desktop: d,
		grid:    gm,
		logger:  logger,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetTimeout changes the interrupt deadline for later evaluations.
func (h *Host) SetTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

// Running reports whether a runtime is active.
func (h *Host) Running() bool { return h.running }

// Path returns the file last passed to LoadFile.
func (h *Host) Path() string { return h.path }

// Start creates a runtime and installs every module.
func (h *Host) Start() error {
	if h.running {
		return nil
	}
	h.vm = goja.New()

	h.apps = &appModule{}
	h.windows = &windowModule{}
	h.screens = &screenModule{}
	h.modules = []module{
		&consoleModule{},
		h.apps,
		h.windows,
		h.screens,
		&gridModule{},
	}
	if h.hotkeys != nil {
		h.modules = append(h.modules, &hotkeyModule{})
	}

	for _, m := range h.modules {
		if err := m.start(h); err != nil {
			h.Stop()
			return fmt.Errorf("start %s module: %w", m.name(), err)
		}
	}

	h.desktop.SetHooks(desktop.Hooks{
		AppLaunched:   h.apps.launched,
		AppTerminated: h.apps.terminated,
		WindowOpened:  h.windows.opened,
		WindowClosed:  h.windows.closed,
	})
	h.desktop.Screens().SetOnChanged(h.screens.changed)
	h.running = true
	return nil
}

// Stop clears every callback slot the script installed, releases hotkeys and
// drops the runtime.
func (h *Host) Stop() {
	h.desktop.SetHooks(desktop.Hooks{})
	h.desktop.Screens().SetOnChanged(nil)
	for i := len(h.modules) - 1; i >= 0; i-- {
		h.modules[i].stop()
	}
	h.modules = nil
	h.apps, h.windows, h.screens = nil, nil, nil
	h.vm = nil
	h.running = false
}

// LoadFile starts the runtime if needed and evaluates the file at path.
func (h *Host) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	h.path = path
	if err := h.Start(); err != nil {
		return err
	}
	if _, err := h.run(path, string(src)); err != nil {
		return err
	}
	h.logger.Info("script loaded", "path", path)
	return nil
}

// Reload drops the runtime and evaluates the last loaded file again.
func (h *Host) Reload() error {
	h.Stop()
	if h.path == "" {
		return h.Start()
	}
	return h.LoadFile(h.path)
}

// Eval evaluates src in the running runtime and exports its completion value.
func (h *Host) Eval(src string) (any, error) {
	if !h.running {
		return nil, ErrNotRunning
	}
	val, err := h.run("<eval>", src)
	if err != nil {
		return nil, err
	}
	return jsonSafe(val), nil
}

func (h *Host) run(name, src string) (goja.Value, error) {
	var val goja.Value
	err := h.guard(func() error {
		var err error
		val, err = h.vm.RunScript(name, src)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

// guard runs fn with the interrupt deadline armed.
func (h *Host) guard(fn func() error) error {
	vm := h.vm
	timer := time.AfterFunc(h.timeout, func() {
		vm.Interrupt("execution timeout exceeded")
	})
	err := fn()
	timer.Stop()
	vm.ClearInterrupt()
	return err
}

// call invokes a script callback. Exceptions are logged and swallowed so a
// faulty callback cannot take down the loop.
func (h *Host) call(what string, fn goja.Callable, args ...goja.Value) {
	if fn == nil || h.vm == nil {
		return
	}
	err := h.guard(func() error {
		_, err := fn(goja.Undefined(), args...)
		return err
	})
	if err != nil {
		h.logger.Warn("script callback failed", "callback", what, "error", err)
	}
}

// commandResult maps a command outcome to the JS boolean scripts see.
func (h *Host) commandResult(op string, err error) goja.Value {
	if err != nil {
		h.logger.Debug("script command failed", "command", op, "error", err)
		return h.vm.ToValue(false)
	}
	return h.vm.ToValue(true)
}

func (h *Host) alert(msg string) {
	h.logger.Info("alert", "message", msg)
	if h.alerts != nil {
		h.alerts(msg)
	}
}

func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// jsonSafe exports val, falling back to its string form for values that
// cannot be encoded, such as entity wrappers carrying methods.
func jsonSafe(val goja.Value) any {
	v := exportValue(val)
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return val.String()
	}
	return v
}
