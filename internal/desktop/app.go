package desktop

import (
	"fmt"

	"github.com/1broseidon/autumn/internal/observer"
	"github.com/1broseidon/autumn/internal/platform"
)

// App is one running process exposed to automation. Its windows are always
// derived from the WindowRegistry.
type App struct {
	d        *Desktop
	pid      int
	element  platform.Element
	name     string
	bundleID string
	kind     platform.AppKind

	hidden       bool
	unresponsive bool
	terminating  bool

	observers observer.Set

	onHidden      func(*App)
	onUnhidden    func(*App)
	onTermination func(*App)
}

func newApp(d *Desktop, info platform.ProcessInfo) *App {
	return &App{
		d:        d,
		pid:      info.PID,
		element:  info.Element,
		name:     info.Name,
		bundleID: info.BundleID,
		kind:     info.Kind,
		hidden:   info.Hidden,
	}
}

func (a *App) PID() int                  { return a.pid }
func (a *App) Element() platform.Element { return a.element }
func (a *App) Name() string              { return a.name }
func (a *App) BundleID() string          { return a.bundleID }
func (a *App) Kind() platform.AppKind    { return a.kind }
func (a *App) IsHidden() bool            { return a.hidden }
func (a *App) IsTerminating() bool       { return a.terminating }

// IsRunning reports whether the App is still registered and not terminating.
func (a *App) IsRunning() bool {
	return !a.terminating && a.d.apps.AppForProcess(a.pid) == a
}

// IsUnresponsive asks the platform whether the process stopped answering and
// caches the answer. A failed query counts as unresponsive.
func (a *App) IsUnresponsive() bool {
	hung, err := a.d.backend.AppUnresponsive(a.element)
	if err != nil {
		a.unresponsive = true
		return true
	}
	a.unresponsive = hung
	return hung
}

// IsFocused reports whether the focused window belongs to this App.
func (a *App) IsFocused() bool {
	w := a.d.FocusedWindow()
	return w != nil && w.owner == a.pid
}

// Windows returns the App's windows in creation order.
func (a *App) Windows() []*Window { return a.d.windows.ForApp(a.pid) }

// VisibleWindows returns the App's windows that are neither minimized nor
// hidden with the App.
func (a *App) VisibleWindows() []*Window {
	var out []*Window
	for _, w := range a.Windows() {
		if w.IsVisible() {
			out = append(out, w)
		}
	}
	return out
}

// MainWindow returns the window the platform marks as main, falling back to
// the first window.
func (a *App) MainWindow() *Window {
	windows := a.Windows()
	for _, w := range windows {
		if w.main {
			return w
		}
	}
	if len(windows) > 0 {
		return windows[0]
	}
	return nil
}

func (a *App) check(op string) error {
	if !a.IsRunning() {
		return a.d.failed(op, fmt.Errorf("app %d: %w", a.pid, platform.ErrStale))
	}
	return nil
}

// Activate brings the App to the front, optionally raising all its windows.
func (a *App) Activate(allWindows bool) error {
	if err := a.check("app.activate"); err != nil {
		return err
	}
	if err := a.d.backend.ActivateApp(a.element, allWindows); err != nil {
		return a.d.failed("app.activate", fmt.Errorf("activate app %d: %w", a.pid, err))
	}
	return nil
}

func (a *App) Hide() error {
	if err := a.check("app.hide"); err != nil {
		return err
	}
	if err := a.d.backend.HideApp(a.element); err != nil {
		return a.d.failed("app.hide", fmt.Errorf("hide app %d: %w", a.pid, err))
	}
	return nil
}

func (a *App) Unhide() error {
	if err := a.check("app.unhide"); err != nil {
		return err
	}
	if err := a.d.backend.UnhideApp(a.element); err != nil {
		return a.d.failed("app.unhide", fmt.Errorf("unhide app %d: %w", a.pid, err))
	}
	return nil
}

// Quit asks the App to exit. Removal happens when the termination
// notification arrives.
func (a *App) Quit() error { return a.quit("app.quit", false) }

// ForceQuit kills the process.
func (a *App) ForceQuit() error { return a.quit("app.force_quit", true) }

func (a *App) quit(op string, force bool) error {
	if err := a.check(op); err != nil {
		return err
	}
	if err := a.d.backend.QuitApp(a.element, force); err != nil {
		return a.d.failed(op, fmt.Errorf("quit app %d: %w", a.pid, err))
	}
	return nil
}

// SetOnHidden installs the hidden callback; nil clears it.
func (a *App) SetOnHidden(fn func(*App))      { a.onHidden = fn }
func (a *App) SetOnUnhidden(fn func(*App))    { a.onUnhidden = fn }
func (a *App) SetOnTermination(fn func(*App)) { a.onTermination = fn }

func (a *App) clearCallbacks() {
	a.onHidden = nil
	a.onUnhidden = nil
	a.onTermination = nil
}

func (a *App) handleWindowCreated(el platform.Element) {
	if a.terminating {
		return
	}
	if a.d.windows.WindowForElement(el) != nil {
		return
	}
	w := a.d.windows.WindowElementOpened(el, a)
	if w != nil && a.d.hooks.WindowOpened != nil {
		a.d.hooks.WindowOpened(w)
	}
}

func (a *App) handleHidden(platform.Element) {
	a.hidden = true
	if a.onHidden != nil {
		a.onHidden(a)
	}
}

func (a *App) handleShown(platform.Element) {
	a.hidden = false
	if a.onUnhidden != nil {
		a.onUnhidden(a)
	}
}
