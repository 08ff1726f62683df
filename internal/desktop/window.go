package desktop

import (
	"fmt"
	"math"

	"github.com/1broseidon/autumn/internal/observer"
	"github.com/1broseidon/autumn/internal/platform"
)

// WindowEvent names a per-window callback slot.
type WindowEvent string

const (
	EventClosed       WindowEvent = "closed"
	EventMoved        WindowEvent = "moved"
	EventResized      WindowEvent = "resized"
	EventMinimized    WindowEvent = "minimized"
	EventUnminimized  WindowEvent = "unminimized"
	EventTitleChanged WindowEvent = "title_changed"
)

// WindowEvents lists every callback slot.
var WindowEvents = []WindowEvent{
	EventClosed, EventMoved, EventResized, EventMinimized, EventUnminimized, EventTitleChanged,
}

// UnitRect is a rectangle expressed as fractions of a screen's inner frame.
type UnitRect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Window is one on-screen window of an App.
type Window struct {
	d       *Desktop
	id      uint64
	element platform.Element
	owner   int

	title      string
	frame      platform.Rect
	minimized  bool
	fullScreen bool
	main       bool
	normal     bool
	closed     bool

	observers observer.Set
	callbacks map[WindowEvent]func(*Window)
}

func (w *Window) ID() uint64                { return w.id }
func (w *Window) Element() platform.Element { return w.element }
func (w *Window) PID() int                  { return w.owner }
func (w *Window) Title() string             { return w.title }
func (w *Window) Frame() platform.Rect      { return w.frame }
func (w *Window) Position() platform.Point  { return w.frame.Position() }
func (w *Window) Size() platform.Size       { return w.frame.Size() }
func (w *Window) IsMinimized() bool         { return w.minimized }
func (w *Window) IsFullScreen() bool        { return w.fullScreen }
func (w *Window) IsMainWindow() bool        { return w.main }
func (w *Window) IsNormal() bool            { return w.normal }
func (w *Window) IsClosed() bool            { return w.closed }

// App resolves the owning App through the registry. It returns nil once the
// App is gone.
func (w *Window) App() *App { return w.d.apps.AppForProcess(w.owner) }

// IsVisible reports whether the window is neither minimized nor hidden along
// with its App.
func (w *Window) IsVisible() bool {
	if w.closed || w.minimized {
		return false
	}
	if app := w.App(); app != nil && app.hidden {
		return false
	}
	return true
}

// IsFocused reports whether the window holds input focus.
func (w *Window) IsFocused() bool {
	return w.d.FocusedWindow() == w
}

// Screen returns the screen containing the largest part of the window, or nil.
func (w *Window) Screen() *Screen {
	return w.d.screens.ForRect(w.frame)
}

// SetCallback installs fn for ev, replacing any previous callback. A nil fn
// clears the slot.
func (w *Window) SetCallback(ev WindowEvent, fn func(*Window)) {
	if w.closed {
		return
	}
	if fn == nil {
		delete(w.callbacks, ev)
		return
	}
	if w.callbacks == nil {
		w.callbacks = make(map[WindowEvent]func(*Window))
	}
	w.callbacks[ev] = fn
}

// Callback returns the callback installed for ev, or nil.
func (w *Window) Callback(ev WindowEvent) func(*Window) { return w.callbacks[ev] }

func (w *Window) fire(ev WindowEvent) {
	if fn := w.callbacks[ev]; fn != nil {
		fn(w)
	}
}

func (w *Window) check(op string) error {
	if w.closed || w.d.windows.ByID(w.id) != w {
		return w.d.failed(op, fmt.Errorf("window %d: %w", w.id, platform.ErrStale))
	}
	return nil
}

// SetFrame requests a new frame. The cached frame is updated optimistically;
// the confirming move/resize notification refreshes it from the platform.
func (w *Window) SetFrame(r platform.Rect) error {
	if err := w.check("window.set_frame"); err != nil {
		return err
	}
	if err := w.d.backend.SetWindowFrame(w.element, r); err != nil {
		return w.d.failed("window.set_frame", fmt.Errorf("set frame of window %d: %w", w.id, err))
	}
	w.frame = r
	return nil
}

func (w *Window) SetPosition(p platform.Point) error {
	r := w.frame
	r.X, r.Y = p.X, p.Y
	return w.SetFrame(r)
}

func (w *Window) SetSize(s platform.Size) error {
	r := w.frame
	r.Width, r.Height = s.Width, s.Height
	return w.SetFrame(r)
}

// SetCenterPoint moves the window so its center lands on p.
func (w *Window) SetCenterPoint(p platform.Point) error {
	r := w.frame
	r.X = p.X - r.Width/2
	r.Y = p.Y - r.Height/2
	return w.SetFrame(r)
}

// CenterOnScreen centers the window within its screen's inner frame.
func (w *Window) CenterOnScreen() error {
	inner, err := w.innerFrame("window.center")
	if err != nil {
		return err
	}
	return w.SetCenterPoint(inner.Center())
}

// Maximize fills the screen's inner frame.
func (w *Window) Maximize() error {
	inner, err := w.innerFrame("window.maximize")
	if err != nil {
		return err
	}
	return w.SetFrame(inner)
}

// MoveToUnitRect places the window at a fraction of its screen's inner frame.
func (w *Window) MoveToUnitRect(u UnitRect) error {
	if u.Width <= 0 || u.Height <= 0 || u.X < 0 || u.Y < 0 || u.X+u.Width > 1 || u.Y+u.Height > 1 {
		return fmt.Errorf("unit rect %+v outside [0,1]", u)
	}
	inner, err := w.innerFrame("window.move_to_unit")
	if err != nil {
		return err
	}
	x := float64(inner.X) + u.X*float64(inner.Width)
	y := float64(inner.Y) + u.Y*float64(inner.Height)
	return w.SetFrame(platform.Rect{
		X:      int(math.Floor(x + 0.5)),
		Y:      int(math.Floor(y + 0.5)),
		Width:  int(math.Floor(u.Width*float64(inner.Width) + 0.5)),
		Height: int(math.Floor(u.Height*float64(inner.Height) + 0.5)),
	})
}

func (w *Window) innerFrame(op string) (platform.Rect, error) {
	if err := w.check(op); err != nil {
		return platform.Rect{}, err
	}
	s := w.Screen()
	if s == nil {
		return platform.Rect{}, w.d.failed(op, fmt.Errorf("window %d: %w", w.id, ErrNoScreen))
	}
	return s.InnerFrame()
}

// Focus raises the window and gives it input focus.
func (w *Window) Focus() error {
	if err := w.check("window.focus"); err != nil {
		return err
	}
	if err := w.d.backend.FocusWindow(w.element); err != nil {
		return w.d.failed("window.focus", fmt.Errorf("focus window %d: %w", w.id, err))
	}
	return nil
}

// Close asks the window to close. Removal happens when the destroy
// notification arrives.
func (w *Window) Close() error {
	if err := w.check("window.close"); err != nil {
		return err
	}
	if err := w.d.backend.CloseWindow(w.element); err != nil {
		return w.d.failed("window.close", fmt.Errorf("close window %d: %w", w.id, err))
	}
	return nil
}

func (w *Window) Minimize() error {
	if err := w.check("window.minimize"); err != nil {
		return err
	}
	if err := w.d.backend.MinimizeWindow(w.element); err != nil {
		return w.d.failed("window.minimize", fmt.Errorf("minimize window %d: %w", w.id, err))
	}
	return nil
}

func (w *Window) Unminimize() error {
	if err := w.check("window.unminimize"); err != nil {
		return err
	}
	if err := w.d.backend.UnminimizeWindow(w.element); err != nil {
		return w.d.failed("window.unminimize", fmt.Errorf("unminimize window %d: %w", w.id, err))
	}
	return nil
}

func (w *Window) SetFullScreen(fullScreen bool) error {
	if err := w.check("window.set_full_screen"); err != nil {
		return err
	}
	if err := w.d.backend.SetFullScreen(w.element, fullScreen); err != nil {
		return w.d.failed("window.set_full_screen", fmt.Errorf("set full screen on window %d: %w", w.id, err))
	}
	w.fullScreen = fullScreen
	return nil
}

// OtherWindows returns the other visible windows, optionally restricted to
// this window's screen.
func (w *Window) OtherWindows(sameScreen bool) []*Window {
	var screen *Screen
	if sameScreen {
		screen = w.Screen()
		if screen == nil {
			return nil
		}
	}
	var out []*Window
	for _, other := range w.d.windows.Visible() {
		if other == w {
			continue
		}
		if sameScreen && other.Screen() != screen {
			continue
		}
		out = append(out, other)
	}
	return out
}

// WindowsInDirection returns the visible windows whose centers lie in dir,
// nearest first.
func (w *Window) WindowsInDirection(dir Direction) []*Window {
	others := w.OtherWindows(false)
	frames := make([]platform.Rect, len(others))
	for i, o := range others {
		frames[i] = o.frame
	}
	order := rankInDirection(w.frame, frames, dir)
	out := make([]*Window, len(order))
	for i, idx := range order {
		out[i] = others[idx]
	}
	return out
}

// FocusNext focuses the nearest window in dir. It returns the focused window,
// or nil when there is none in that direction.
func (w *Window) FocusNext(dir Direction) (*Window, error) {
	candidates := w.WindowsInDirection(dir)
	if len(candidates) == 0 {
		return nil, nil
	}
	next := candidates[0]
	if err := next.Focus(); err != nil {
		return nil, err
	}
	return next, nil
}

func (w *Window) refreshFrame() {
	frame, err := w.d.backend.WindowFrame(w.element)
	if err != nil {
		w.d.logger.Debug("frame refresh failed", "window_id", w.id, "error", err)
		return
	}
	w.frame = frame
}

func (w *Window) refreshTitle() {
	title, err := w.d.backend.WindowTitle(w.element)
	if err != nil {
		w.d.logger.Debug("title refresh failed", "window_id", w.id, "error", err)
		return
	}
	w.title = title
}

func (w *Window) refreshState() {
	state, err := w.d.backend.WindowState(w.element)
	if err != nil {
		w.d.logger.Debug("state refresh failed", "window_id", w.id, "error", err)
		return
	}
	w.minimized = state.Minimized
	w.fullScreen = state.FullScreen
	w.main = state.Main
	w.normal = state.Normal
}

func (w *Window) handleDestroyed(platform.Element) {
	w.d.windows.WindowElementClosed(w.element)
}

func (w *Window) handleMoved(platform.Element) {
	w.refreshFrame()
	w.fire(EventMoved)
}

func (w *Window) handleResized(platform.Element) {
	w.refreshFrame()
	w.refreshState()
	w.fire(EventResized)
}

func (w *Window) handleMinimized(platform.Element) {
	w.minimized = true
	w.fire(EventMinimized)
}

func (w *Window) handleDeminimized(platform.Element) {
	w.minimized = false
	w.fire(EventUnminimized)
}

func (w *Window) handleTitleChanged(platform.Element) {
	w.refreshTitle()
	w.fire(EventTitleChanged)
}
