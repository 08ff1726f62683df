package platform

import "errors"

// Element is an opaque native handle for an application, window or display.
// The core never owns the object behind it; it may stop being valid at any time.
type Element uint64

// SystemElement is the element process-wide notifications are observed on
// (application launch/termination, display reconfiguration).
const SystemElement Element = 0

var (
	// ErrStale reports that the native object behind an element no longer exists.
	ErrStale = errors.New("stale native handle")
	// ErrTransport reports that a call into another process failed or timed out.
	ErrTransport = errors.New("accessibility transport failure")
)

// Notification names a semantic OS event.
type Notification string

const (
	NotifyAppLaunched       Notification = "app_launched"
	NotifyAppTerminated     Notification = "app_terminated"
	NotifyAppHidden         Notification = "app_hidden"
	NotifyAppShown          Notification = "app_shown"
	NotifyWindowCreated     Notification = "window_created"
	NotifyWindowDestroyed   Notification = "window_destroyed"
	NotifyWindowMoved       Notification = "window_moved"
	NotifyWindowResized     Notification = "window_resized"
	NotifyWindowMinimized   Notification = "window_minimized"
	NotifyWindowDeminimized Notification = "window_deminimized"
	NotifyTitleChanged      Notification = "title_changed"
	NotifyScreensChanged    Notification = "screens_changed"
)

// AppKind classifies a process by how it presents itself to the user.
type AppKind string

const (
	AppKindStandard   AppKind = "standard"
	AppKindBackground AppKind = "background"
	AppKindUIElement  AppKind = "ui-element"
	AppKindDaemon     AppKind = "daemon"
)

// ProcessInfo describes a running process that may be an automation target.
type ProcessInfo struct {
	PID      int
	Element  Element
	Name     string
	BundleID string
	Kind     AppKind
	Hidden   bool
}

// Display describes a physical display and its usable work area.
type Display struct {
	Handle Element
	Name   string
	Bounds Rect
	Usable Rect
}

// WindowState holds the boolean attributes of a window.
type WindowState struct {
	Minimized  bool
	FullScreen bool
	Main       bool
	Normal     bool
}

// Token identifies one registration with an EventSource.
type Token uint64

// EventSource delivers element-scoped notifications. Handlers may be invoked
// on any goroutine; callers are responsible for moving work to their own
// execution context.
type EventSource interface {
	Observe(el Element, n Notification, fn func(Element)) (Token, error)
	Unobserve(tok Token) error
}

// Backend abstracts the accessibility layer the desktop graph is built from.
type Backend interface {
	EventSource

	RunningApps() ([]ProcessInfo, error)
	AppInfo(el Element) (ProcessInfo, error)
	WindowElements(app Element) ([]Element, error)
	FocusedWindow() (Element, error)

	ActivateApp(app Element, allWindows bool) error
	HideApp(app Element) error
	UnhideApp(app Element) error
	QuitApp(app Element, force bool) error
	AppUnresponsive(app Element) (bool, error)

	WindowTitle(win Element) (string, error)
	WindowFrame(win Element) (Rect, error)
	SetWindowFrame(win Element, bounds Rect) error
	WindowState(win Element) (WindowState, error)
	FocusWindow(win Element) error
	CloseWindow(win Element) error
	MinimizeWindow(win Element) error
	UnminimizeWindow(win Element) error
	SetFullScreen(win Element, fullScreen bool) error

	Displays() ([]Display, error)
}

// HotkeyBinder is implemented by backends that can grab global key sequences.
type HotkeyBinder interface {
	BindHotkey(sequence string, fn func()) (Token, error)
	UnbindHotkey(tok Token) error
}
