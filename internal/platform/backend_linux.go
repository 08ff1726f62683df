//go:build linux

package platform

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/1broseidon/autumn/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/prometheus/procfs"
)

type clientWindow struct {
	pid       int
	frame     x11.Geometry
	minimized bool
}

type clientApp struct {
	windows []xproto.Window
	hidden  bool
}

type linuxObserver struct {
	el Element
	n  Notification
	fn func(Element)
}

type pendingEvent struct {
	el     Element
	n      Notification
	target Element
}

// LinuxBackend exposes an EWMH-compliant X11 session as a Backend. Processes
// are discovered through _NET_WM_PID of the managed client windows.
type LinuxBackend struct {
	conn   *x11.Connection
	proc   procfs.FS
	logger *slog.Logger

	mu        sync.Mutex
	nextToken Token
	observers map[Token]linuxObserver
	clients   map[xproto.Window]*clientWindow
	apps      map[int]*clientApp
	started   bool
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection, logger *slog.Logger) (*LinuxBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &LinuxBackend{
		conn:      conn,
		proc:      fs,
		logger:    logger,
		observers: make(map[Token]linuxObserver),
		clients:   make(map[xproto.Window]*clientWindow),
		apps:      make(map[int]*clientApp),
	}, nil
}

// NewLinuxBackendFromDisplay creates a new Linux backend by opening a fresh X11 connection.
func NewLinuxBackendFromDisplay(display string, logger *slog.Logger) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	b, err := NewLinuxBackend(conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// Start subscribes to root window and RandR events and takes the first
// snapshot of the client list. It must be called before EventLoop.
func (b *LinuxBackend) Start() error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	if err := b.conn.WatchRoot(b.handleRootProperty); err != nil {
		return err
	}
	if err := b.conn.WatchScreens(b.screensChanged); err != nil {
		b.logger.Warn("randr notifications unavailable", "error", err)
	}
	b.refreshClients(false)
	return nil
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	b.conn.EventLoop()
}

// Stop makes EventLoop return.
func (b *LinuxBackend) Stop() {
	b.conn.Quit()
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	b.conn.Close()
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	return b.conn.Root
}

func (b *LinuxBackend) handleRootProperty(atom string) {
	switch atom {
	case "_NET_CLIENT_LIST":
		b.refreshClients(true)
	case "_NET_WORKAREA":
		b.screensChanged()
	}
}

func (b *LinuxBackend) screensChanged() {
	b.fire([]pendingEvent{{el: SystemElement, n: NotifyScreensChanged}})
}

// refreshClients diffs _NET_CLIENT_LIST against the known windows. A process
// appears with its first window and disappears with its last one.
func (b *LinuxBackend) refreshClients(notify bool) {
	list, err := b.conn.ClientList()
	if err != nil {
		b.logger.Debug("client list query failed", "error", err)
		return
	}

	type candidate struct {
		id        xproto.Window
		pid       int
		geom      x11.Geometry
		minimized bool
	}
	current := make(map[xproto.Window]struct{}, len(list))
	var fresh []candidate

	b.mu.Lock()
	known := make(map[xproto.Window]bool, len(b.clients))
	for win := range b.clients {
		known[win] = true
	}
	b.mu.Unlock()

	for _, win := range list {
		current[win] = struct{}{}
		if known[win] {
			continue
		}
		if !b.conn.IsNormalWindow(win) {
			continue
		}
		pid := b.conn.WindowPID(win)
		if pid <= 0 {
			continue
		}
		geom, err := b.conn.WindowGeometry(win)
		if err != nil {
			continue
		}
		fresh = append(fresh, candidate{id: win, pid: pid, geom: geom, minimized: b.conn.IsMinimized(win)})
	}

	var (
		events  []pendingEvent
		watch   []xproto.Window
		unwatch []xproto.Window
	)

	b.mu.Lock()
	for win, cw := range b.clients {
		if _, ok := current[win]; ok {
			continue
		}
		delete(b.clients, win)
		unwatch = append(unwatch, win)
		events = append(events, pendingEvent{el: windowElement(win), n: NotifyWindowDestroyed, target: windowElement(win)})
		if app := b.apps[cw.pid]; app != nil {
			app.windows = removeWindow(app.windows, win)
		}
	}

	launched := make(map[int]bool)
	for _, c := range fresh {
		if _, dup := b.clients[c.id]; dup {
			continue
		}
		b.clients[c.id] = &clientWindow{pid: c.pid, frame: c.geom, minimized: c.minimized}
		watch = append(watch, c.id)
		app := b.apps[c.pid]
		if app == nil {
			app = &clientApp{}
			b.apps[c.pid] = app
			launched[c.pid] = true
			events = append(events, pendingEvent{el: SystemElement, n: NotifyAppLaunched, target: appElement(c.pid)})
		}
		app.windows = append(app.windows, c.id)
		if !launched[c.pid] {
			events = append(events, pendingEvent{el: appElement(c.pid), n: NotifyWindowCreated, target: windowElement(c.id)})
		}
	}

	pids := make([]int, 0, len(b.apps))
	for pid := range b.apps {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	for _, pid := range pids {
		app := b.apps[pid]
		if len(app.windows) > 0 {
			app.hidden = b.allMinimizedLocked(app)
			continue
		}
		delete(b.apps, pid)
		events = append(events, pendingEvent{el: SystemElement, n: NotifyAppTerminated, target: appElement(pid)})
	}
	b.mu.Unlock()

	for _, win := range unwatch {
		b.conn.UnwatchWindow(win)
	}
	for _, win := range watch {
		b.watchWindow(win)
	}
	if notify {
		b.fire(events)
	}
}

func (b *LinuxBackend) watchWindow(win xproto.Window) {
	err := b.conn.WatchWindow(win, x11.WindowHandlers{
		Property:  func(atom string) { b.handleWindowProperty(win, atom) },
		Configure: func() { b.handleConfigure(win) },
		Destroy:   func() { b.refreshClients(true) },
	})
	if err != nil {
		b.logger.Debug("watch window failed", "window", win, "error", err)
	}
}

func (b *LinuxBackend) handleConfigure(win xproto.Window) {
	geom, err := b.conn.WindowGeometry(win)
	if err != nil {
		return
	}

	b.mu.Lock()
	cw := b.clients[win]
	if cw == nil {
		b.mu.Unlock()
		return
	}
	prev := cw.frame
	cw.frame = geom
	b.mu.Unlock()

	el := windowElement(win)
	var events []pendingEvent
	if prev.X != geom.X || prev.Y != geom.Y {
		events = append(events, pendingEvent{el: el, n: NotifyWindowMoved, target: el})
	}
	if prev.Width != geom.Width || prev.Height != geom.Height {
		events = append(events, pendingEvent{el: el, n: NotifyWindowResized, target: el})
	}
	b.fire(events)
}

func (b *LinuxBackend) handleWindowProperty(win xproto.Window, atom string) {
	el := windowElement(win)
	switch atom {
	case "_NET_WM_NAME", "WM_NAME":
		b.fire([]pendingEvent{{el: el, n: NotifyTitleChanged, target: el}})
	case "_NET_WM_STATE", "WM_STATE":
		minimized := b.conn.IsMinimized(win)

		b.mu.Lock()
		cw := b.clients[win]
		if cw == nil || cw.minimized == minimized {
			b.mu.Unlock()
			return
		}
		cw.minimized = minimized
		var events []pendingEvent
		if minimized {
			events = append(events, pendingEvent{el: el, n: NotifyWindowMinimized, target: el})
		} else {
			events = append(events, pendingEvent{el: el, n: NotifyWindowDeminimized, target: el})
		}
		if app := b.apps[cw.pid]; app != nil {
			hidden := b.allMinimizedLocked(app)
			if hidden != app.hidden {
				app.hidden = hidden
				n := NotifyAppShown
				if hidden {
					n = NotifyAppHidden
				}
				events = append(events, pendingEvent{el: appElement(cw.pid), n: n, target: appElement(cw.pid)})
			}
		}
		b.mu.Unlock()
		b.fire(events)
	}
}

func (b *LinuxBackend) allMinimizedLocked(app *clientApp) bool {
	if len(app.windows) == 0 {
		return false
	}
	for _, win := range app.windows {
		if cw := b.clients[win]; cw != nil && !cw.minimized {
			return false
		}
	}
	return true
}

func (b *LinuxBackend) fire(events []pendingEvent) {
	for _, ev := range events {
		b.mu.Lock()
		tokens := make([]Token, 0, len(b.observers))
		for tok, o := range b.observers {
			if o.el == ev.el && o.n == ev.n {
				tokens = append(tokens, tok)
			}
		}
		sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
		handlers := make([]func(Element), 0, len(tokens))
		for _, tok := range tokens {
			handlers = append(handlers, b.observers[tok].fn)
		}
		b.mu.Unlock()

		for _, fn := range handlers {
			fn(ev.target)
		}
	}
}

// Observe registers fn for notification n on el.
func (b *LinuxBackend) Observe(el Element, n Notification, fn func(Element)) (Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case isAppElement(el):
		if b.apps[pidOf(el)] == nil {
			return 0, fmt.Errorf("%w: app %d", ErrStale, pidOf(el))
		}
	case isWindowElement(el):
		if b.clients[windowOf(el)] == nil {
			return 0, fmt.Errorf("%w: window %d", ErrStale, windowOf(el))
		}
	}
	b.nextToken++
	b.observers[b.nextToken] = linuxObserver{el: el, n: n, fn: fn}
	return b.nextToken, nil
}

// Unobserve removes a registration. Unknown tokens are ignored.
func (b *LinuxBackend) Unobserve(tok Token) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, tok)
	return nil
}

// RunningApps lists every process owning at least one managed window.
func (b *LinuxBackend) RunningApps() ([]ProcessInfo, error) {
	b.mu.Lock()
	pids := make([]int, 0, len(b.apps))
	for pid := range b.apps {
		pids = append(pids, pid)
	}
	b.mu.Unlock()
	sort.Ints(pids)

	infos := make([]ProcessInfo, 0, len(pids))
	for _, pid := range pids {
		info, err := b.AppInfo(appElement(pid))
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// AppInfo describes the process behind an app element. The WM_CLASS class of
// its first window doubles as bundle identifier.
func (b *LinuxBackend) AppInfo(el Element) (ProcessInfo, error) {
	if !isAppElement(el) {
		return ProcessInfo{}, fmt.Errorf("%w: element %d is not an application", ErrStale, el)
	}
	pid := pidOf(el)

	b.mu.Lock()
	app := b.apps[pid]
	var (
		first  xproto.Window
		hidden bool
	)
	if app != nil {
		hidden = app.hidden
		if len(app.windows) > 0 {
			first = app.windows[0]
		}
	}
	b.mu.Unlock()
	if app == nil {
		return ProcessInfo{}, fmt.Errorf("%w: app %d", ErrStale, pid)
	}

	info := ProcessInfo{PID: pid, Element: el, Kind: AppKindStandard, Hidden: hidden}
	if first != 0 {
		if _, class, err := b.conn.WindowClass(first); err == nil && class != "" {
			info.Name = class
			info.BundleID = strings.ToLower(class)
		}
	}
	if info.Name == "" {
		info.Name = processName(b.proc, pid)
	}
	if info.Name == "" {
		info.Name = fmt.Sprintf("pid-%d", pid)
	}
	return info, nil
}

// WindowElements lists the app's windows in discovery order.
func (b *LinuxBackend) WindowElements(app Element) ([]Element, error) {
	wins, err := b.appWindows(app)
	if err != nil {
		return nil, err
	}
	els := make([]Element, 0, len(wins))
	for _, win := range wins {
		els = append(els, windowElement(win))
	}
	return els, nil
}

func (b *LinuxBackend) appWindows(el Element) ([]xproto.Window, error) {
	if !isAppElement(el) {
		return nil, fmt.Errorf("%w: element %d is not an application", ErrStale, el)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	app := b.apps[pidOf(el)]
	if app == nil {
		return nil, fmt.Errorf("%w: app %d", ErrStale, pidOf(el))
	}
	return append([]xproto.Window(nil), app.windows...), nil
}

// FocusedWindow returns the _NET_ACTIVE_WINDOW, or 0 when none is set.
func (b *LinuxBackend) FocusedWindow() (Element, error) {
	win, err := b.conn.GetActiveWindow()
	if err != nil {
		return 0, fmt.Errorf("%w: active window: %v", ErrTransport, err)
	}
	return windowElement(win), nil
}

// ActivateApp focuses the app's first window, restoring it when minimized.
// With allWindows every window is restored and raised.
func (b *LinuxBackend) ActivateApp(app Element, allWindows bool) error {
	wins, err := b.appWindows(app)
	if err != nil {
		return err
	}
	if len(wins) == 0 {
		return nil
	}
	targets := wins[:1]
	if allWindows {
		targets = wins
	}
	// Raise in reverse so the first window ends up on top.
	for i := len(targets) - 1; i >= 0; i-- {
		win := targets[i]
		if b.conn.IsMinimized(win) {
			if err := b.conn.Unminimize(win); err != nil {
				return b.windowErr(win, err)
			}
			continue
		}
		if err := b.conn.FocusWindow(win); err != nil {
			return b.windowErr(win, err)
		}
	}
	return nil
}

// HideApp minimizes every window of the app.
func (b *LinuxBackend) HideApp(app Element) error {
	wins, err := b.appWindows(app)
	if err != nil {
		return err
	}
	for _, win := range wins {
		if err := b.conn.Minimize(win); err != nil {
			return b.windowErr(win, err)
		}
	}
	return nil
}

// UnhideApp restores every minimized window of the app.
func (b *LinuxBackend) UnhideApp(app Element) error {
	wins, err := b.appWindows(app)
	if err != nil {
		return err
	}
	for _, win := range wins {
		if !b.conn.IsMinimized(win) {
			continue
		}
		if err := b.conn.Unminimize(win); err != nil {
			return b.windowErr(win, err)
		}
	}
	return nil
}

// QuitApp sends SIGTERM, or SIGKILL when forced.
func (b *LinuxBackend) QuitApp(app Element, force bool) error {
	if _, err := b.appWindows(app); err != nil {
		return err
	}
	return signalProcess(pidOf(app), force)
}

// AppUnresponsive reports stopped and zombie processes.
func (b *LinuxBackend) AppUnresponsive(app Element) (bool, error) {
	if !isAppElement(app) {
		return false, fmt.Errorf("%w: element %d is not an application", ErrStale, app)
	}
	state, err := processState(b.proc, pidOf(app))
	if err != nil {
		return false, err
	}
	return stoppedState(state), nil
}

func (b *LinuxBackend) client(el Element) (xproto.Window, error) {
	if !isWindowElement(el) {
		return 0, fmt.Errorf("%w: element %d is not a window", ErrStale, el)
	}
	win := windowOf(el)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clients[win] == nil {
		return 0, fmt.Errorf("%w: window %d", ErrStale, win)
	}
	return win, nil
}

// windowErr classifies a failed X request. A window that dropped out of the
// client list is stale; anything else is a transport failure.
func (b *LinuxBackend) windowErr(win xproto.Window, err error) error {
	b.mu.Lock()
	_, known := b.clients[win]
	b.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: window %d: %v", ErrStale, win, err)
	}
	return fmt.Errorf("%w: window %d: %v", ErrTransport, win, err)
}

func (b *LinuxBackend) WindowTitle(el Element) (string, error) {
	win, err := b.client(el)
	if err != nil {
		return "", err
	}
	title, err := b.conn.WindowTitle(win)
	if err != nil {
		return "", b.windowErr(win, err)
	}
	return title, nil
}

func (b *LinuxBackend) WindowFrame(el Element) (Rect, error) {
	win, err := b.client(el)
	if err != nil {
		return Rect{}, err
	}
	geom, err := b.conn.WindowGeometry(win)
	if err != nil {
		return Rect{}, b.windowErr(win, err)
	}
	return Rect{X: geom.X, Y: geom.Y, Width: geom.Width, Height: geom.Height}, nil
}

func (b *LinuxBackend) SetWindowFrame(el Element, bounds Rect) error {
	win, err := b.client(el)
	if err != nil {
		return err
	}
	if err := b.conn.MoveResizeWindow(win, bounds.X, bounds.Y, bounds.Width, bounds.Height); err != nil {
		return b.windowErr(win, err)
	}
	return nil
}

// WindowState reports the EWMH state of a window. The first non-dialog
// window of an application counts as its main window.
func (b *LinuxBackend) WindowState(el Element) (WindowState, error) {
	win, err := b.client(el)
	if err != nil {
		return WindowState{}, err
	}
	states, err := b.conn.WindowStates(win)
	if err != nil {
		states = nil
	}
	st := WindowState{Normal: !b.conn.IsDialog(win)}
	for _, s := range states {
		switch s {
		case "_NET_WM_STATE_HIDDEN":
			st.Minimized = true
		case "_NET_WM_STATE_FULLSCREEN":
			st.FullScreen = true
		}
	}
	if !st.Minimized {
		st.Minimized = b.conn.IsMinimized(win)
	}

	b.mu.Lock()
	var siblings []xproto.Window
	if cw := b.clients[win]; cw != nil {
		if app := b.apps[cw.pid]; app != nil {
			siblings = append(siblings, app.windows...)
		}
	}
	b.mu.Unlock()
	for _, sib := range siblings {
		if sib == win {
			st.Main = st.Normal
			break
		}
		if !b.conn.IsDialog(sib) {
			break
		}
	}
	return st, nil
}

func (b *LinuxBackend) FocusWindow(el Element) error {
	win, err := b.client(el)
	if err != nil {
		return err
	}
	if err := b.conn.FocusWindow(win); err != nil {
		return b.windowErr(win, err)
	}
	return nil
}

func (b *LinuxBackend) CloseWindow(el Element) error {
	win, err := b.client(el)
	if err != nil {
		return err
	}
	if err := b.conn.CloseWindow(win); err != nil {
		return b.windowErr(win, err)
	}
	return nil
}

func (b *LinuxBackend) MinimizeWindow(el Element) error {
	win, err := b.client(el)
	if err != nil {
		return err
	}
	if err := b.conn.Minimize(win); err != nil {
		return b.windowErr(win, err)
	}
	return nil
}

func (b *LinuxBackend) UnminimizeWindow(el Element) error {
	win, err := b.client(el)
	if err != nil {
		return err
	}
	if err := b.conn.Unminimize(win); err != nil {
		return b.windowErr(win, err)
	}
	return nil
}

func (b *LinuxBackend) SetFullScreen(el Element, fullScreen bool) error {
	win, err := b.client(el)
	if err != nil {
		return err
	}
	if err := b.conn.SetFullScreen(win, fullScreen); err != nil {
		return b.windowErr(win, err)
	}
	return nil
}

// Displays returns all active displays in RandR CRTC order.
func (b *LinuxBackend) Displays() ([]Display, error) {
	monitors, err := b.conn.GetMonitors()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, displayFromMonitor(m, b.conn.UsableArea(m)))
	}
	return displays, nil
}

func displayFromMonitor(m, usable x11.Monitor) Display {
	return Display{
		Handle: displayElement(m.ID),
		Name:   m.Name,
		Bounds: Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
		Usable: Rect{X: usable.X, Y: usable.Y, Width: usable.Width, Height: usable.Height},
	}
}

func removeWindow(list []xproto.Window, win xproto.Window) []xproto.Window {
	for i, w := range list {
		if w == win {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
