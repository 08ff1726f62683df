// Package fake provides an in-memory platform.Backend for tests. Setup
// helpers mutate the simulated desktop and fire notifications synchronously
// on the calling goroutine.
package fake

import (
	"fmt"
	"sort"
	"sync"

	"github.com/1broseidon/autumn/internal/platform"
)

type app struct {
	info    platform.ProcessInfo
	windows []platform.Element
	hung    bool
}

type window struct {
	owner     platform.Element
	title     string
	frame     platform.Rect
	minimized bool
	full      bool
	frameSets int
}

type observation struct {
	el platform.Element
	n  platform.Notification
	fn func(platform.Element)
}

// Backend is a scriptable stand-in for the native accessibility layer.
type Backend struct {
	mu sync.Mutex

	nextElement platform.Element
	nextToken   platform.Token

	apps        map[platform.Element]*app
	appOrder    []platform.Element
	unreachable []platform.ProcessInfo
	windows     map[platform.Element]*window
	displays    []platform.Display
	focused     platform.Element

	observers map[platform.Token]observation
	hotkeys   map[platform.Token]hotkey
	failures  map[platform.Element]error
}

type hotkey struct {
	sequence string
	fn       func()
}

var (
	_ platform.Backend      = (*Backend)(nil)
	_ platform.HotkeyBinder = (*Backend)(nil)
)

// New returns an empty desktop.
func New() *Backend {
	return &Backend{
		nextElement: 100,
		apps:        make(map[platform.Element]*app),
		windows:     make(map[platform.Element]*window),
		observers:   make(map[platform.Token]observation),
		hotkeys:     make(map[platform.Token]hotkey),
		failures:    make(map[platform.Element]error),
	}
}

func (b *Backend) allocLocked() platform.Element {
	b.nextElement++
	return b.nextElement
}

// AddApp registers a running process without notifying anyone, as if it was
// already running at startup.
func (b *Backend) AddApp(pid int, name string) platform.Element {
	return b.AddAppInfo(platform.ProcessInfo{PID: pid, Name: name, BundleID: name, Kind: platform.AppKindStandard})
}

// AddAppInfo is AddApp with full control over the process description. A zero
// Element is allocated.
func (b *Backend) AddAppInfo(info platform.ProcessInfo) platform.Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	if info.Element == 0 {
		info.Element = b.allocLocked()
	}
	if info.Kind == "" {
		info.Kind = platform.AppKindStandard
	}
	b.apps[info.Element] = &app{info: info}
	b.appOrder = append(b.appOrder, info.Element)
	return info.Element
}

// AddUnreachable registers a process the platform reports without a usable
// element, such as a kernel thread or a sandboxed helper.
func (b *Backend) AddUnreachable(pid int, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unreachable = append(b.unreachable, platform.ProcessInfo{PID: pid, Name: name, Kind: platform.AppKindBackground})
}

// Launch adds a process and reports it as launched.
func (b *Backend) Launch(pid int, name string) platform.Element {
	el := b.AddApp(pid, name)
	b.fire(platform.SystemElement, platform.NotifyAppLaunched, el)
	return el
}

// Terminate removes a process together with its windows and reports the
// termination. No per-window destroy notifications are sent.
func (b *Backend) Terminate(appEl platform.Element) {
	b.mu.Lock()
	a, ok := b.apps[appEl]
	if ok {
		for _, w := range a.windows {
			delete(b.windows, w)
			if b.focused == w {
				b.focused = 0
			}
		}
		delete(b.apps, appEl)
		b.appOrder = removeElement(b.appOrder, appEl)
	}
	b.mu.Unlock()
	b.fire(platform.SystemElement, platform.NotifyAppTerminated, appEl)
}

// AddWindow creates a window without notifying anyone.
func (b *Backend) AddWindow(appEl platform.Element, title string, frame platform.Rect) platform.Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.apps[appEl]
	if !ok {
		panic(fmt.Sprintf("fake: unknown app element %d", appEl))
	}
	el := b.allocLocked()
	b.windows[el] = &window{owner: appEl, title: title, frame: frame}
	a.windows = append(a.windows, el)
	return el
}

// OpenWindow creates a window and reports it on its application's element.
func (b *Backend) OpenWindow(appEl platform.Element, title string, frame platform.Rect) platform.Element {
	el := b.AddWindow(appEl, title, frame)
	b.fire(appEl, platform.NotifyWindowCreated, el)
	return el
}

// DestroyWindow removes a window and reports the destruction.
func (b *Backend) DestroyWindow(win platform.Element) {
	b.mu.Lock()
	b.removeWindowLocked(win)
	b.mu.Unlock()
	b.fire(win, platform.NotifyWindowDestroyed, win)
}

func (b *Backend) removeWindowLocked(win platform.Element) {
	w, ok := b.windows[win]
	if !ok {
		return
	}
	delete(b.windows, win)
	if a, ok := b.apps[w.owner]; ok {
		a.windows = removeElement(a.windows, win)
	}
	if b.focused == win {
		b.focused = 0
	}
}

// Emit fires a raw notification, e.g. to simulate duplicate delivery.
func (b *Backend) Emit(el platform.Element, n platform.Notification, target platform.Element) {
	b.fire(el, n, target)
}

// SetTitle changes a window title and reports it.
func (b *Backend) SetTitle(win platform.Element, title string) {
	b.mu.Lock()
	if w, ok := b.windows[win]; ok {
		w.title = title
	}
	b.mu.Unlock()
	b.fire(win, platform.NotifyTitleChanged, win)
}

// MoveWindowExternally changes a frame as if the user dragged the window.
func (b *Backend) MoveWindowExternally(win platform.Element, frame platform.Rect) {
	b.setFrame(win, frame, false)
}

// SetDisplays replaces the display list without notifying anyone.
func (b *Backend) SetDisplays(displays ...platform.Display) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.displays = append([]platform.Display(nil), displays...)
}

// Reconfigure replaces the display list and reports the change.
func (b *Backend) Reconfigure(displays ...platform.Display) {
	b.SetDisplays(displays...)
	b.fire(platform.SystemElement, platform.NotifyScreensChanged, platform.SystemElement)
}

// Fail makes every call targeting el return err until Heal is called.
func (b *Backend) Fail(el platform.Element, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[el] = err
}

func (b *Backend) Heal(el platform.Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, el)
}

// SetHung marks an application as not responding.
func (b *Backend) SetHung(appEl platform.Element, hung bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.apps[appEl]; ok {
		a.hung = hung
	}
}

// SetFocused sets the focused window without notifying anyone.
func (b *Backend) SetFocused(win platform.Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focused = win
}

// Frame returns the simulated frame of a window.
func (b *Backend) Frame(win platform.Element) platform.Rect {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[win]; ok {
		return w.frame
	}
	return platform.Rect{}
}

// FrameSets counts SetWindowFrame calls that reached a window.
func (b *Backend) FrameSets(win platform.Element) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.windows[win]; ok {
		return w.frameSets
	}
	return 0
}

// Observers returns the number of live registrations.
func (b *Backend) Observers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// PressHotkey invokes the handlers bound to sequence and reports whether any ran.
func (b *Backend) PressHotkey(sequence string) bool {
	b.mu.Lock()
	var fns []func()
	for _, tok := range sortedTokens(b.hotkeys) {
		if hk := b.hotkeys[tok]; hk.sequence == sequence {
			fns = append(fns, hk.fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns) > 0
}

func (b *Backend) fire(el platform.Element, n platform.Notification, target platform.Element) {
	b.mu.Lock()
	var fns []func(platform.Element)
	for _, tok := range sortedTokens(b.observers) {
		o := b.observers[tok]
		if o.el == el && o.n == n {
			fns = append(fns, o.fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(target)
	}
}

func (b *Backend) checkLocked(el platform.Element) error {
	if err, ok := b.failures[el]; ok {
		return err
	}
	return nil
}

func (b *Backend) appLocked(el platform.Element) (*app, error) {
	if err := b.checkLocked(el); err != nil {
		return nil, err
	}
	a, ok := b.apps[el]
	if !ok {
		return nil, fmt.Errorf("app %d: %w", el, platform.ErrStale)
	}
	return a, nil
}

func (b *Backend) windowLocked(el platform.Element) (*window, error) {
	if err := b.checkLocked(el); err != nil {
		return nil, err
	}
	w, ok := b.windows[el]
	if !ok {
		return nil, fmt.Errorf("window %d: %w", el, platform.ErrStale)
	}
	return w, nil
}

func (b *Backend) Observe(el platform.Element, n platform.Notification, fn func(platform.Element)) (platform.Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(el); err != nil {
		return 0, err
	}
	if el != platform.SystemElement {
		_, isApp := b.apps[el]
		_, isWindow := b.windows[el]
		if !isApp && !isWindow {
			return 0, fmt.Errorf("observe %d: %w", el, platform.ErrStale)
		}
	}
	b.nextToken++
	b.observers[b.nextToken] = observation{el: el, n: n, fn: fn}
	return b.nextToken, nil
}

func (b *Backend) Unobserve(tok platform.Token) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.observers[tok]; !ok {
		return fmt.Errorf("token %d: %w", tok, platform.ErrStale)
	}
	delete(b.observers, tok)
	return nil
}

func (b *Backend) RunningApps() ([]platform.ProcessInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]platform.ProcessInfo, 0, len(b.appOrder)+len(b.unreachable))
	for _, el := range b.appOrder {
		out = append(out, b.apps[el].info)
	}
	return append(out, b.unreachable...), nil
}

func (b *Backend) AppInfo(el platform.Element) (platform.ProcessInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.appLocked(el)
	if err != nil {
		return platform.ProcessInfo{}, err
	}
	return a.info, nil
}

func (b *Backend) WindowElements(appEl platform.Element) ([]platform.Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.appLocked(appEl)
	if err != nil {
		return nil, err
	}
	return append([]platform.Element(nil), a.windows...), nil
}

func (b *Backend) FocusedWindow() (platform.Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focused, nil
}

func (b *Backend) ActivateApp(appEl platform.Element, allWindows bool) error {
	b.mu.Lock()
	a, err := b.appLocked(appEl)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	wasHidden := a.info.Hidden
	a.info.Hidden = false
	if len(a.windows) > 0 {
		b.focused = a.windows[0]
	}
	b.mu.Unlock()
	if wasHidden {
		b.fire(appEl, platform.NotifyAppShown, appEl)
	}
	return nil
}

func (b *Backend) HideApp(appEl platform.Element) error {
	return b.setHidden(appEl, true)
}

func (b *Backend) UnhideApp(appEl platform.Element) error {
	return b.setHidden(appEl, false)
}

func (b *Backend) setHidden(appEl platform.Element, hidden bool) error {
	b.mu.Lock()
	a, err := b.appLocked(appEl)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	changed := a.info.Hidden != hidden
	a.info.Hidden = hidden
	b.mu.Unlock()
	if !changed {
		return nil
	}
	if hidden {
		b.fire(appEl, platform.NotifyAppHidden, appEl)
	} else {
		b.fire(appEl, platform.NotifyAppShown, appEl)
	}
	return nil
}

func (b *Backend) QuitApp(appEl platform.Element, force bool) error {
	b.mu.Lock()
	a, err := b.appLocked(appEl)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	hung := a.hung
	b.mu.Unlock()
	if hung && !force {
		return fmt.Errorf("app %d ignored quit request: %w", appEl, platform.ErrTransport)
	}
	b.Terminate(appEl)
	return nil
}

func (b *Backend) AppUnresponsive(appEl platform.Element) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, err := b.appLocked(appEl)
	if err != nil {
		return false, err
	}
	return a.hung, nil
}

func (b *Backend) WindowTitle(win platform.Element) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, err := b.windowLocked(win)
	if err != nil {
		return "", err
	}
	return w.title, nil
}

func (b *Backend) WindowFrame(win platform.Element) (platform.Rect, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, err := b.windowLocked(win)
	if err != nil {
		return platform.Rect{}, err
	}
	return w.frame, nil
}

func (b *Backend) SetWindowFrame(win platform.Element, bounds platform.Rect) error {
	return b.setFrame(win, bounds, true)
}

func (b *Backend) setFrame(win platform.Element, bounds platform.Rect, count bool) error {
	b.mu.Lock()
	w, err := b.windowLocked(win)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	if count {
		w.frameSets++
	}
	old := w.frame
	w.frame = bounds
	b.mu.Unlock()

	if old.Position() != bounds.Position() {
		b.fire(win, platform.NotifyWindowMoved, win)
	}
	if old.Size() != bounds.Size() {
		b.fire(win, platform.NotifyWindowResized, win)
	}
	return nil
}

func (b *Backend) WindowState(win platform.Element) (platform.WindowState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, err := b.windowLocked(win)
	if err != nil {
		return platform.WindowState{}, err
	}
	main := false
	if a, ok := b.apps[w.owner]; ok && len(a.windows) > 0 {
		main = a.windows[0] == win
	}
	return platform.WindowState{
		Minimized:  w.minimized,
		FullScreen: w.full,
		Main:       main,
		Normal:     true,
	}, nil
}

func (b *Backend) FocusWindow(win platform.Element) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.windowLocked(win); err != nil {
		return err
	}
	b.focused = win
	return nil
}

func (b *Backend) CloseWindow(win platform.Element) error {
	b.mu.Lock()
	if _, err := b.windowLocked(win); err != nil {
		b.mu.Unlock()
		return err
	}
	b.removeWindowLocked(win)
	b.mu.Unlock()
	b.fire(win, platform.NotifyWindowDestroyed, win)
	return nil
}

func (b *Backend) MinimizeWindow(win platform.Element) error {
	return b.setMinimized(win, true)
}

func (b *Backend) UnminimizeWindow(win platform.Element) error {
	return b.setMinimized(win, false)
}

func (b *Backend) setMinimized(win platform.Element, minimized bool) error {
	b.mu.Lock()
	w, err := b.windowLocked(win)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	changed := w.minimized != minimized
	w.minimized = minimized
	b.mu.Unlock()
	if !changed {
		return nil
	}
	if minimized {
		b.fire(win, platform.NotifyWindowMinimized, win)
	} else {
		b.fire(win, platform.NotifyWindowDeminimized, win)
	}
	return nil
}

func (b *Backend) SetFullScreen(win platform.Element, fullScreen bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, err := b.windowLocked(win)
	if err != nil {
		return err
	}
	w.full = fullScreen
	return nil
}

func (b *Backend) Displays() ([]platform.Display, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.Display(nil), b.displays...), nil
}

func (b *Backend) BindHotkey(sequence string, fn func()) (platform.Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextToken++
	b.hotkeys[b.nextToken] = hotkey{sequence: sequence, fn: fn}
	return b.nextToken, nil
}

func (b *Backend) UnbindHotkey(tok platform.Token) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.hotkeys[tok]; !ok {
		return fmt.Errorf("hotkey token %d: %w", tok, platform.ErrStale)
	}
	delete(b.hotkeys, tok)
	return nil
}

func removeElement(list []platform.Element, el platform.Element) []platform.Element {
	out := list[:0]
	for _, e := range list {
		if e != el {
			out = append(out, e)
		}
	}
	return out
}

func sortedTokens[V any](m map[platform.Token]V) []platform.Token {
	toks := make([]platform.Token, 0, len(m))
	for tok := range m {
		toks = append(toks, tok)
	}
	sort.Slice(toks, func(i, j int) bool { return toks[i] < toks[j] })
	return toks
}
