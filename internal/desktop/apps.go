package desktop

import (
	"strings"

	"github.com/1broseidon/autumn/internal/observer"
	"github.com/1broseidon/autumn/internal/platform"
)

// AppRegistry owns every known App, keyed by process id.
type AppRegistry struct {
	d         *Desktop
	apps      *arena[int, *App]
	byElement map[platform.Element]int
	system    observer.Set
	ready     bool
}

func newAppRegistry(d *Desktop) *AppRegistry {
	return &AppRegistry{
		d:         d,
		apps:      newArena[int, *App](),
		byElement: make(map[platform.Element]int),
	}
}

// Setup subscribes to launch and termination notifications, then creates an
// App for every running process with a usable element. Repeated calls are
// no-ops. Deliveries are queued on the loop, so a launch racing the
// enumeration is absorbed by the duplicate guard in appLaunched.
func (r *AppRegistry) Setup() error {
	if r.ready {
		return nil
	}

	r.system = observer.Set{
		r.d.subscribe(platform.SystemElement, platform.NotifyAppLaunched, r.handleLaunched),
		r.d.subscribe(platform.SystemElement, platform.NotifyAppTerminated, r.handleTerminated),
	}

	running, err := r.d.backend.RunningApps()
	if err != nil {
		r.system.Stop()
		r.system = nil
		return err
	}
	for _, info := range running {
		if info.Element == 0 {
			continue
		}
		r.appLaunched(info)
	}

	r.ready = true
	r.d.logger.Info("application registry ready", "apps", r.apps.len(), "windows", r.d.windows.Len())
	return nil
}

// AppForProcess returns the App for pid, or nil. It never creates one.
func (r *AppRegistry) AppForProcess(pid int) *App {
	app, _ := r.apps.get(pid)
	return app
}

// AppForElement returns the App wrapping a native process element, or nil.
func (r *AppRegistry) AppForElement(el platform.Element) *App {
	pid, ok := r.byElement[el]
	if !ok {
		return nil
	}
	return r.AppForProcess(pid)
}

// Apps returns every known App in insertion order.
func (r *AppRegistry) Apps() []*App { return r.apps.values() }

func (r *AppRegistry) Len() int { return r.apps.len() }

// Find returns the first App whose name or bundle id matches, ignoring case.
func (r *AppRegistry) Find(name string) *App {
	for _, app := range r.apps.values() {
		if strings.EqualFold(app.name, name) || (app.bundleID != "" && strings.EqualFold(app.bundleID, name)) {
			return app
		}
	}
	return nil
}

// FocusedApp returns the App owning the focused window, or nil.
func (r *AppRegistry) FocusedApp() *App {
	w := r.d.FocusedWindow()
	if w == nil {
		return nil
	}
	return w.App()
}

func (r *AppRegistry) handleLaunched(el platform.Element) {
	info, err := r.d.backend.AppInfo(el)
	if err != nil {
		r.d.logger.Debug("dropping launch without usable element", "element", el, "error", err)
		return
	}
	if info.Element == 0 {
		info.Element = el
	}
	app := r.appLaunched(info)
	if app != nil && r.d.hooks.AppLaunched != nil {
		r.d.hooks.AppLaunched(app)
	}
}

func (r *AppRegistry) handleTerminated(el platform.Element) {
	pid, ok := r.byElement[el]
	if !ok {
		return
	}
	r.appTerminated(pid)
}

// appLaunched creates the App for info and seeds its windows. It returns nil
// when the process is already known.
func (r *AppRegistry) appLaunched(info platform.ProcessInfo) *App {
	if r.apps.has(info.PID) {
		return nil
	}

	app := newApp(r.d, info)
	r.apps.put(info.PID, app)
	r.byElement[info.Element] = info.PID

	app.observers = observer.Set{
		r.d.subscribe(app.element, platform.NotifyWindowCreated, app.handleWindowCreated),
		r.d.subscribe(app.element, platform.NotifyAppHidden, app.handleHidden),
		r.d.subscribe(app.element, platform.NotifyAppShown, app.handleShown),
	}

	elems, err := r.d.backend.WindowElements(app.element)
	if err != nil {
		r.d.logger.Debug("window enumeration failed", "pid", app.pid, "error", err)
	} else {
		r.d.windows.SeedWithWindowElements(elems, app)
	}

	r.d.logger.Debug("app added", "pid", app.pid, "name", app.name)
	return app
}

// appTerminated marks the App terminating, removes its windows and then the
// App itself. Unknown pids are ignored.
func (r *AppRegistry) appTerminated(pid int) {
	app, ok := r.apps.get(pid)
	if !ok || app.terminating {
		return
	}

	app.terminating = true
	if app.onTermination != nil {
		app.onTermination(app)
	}
	app.observers.Stop()
	r.d.windows.removeOwnedBy(pid)

	r.apps.remove(pid)
	delete(r.byElement, app.element)
	app.clearCallbacks()
	if r.d.hooks.AppTerminated != nil {
		r.d.hooks.AppTerminated(app)
	}

	r.d.logger.Debug("app removed", "pid", pid, "name", app.name)
}

func (r *AppRegistry) teardown() {
	r.system.Stop()
	r.system = nil
	for _, app := range r.apps.values() {
		app.observers.Stop()
		app.clearCallbacks()
	}
	r.apps.clear()
	r.byElement = make(map[platform.Element]int)
	r.ready = false
}
