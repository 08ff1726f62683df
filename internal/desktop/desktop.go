// Package desktop keeps an in-process graph of running applications, their
// windows and connected screens consistent with the live desktop.
//
// Every method must be called on the coordination loop. Native notifications
// reach the registries through observer subscriptions, which post their
// deliveries to the same loop, so the graph is never mutated concurrently.
package desktop

import (
	"errors"
	"log/slog"

	"github.com/1broseidon/autumn/internal/observer"
	"github.com/1broseidon/autumn/internal/platform"
)

// Recorder receives counts of processed notifications and failed commands.
type Recorder interface {
	Notification(n platform.Notification)
	CommandFailed(op string)
}

type nopRecorder struct{}

func (nopRecorder) Notification(platform.Notification) {}
func (nopRecorder) CommandFailed(string)               {}

// Hooks are desktop-wide callbacks for entities entering and leaving the
// graph. They run after the per-entity callbacks.
type Hooks struct {
	AppLaunched   func(*App)
	AppTerminated func(*App)
	WindowOpened  func(*Window)
	WindowClosed  func(*Window)
}

// Option configures a Desktop.
type Option func(*Desktop)

// WithRecorder routes notification and failure counts to r.
func WithRecorder(r Recorder) Option {
	return func(d *Desktop) {
		if r != nil {
			d.recorder = r
		}
	}
}

// Desktop is the process-wide context owning the three registries.
type Desktop struct {
	backend  platform.Backend
	loop     observer.Poster
	logger   *slog.Logger
	recorder Recorder
	hooks    Hooks

	apps    *AppRegistry
	windows *WindowRegistry
	screens *ScreenRegistry
}

// New builds an empty desktop. Call Setup on the loop to populate it.
func New(backend platform.Backend, loop observer.Poster, logger *slog.Logger, opts ...Option) *Desktop {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Desktop{
		backend:  backend,
		loop:     loop,
		logger:   logger,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.apps = newAppRegistry(d)
	d.windows = newWindowRegistry(d)
	d.screens = newScreenRegistry(d)
	return d
}

// Setup enumerates screens and applications and starts observing the
// system-wide notifications. It is idempotent.
func (d *Desktop) Setup() error {
	if err := d.screens.Setup(); err != nil {
		return err
	}
	return d.apps.Setup()
}

// Teardown stops every subscription and empties the registries without
// firing entity callbacks. Setup may be called again afterwards.
func (d *Desktop) Teardown() {
	d.apps.teardown()
	d.windows.teardown()
	d.screens.teardown()
}

func (d *Desktop) Apps() *AppRegistry       { return d.apps }
func (d *Desktop) Windows() *WindowRegistry { return d.windows }
func (d *Desktop) Screens() *ScreenRegistry { return d.screens }
func (d *Desktop) Logger() *slog.Logger     { return d.logger }

// SetHooks replaces the desktop-wide callbacks.
func (d *Desktop) SetHooks(h Hooks) { d.hooks = h }

// FocusedWindow returns the registered window holding input focus, or nil.
func (d *Desktop) FocusedWindow() *Window {
	el, err := d.backend.FocusedWindow()
	if err != nil {
		d.logger.Debug("focused window query failed", "error", err)
		return nil
	}
	if el == 0 {
		return nil
	}
	return d.windows.WindowForElement(el)
}

func (d *Desktop) subscribe(el platform.Element, n platform.Notification, fn func(platform.Element)) *observer.Subscription {
	sub := observer.New(d.backend, d.loop, el, n, func(target platform.Element) {
		d.recorder.Notification(n)
		fn(target)
	}, d.logger)
	sub.Start()
	return sub
}

func (d *Desktop) failed(op string, err error) error {
	d.recorder.CommandFailed(op)
	d.logger.Debug("command failed", "op", op, "error", err)
	return err
}

// IsCommandFailure reports whether err means a command could not be
// completed because its target is gone or did not answer.
func IsCommandFailure(err error) bool {
	return errors.Is(err, platform.ErrStale) || errors.Is(err, platform.ErrTransport)
}

// SyncReport summarizes what a Sync pass corrected.
type SyncReport struct {
	AppsAdded      int
	AppsRemoved    int
	WindowsAdded   int
	WindowsRemoved int
}

// Changed reports whether the pass corrected anything.
func (r SyncReport) Changed() bool {
	return r.AppsAdded+r.AppsRemoved+r.WindowsAdded+r.WindowsRemoved > 0
}

// Sync compares the registries against a fresh enumeration and feeds every
// difference through the regular launch, terminate, open and close entry
// points, correcting notifications the OS never delivered.
func (d *Desktop) Sync() (SyncReport, error) {
	var report SyncReport

	running, err := d.backend.RunningApps()
	if err != nil {
		return report, err
	}

	seen := make(map[int]bool, len(running))
	for _, info := range running {
		if info.Element == 0 {
			continue
		}
		seen[info.PID] = true
		if d.apps.AppForProcess(info.PID) != nil {
			continue
		}
		if app := d.apps.appLaunched(info); app != nil {
			report.AppsAdded++
			if d.hooks.AppLaunched != nil {
				d.hooks.AppLaunched(app)
			}
		}
	}

	for _, app := range d.apps.Apps() {
		if !seen[app.pid] {
			d.apps.appTerminated(app.pid)
			report.AppsRemoved++
		}
	}

	for _, app := range d.apps.Apps() {
		elems, err := d.backend.WindowElements(app.element)
		if err != nil {
			continue
		}
		live := make(map[platform.Element]bool, len(elems))
		for _, el := range elems {
			live[el] = true
			if d.windows.WindowForElement(el) != nil {
				continue
			}
			if w := d.windows.WindowElementOpened(el, app); w != nil {
				report.WindowsAdded++
				if d.hooks.WindowOpened != nil {
					d.hooks.WindowOpened(w)
				}
			}
		}
		for _, w := range d.windows.ForApp(app.pid) {
			if !live[w.element] && d.windows.WindowElementClosed(w.element) != nil {
				report.WindowsRemoved++
			}
		}
	}

	return report, nil
}
