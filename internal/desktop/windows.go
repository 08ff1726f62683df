package desktop

import (
	"github.com/1broseidon/autumn/internal/observer"
	"github.com/1broseidon/autumn/internal/platform"
)

// WindowRegistry owns every known Window, keyed by an engine-assigned id.
type WindowRegistry struct {
	d         *Desktop
	windows   *arena[uint64, *Window]
	byElement map[platform.Element]uint64
	nextID    uint64
}

func newWindowRegistry(d *Desktop) *WindowRegistry {
	return &WindowRegistry{
		d:         d,
		windows:   newArena[uint64, *Window](),
		byElement: make(map[platform.Element]uint64),
	}
}

// WindowForElement returns the Window wrapping el, or nil.
func (r *WindowRegistry) WindowForElement(el platform.Element) *Window {
	id, ok := r.byElement[el]
	if !ok {
		return nil
	}
	return r.ByID(id)
}

// ByID returns the Window with the given id, or nil.
func (r *WindowRegistry) ByID(id uint64) *Window {
	w, _ := r.windows.get(id)
	return w
}

// All returns every known Window in creation order.
func (r *WindowRegistry) All() []*Window { return r.windows.values() }

func (r *WindowRegistry) Len() int { return r.windows.len() }

// Visible returns the windows that are neither minimized nor hidden.
func (r *WindowRegistry) Visible() []*Window {
	var out []*Window
	for _, w := range r.windows.values() {
		if w.IsVisible() {
			out = append(out, w)
		}
	}
	return out
}

// ForApp returns the windows owned by pid in creation order.
func (r *WindowRegistry) ForApp(pid int) []*Window {
	var out []*Window
	for _, w := range r.windows.values() {
		if w.owner == pid {
			out = append(out, w)
		}
	}
	return out
}

// SeedWithWindowElements registers the windows an App had when it was first
// observed. Elements already registered are skipped. It returns every window
// now owned by owner.
func (r *WindowRegistry) SeedWithWindowElements(elems []platform.Element, owner *App) []*Window {
	for _, el := range elems {
		if _, ok := r.byElement[el]; ok {
			continue
		}
		r.create(el, owner)
	}
	return r.ForApp(owner.pid)
}

// WindowElementOpened registers a window reported after seeding. An already
// registered element returns its existing Window. It returns nil when the
// window vanished before it could be read.
func (r *WindowRegistry) WindowElementOpened(el platform.Element, owner *App) *Window {
	if w := r.WindowForElement(el); w != nil {
		return w
	}
	return r.create(el, owner)
}

// WindowElementClosed removes and returns the Window for el, or nil when it
// is already gone. The Window's closed callback fires once on removal.
func (r *WindowRegistry) WindowElementClosed(el platform.Element) *Window {
	w := r.WindowForElement(el)
	if w == nil {
		return nil
	}
	r.remove(w)
	return w
}

func (r *WindowRegistry) create(el platform.Element, owner *App) *Window {
	frame, err := r.d.backend.WindowFrame(el)
	if err != nil {
		r.d.logger.Debug("skipping unreadable window", "element", el, "pid", owner.pid, "error", err)
		return nil
	}

	r.nextID++
	w := &Window{
		d:       r.d,
		id:      r.nextID,
		element: el,
		owner:   owner.pid,
		frame:   frame,
	}
	w.refreshTitle()
	w.refreshState()

	r.windows.put(w.id, w)
	r.byElement[el] = w.id

	w.observers = observer.Set{
		r.d.subscribe(el, platform.NotifyWindowDestroyed, w.handleDestroyed),
		r.d.subscribe(el, platform.NotifyWindowMoved, w.handleMoved),
		r.d.subscribe(el, platform.NotifyWindowResized, w.handleResized),
		r.d.subscribe(el, platform.NotifyWindowMinimized, w.handleMinimized),
		r.d.subscribe(el, platform.NotifyWindowDeminimized, w.handleDeminimized),
		r.d.subscribe(el, platform.NotifyTitleChanged, w.handleTitleChanged),
	}

	r.d.logger.Debug("window added", "window_id", w.id, "pid", owner.pid, "title", w.title)
	return w
}

func (r *WindowRegistry) remove(w *Window) {
	r.windows.remove(w.id)
	delete(r.byElement, w.element)
	w.observers.Stop()
	w.closed = true

	if fn := w.callbacks[EventClosed]; fn != nil {
		fn(w)
	}
	w.callbacks = nil
	if r.d.hooks.WindowClosed != nil {
		r.d.hooks.WindowClosed(w)
	}
	r.d.logger.Debug("window removed", "window_id", w.id, "pid", w.owner)
}

func (r *WindowRegistry) removeOwnedBy(pid int) {
	for _, w := range r.ForApp(pid) {
		r.remove(w)
	}
}

func (r *WindowRegistry) teardown() {
	for _, w := range r.windows.values() {
		w.observers.Stop()
		w.closed = true
		w.callbacks = nil
	}
	r.windows.clear()
	r.byElement = make(map[platform.Element]uint64)
}
