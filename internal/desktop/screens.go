package desktop

import (
	"errors"
	"fmt"

	"github.com/1broseidon/autumn/internal/observer"
	"github.com/1broseidon/autumn/internal/platform"
)

// ErrNoScreen is returned when a window lies on no known screen.
var ErrNoScreen = errors.New("window is not on any known screen")

// ScreenRegistry owns every known Screen in OS-reported order.
type ScreenRegistry struct {
	d        *Desktop
	screens  *arena[uint64, *Screen]
	byHandle map[platform.Element]uint64
	nextID   uint64
	sub      *observer.Subscription
	ready    bool

	onChanged func()
}

func newScreenRegistry(d *Desktop) *ScreenRegistry {
	return &ScreenRegistry{
		d:        d,
		screens:  newArena[uint64, *Screen](),
		byHandle: make(map[platform.Element]uint64),
	}
}

// Setup enumerates connected displays and subscribes to reconfiguration.
// Repeated calls are no-ops.
func (r *ScreenRegistry) Setup() error {
	if r.ready {
		return nil
	}
	displays, err := r.d.backend.Displays()
	if err != nil {
		return fmt.Errorf("enumerate displays: %w", err)
	}
	for _, disp := range displays {
		r.ScreenFor(disp)
	}
	r.sub = r.d.subscribe(platform.SystemElement, platform.NotifyScreensChanged, func(platform.Element) {
		r.Rebuild()
	})
	r.ready = true
	r.d.logger.Info("screen registry ready", "screens", r.screens.len())
	return nil
}

// ScreenFor returns the Screen wrapping disp.Handle, creating and
// registering one when none exists.
func (r *ScreenRegistry) ScreenFor(disp platform.Display) *Screen {
	if id, ok := r.byHandle[disp.Handle]; ok {
		if s, ok := r.screens.get(id); ok {
			return s
		}
	}

	r.nextID++
	s := &Screen{
		r:      r,
		id:     r.nextID,
		handle: disp.Handle,
		name:   disp.Name,
		frame:  disp.Bounds,
		inner:  disp.Usable,
		valid:  true,
	}
	if s.inner.Empty() {
		s.inner = s.frame
	}
	r.screens.put(s.id, s)
	r.byHandle[disp.Handle] = s.id
	return s
}

// Rebuild invalidates and drops every Screen, then enumerates the displays
// again. It runs to completion inside one loop task, so no caller can observe
// a partially rebuilt registry. If enumeration fails the registry is left
// empty until the next rebuild.
func (r *ScreenRegistry) Rebuild() {
	displays, err := r.d.backend.Displays()

	for _, s := range r.screens.values() {
		s.valid = false
	}
	r.screens.clear()
	r.byHandle = make(map[platform.Element]uint64)

	if err != nil {
		r.d.logger.Warn("display enumeration failed after reconfiguration", "error", err)
	} else {
		for _, disp := range displays {
			r.ScreenFor(disp)
		}
	}

	r.d.logger.Info("screens rebuilt", "screens", r.screens.len())
	if r.onChanged != nil {
		r.onChanged()
	}
}

// SetOnChanged installs a callback run after every rebuild; nil clears it.
func (r *ScreenRegistry) SetOnChanged(fn func()) { r.onChanged = fn }

// All returns every Screen in OS order.
func (r *ScreenRegistry) All() []*Screen { return r.screens.values() }

func (r *ScreenRegistry) Len() int { return r.screens.len() }

// ByName returns the Screen with the given name, or nil.
func (r *ScreenRegistry) ByName(name string) *Screen {
	for _, s := range r.screens.values() {
		if s.name == name {
			return s
		}
	}
	return nil
}

// Current returns the screen of the focused window, falling back to the
// first screen.
func (r *ScreenRegistry) Current() *Screen {
	if w := r.d.FocusedWindow(); w != nil {
		if s := w.Screen(); s != nil {
			return s
		}
	}
	all := r.screens.values()
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// ForRect returns the Screen whose full frame overlaps rect the most, or nil
// when rect overlaps none.
func (r *ScreenRegistry) ForRect(rect platform.Rect) *Screen {
	var best *Screen
	bestArea := 0
	for _, s := range r.screens.values() {
		area := s.frame.Intersect(rect).Area()
		if area > bestArea {
			best = s
			bestArea = area
		}
	}
	return best
}

func (r *ScreenRegistry) neighbor(s *Screen, step int) *Screen {
	all := r.screens.values()
	for i, candidate := range all {
		if candidate == s {
			return all[(i+step+len(all))%len(all)]
		}
	}
	return nil
}

func (r *ScreenRegistry) teardown() {
	if r.sub != nil {
		r.sub.Stop()
		r.sub = nil
	}
	for _, s := range r.screens.values() {
		s.valid = false
	}
	r.screens.clear()
	r.byHandle = make(map[platform.Element]uint64)
	r.ready = false
}
