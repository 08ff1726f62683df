package script

import (
	"fmt"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/platform"
	"github.com/dop251/goja"
)

// screenModule exposes the Screen global. Wrappers are dropped on every
// rebuild since the screens they wrap are invalidated with it.
type screenModule struct {
	h         *Host
	wrappers  map[*desktop.Screen]*goja.Object
	screens   map[*goja.Object]*desktop.Screen
	onChanged goja.Callable
}

func (m *screenModule) name() string { return "Screen" }

func (m *screenModule) start(h *Host) error {
	m.h = h
	m.wrappers = make(map[*desktop.Screen]*goja.Object)
	m.screens = make(map[*goja.Object]*desktop.Screen)

	global := h.vm.NewObject()
	h.method(global, "allScreens", func(goja.FunctionCall) goja.Value {
		return m.list(h.desktop.Screens().All())
	})
	h.method(global, "currentScreen", func(goja.FunctionCall) goja.Value {
		return m.wrap(h.desktop.Screens().Current())
	})
	h.callbackProperty(global, "onChanged", func(fn goja.Callable) { m.onChanged = fn })
	return h.vm.Set("Screen", global)
}

func (m *screenModule) stop() {
	m.wrappers = nil
	m.screens = nil
	m.onChanged = nil
}

func (m *screenModule) changed() {
	m.wrappers = make(map[*desktop.Screen]*goja.Object)
	m.screens = make(map[*goja.Object]*desktop.Screen)
	if m.onChanged == nil {
		return
	}
	m.h.call("Screen.onChanged", m.onChanged)
}

func (m *screenModule) list(screens []*desktop.Screen) goja.Value {
	return m.h.array(len(screens), func(i int) goja.Value { return m.wrap(screens[i]) })
}

func (m *screenModule) wrap(s *desktop.Screen) goja.Value {
	if s == nil {
		return goja.Null()
	}
	if obj, ok := m.wrappers[s]; ok {
		return obj
	}

	h := m.h
	obj := h.vm.NewObject()
	_ = obj.Set("id", s.ID())
	_ = obj.Set("name", s.Name())

	h.method(obj, "fullFrame", func(goja.FunctionCall) goja.Value {
		r, err := s.FullFrame()
		if err != nil {
			return goja.Null()
		}
		return h.rectValue(r)
	})
	h.method(obj, "innerFrame", func(goja.FunctionCall) goja.Value {
		r, err := s.InnerFrame()
		if err != nil {
			return goja.Null()
		}
		return h.rectValue(r)
	})
	h.method(obj, "nextScreen", func(goja.FunctionCall) goja.Value {
		next, err := s.Next()
		if err != nil {
			return goja.Null()
		}
		return m.wrap(next)
	})
	h.method(obj, "previousScreen", func(goja.FunctionCall) goja.Value {
		prev, err := s.Previous()
		if err != nil {
			return goja.Null()
		}
		return m.wrap(prev)
	})
	h.method(obj, "allWindows", func(goja.FunctionCall) goja.Value {
		windows, err := s.Windows()
		if err != nil {
			return h.array(0, nil)
		}
		return h.windows.list(windows)
	})
	h.method(obj, "visibleWindows", func(goja.FunctionCall) goja.Value {
		windows, err := s.VisibleWindows()
		if err != nil {
			return h.array(0, nil)
		}
		return h.windows.list(windows)
	})

	m.wrappers[s] = obj
	m.screens[obj] = s
	return obj
}

// resolve maps a script value back to the screen it wraps. Null and
// undefined give nil. Wrappers from before the last rebuild, and objects
// that never wrapped a screen, are stale.
func (m *screenModule) resolve(v goja.Value) (*desktop.Screen, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("screen: expected a Screen, got %s", v.String())
	}
	s, ok := m.screens[obj]
	if !ok {
		return nil, fmt.Errorf("screen: %w", platform.ErrStale)
	}
	return s, nil
}
