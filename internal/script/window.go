package script

import (
	"fmt"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/dop251/goja"
)

// windowCallbacks maps script property names to window callback slots.
var windowCallbacks = []struct {
	property string
	event    desktop.WindowEvent
}{
	{"onClosed", desktop.EventClosed},
	{"onMoved", desktop.EventMoved},
	{"onResized", desktop.EventResized},
	{"onMinimized", desktop.EventMinimized},
	{"onUnminimized", desktop.EventUnminimized},
	{"onTitleChanged", desktop.EventTitleChanged},
}

// windowModule exposes the Window global and caches one wrapper per Window.
type windowModule struct {
	h        *Host
	wrappers map[*desktop.Window]*goja.Object
	onOpened goja.Callable
}

func (m *windowModule) name() string { return "Window" }

func (m *windowModule) start(h *Host) error {
	m.h = h
	m.wrappers = make(map[*desktop.Window]*goja.Object)

	global := h.vm.NewObject()
	h.method(global, "focusedWindow", func(goja.FunctionCall) goja.Value {
		return m.wrap(h.desktop.FocusedWindow())
	})
	h.method(global, "allWindows", func(goja.FunctionCall) goja.Value {
		return m.list(h.desktop.Windows().All())
	})
	h.method(global, "visibleWindows", func(goja.FunctionCall) goja.Value {
		return m.list(h.desktop.Windows().Visible())
	})
	h.method(global, "byId", func(call goja.FunctionCall) goja.Value {
		return m.wrap(h.desktop.Windows().ByID(uint64(call.Argument(0).ToInteger())))
	})
	h.callbackProperty(global, "onOpened", func(fn goja.Callable) { m.onOpened = fn })
	return h.vm.Set("Window", global)
}

func (m *windowModule) stop() {
	for w := range m.wrappers {
		for _, cb := range windowCallbacks {
			w.SetCallback(cb.event, nil)
		}
	}
	m.wrappers = nil
	m.onOpened = nil
}

func (m *windowModule) opened(w *desktop.Window) {
	if m.onOpened == nil {
		return
	}
	m.h.call("Window.onOpened", m.onOpened, m.wrap(w))
}

func (m *windowModule) closed(w *desktop.Window) {
	delete(m.wrappers, w)
}

func (m *windowModule) list(windows []*desktop.Window) goja.Value {
	return m.h.array(len(windows), func(i int) goja.Value { return m.wrap(windows[i]) })
}

// resolve maps a script value back to a live window through its id.
func (m *windowModule) resolve(v goja.Value) (*desktop.Window, error) {
	id, err := m.h.field(v, "id")
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	w := m.h.desktop.Windows().ByID(uint64(id))
	if w == nil {
		return nil, fmt.Errorf("window %d is gone", uint64(id))
	}
	return w, nil
}

func (m *windowModule) wrap(w *desktop.Window) goja.Value {
	if w == nil {
		return goja.Null()
	}
	if obj, ok := m.wrappers[w]; ok {
		return obj
	}

	h := m.h
	obj := h.vm.NewObject()
	_ = obj.Set("id", w.ID())

	h.method(obj, "app", func(goja.FunctionCall) goja.Value { return h.apps.wrap(w.App()) })
	h.method(obj, "title", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(w.Title()) })
	h.method(obj, "screen", func(goja.FunctionCall) goja.Value { return h.screens.wrap(w.Screen()) })

	h.method(obj, "frame", func(goja.FunctionCall) goja.Value { return h.rectValue(w.Frame()) })
	h.method(obj, "position", func(goja.FunctionCall) goja.Value { return h.pointValue(w.Position()) })
	h.method(obj, "size", func(goja.FunctionCall) goja.Value { return h.sizeValue(w.Size()) })

	h.method(obj, "setFrame", func(call goja.FunctionCall) goja.Value {
		r, err := h.toRect(call.Argument(0))
		if err != nil {
			h.throw(fmt.Errorf("setFrame: %w", err))
		}
		return h.commandResult("window.set_frame", w.SetFrame(r))
	})
	h.method(obj, "setPosition", func(call goja.FunctionCall) goja.Value {
		p, err := h.toPoint(call.Argument(0))
		if err != nil {
			h.throw(fmt.Errorf("setPosition: %w", err))
		}
		return h.commandResult("window.set_position", w.SetPosition(p))
	})
	h.method(obj, "setSize", func(call goja.FunctionCall) goja.Value {
		s, err := h.toSize(call.Argument(0))
		if err != nil {
			h.throw(fmt.Errorf("setSize: %w", err))
		}
		return h.commandResult("window.set_size", w.SetSize(s))
	})
	h.method(obj, "setCenterPoint", func(call goja.FunctionCall) goja.Value {
		p, err := h.toPoint(call.Argument(0))
		if err != nil {
			h.throw(fmt.Errorf("setCenterPoint: %w", err))
		}
		return h.commandResult("window.set_center", w.SetCenterPoint(p))
	})
	h.method(obj, "centerOnScreen", func(goja.FunctionCall) goja.Value {
		return h.commandResult("window.center", w.CenterOnScreen())
	})
	h.method(obj, "moveToPercentOfScreen", func(call goja.FunctionCall) goja.Value {
		u, err := h.toUnitRect(call.Argument(0))
		if err != nil {
			h.throw(fmt.Errorf("moveToPercentOfScreen: %w", err))
		}
		return h.commandResult("window.move_to_unit", w.MoveToUnitRect(u))
	})
	h.method(obj, "maximize", func(goja.FunctionCall) goja.Value {
		return h.commandResult("window.maximize", w.Maximize())
	})
	h.method(obj, "close", func(goja.FunctionCall) goja.Value {
		return h.commandResult("window.close", w.Close())
	})
	h.method(obj, "minimize", func(goja.FunctionCall) goja.Value {
		return h.commandResult("window.minimize", w.Minimize())
	})
	h.method(obj, "unminimize", func(goja.FunctionCall) goja.Value {
		return h.commandResult("window.unminimize", w.Unminimize())
	})
	h.method(obj, "setFullScreen", func(call goja.FunctionCall) goja.Value {
		return h.commandResult("window.set_full_screen", w.SetFullScreen(call.Argument(0).ToBoolean()))
	})
	h.method(obj, "focus", func(goja.FunctionCall) goja.Value {
		return h.commandResult("window.focus", w.Focus())
	})

	h.method(obj, "focusNext", func(call goja.FunctionCall) goja.Value {
		dir, err := desktop.ParseDirection(call.Argument(0).String())
		if err != nil {
			h.throw(err)
		}
		next, err := w.FocusNext(dir)
		if err != nil {
			h.logger.Debug("script command failed", "command", "window.focus_next", "error", err)
			return goja.Null()
		}
		return m.wrap(next)
	})
	h.method(obj, "otherWindows", func(call goja.FunctionCall) goja.Value {
		return m.list(w.OtherWindows(call.Argument(0).ToBoolean()))
	})
	h.method(obj, "windowsInDirection", func(call goja.FunctionCall) goja.Value {
		dir, err := desktop.ParseDirection(call.Argument(0).String())
		if err != nil {
			h.throw(err)
		}
		return m.list(w.WindowsInDirection(dir))
	})

	h.method(obj, "isNormalWindow", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(w.IsNormal()) })
	h.method(obj, "isFullScreen", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(w.IsFullScreen()) })
	h.method(obj, "isMinimized", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(w.IsMinimized()) })
	h.method(obj, "isVisible", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(w.IsVisible()) })
	h.method(obj, "isMainWindow", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(w.IsMainWindow()) })
	h.method(obj, "isFocused", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(w.IsFocused()) })

	for _, cb := range windowCallbacks {
		cb := cb
		h.callbackProperty(obj, cb.property, func(fn goja.Callable) {
			if fn == nil {
				w.SetCallback(cb.event, nil)
				return
			}
			w.SetCallback(cb.event, func(win *desktop.Window) {
				h.call("window."+cb.property, fn, m.wrap(win))
			})
		})
	}

	m.wrappers[w] = obj
	return obj
}
