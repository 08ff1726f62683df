package script

import (
	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/dop251/goja"
)

// appModule exposes the App global and caches one wrapper per App.
type appModule struct {
	h          *Host
	wrappers   map[*desktop.App]*goja.Object
	onLaunched goja.Callable
}

func (m *appModule) name() string { return "App" }

func (m *appModule) start(h *Host) error {
	m.h = h
	m.wrappers = make(map[*desktop.App]*goja.Object)

	global := h.vm.NewObject()
	h.method(global, "allApps", func(goja.FunctionCall) goja.Value {
		return m.list(h.desktop.Apps().Apps())
	})
	h.method(global, "focusedApp", func(goja.FunctionCall) goja.Value {
		return m.wrap(h.desktop.Apps().FocusedApp())
	})
	h.method(global, "find", func(call goja.FunctionCall) goja.Value {
		return m.wrap(h.desktop.Apps().Find(call.Argument(0).String()))
	})
	h.callbackProperty(global, "onLaunched", func(fn goja.Callable) { m.onLaunched = fn })
	return h.vm.Set("App", global)
}

func (m *appModule) stop() {
	for app := range m.wrappers {
		app.SetOnHidden(nil)
		app.SetOnUnhidden(nil)
		app.SetOnTermination(nil)
	}
	m.wrappers = nil
	m.onLaunched = nil
}

func (m *appModule) launched(app *desktop.App) {
	if m.onLaunched == nil {
		return
	}
	m.h.call("App.onLaunched", m.onLaunched, m.wrap(app))
}

func (m *appModule) terminated(app *desktop.App) {
	delete(m.wrappers, app)
}

func (m *appModule) list(apps []*desktop.App) goja.Value {
	return m.h.array(len(apps), func(i int) goja.Value { return m.wrap(apps[i]) })
}

func (m *appModule) wrap(app *desktop.App) goja.Value {
	if app == nil {
		return goja.Null()
	}
	if obj, ok := m.wrappers[app]; ok {
		return obj
	}

	h := m.h
	obj := h.vm.NewObject()
	_ = obj.Set("name", app.Name())
	_ = obj.Set("bundleId", app.BundleID())
	_ = obj.Set("pid", app.PID())
	_ = obj.Set("kind", string(app.Kind()))

	h.method(obj, "isRunning", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(app.IsRunning()) })
	h.method(obj, "isFocused", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(app.IsFocused()) })
	h.method(obj, "isHidden", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(app.IsHidden()) })
	h.method(obj, "isUnresponsive", func(goja.FunctionCall) goja.Value { return h.vm.ToValue(app.IsUnresponsive()) })

	h.method(obj, "mainWindow", func(goja.FunctionCall) goja.Value {
		return h.windows.wrap(app.MainWindow())
	})
	h.method(obj, "allWindows", func(goja.FunctionCall) goja.Value {
		return h.windows.list(app.Windows())
	})
	h.method(obj, "visibleWindows", func(goja.FunctionCall) goja.Value {
		return h.windows.list(app.VisibleWindows())
	})

	h.method(obj, "activate", func(call goja.FunctionCall) goja.Value {
		return h.commandResult("app.activate", app.Activate(call.Argument(0).ToBoolean()))
	})
	h.method(obj, "hide", func(goja.FunctionCall) goja.Value {
		return h.commandResult("app.hide", app.Hide())
	})
	h.method(obj, "unhide", func(goja.FunctionCall) goja.Value {
		return h.commandResult("app.unhide", app.Unhide())
	})
	h.method(obj, "quit", func(goja.FunctionCall) goja.Value {
		return h.commandResult("app.quit", app.Quit())
	})
	h.method(obj, "forceQuit", func(goja.FunctionCall) goja.Value {
		return h.commandResult("app.force_quit", app.ForceQuit())
	})

	h.callbackProperty(obj, "onHidden", func(fn goja.Callable) {
		app.SetOnHidden(m.appCallback("onHidden", fn))
	})
	h.callbackProperty(obj, "onUnhidden", func(fn goja.Callable) {
		app.SetOnUnhidden(m.appCallback("onUnhidden", fn))
	})
	h.callbackProperty(obj, "onTermination", func(fn goja.Callable) {
		app.SetOnTermination(m.appCallback("onTermination", fn))
	})

	m.wrappers[app] = obj
	return obj
}

func (m *appModule) appCallback(name string, fn goja.Callable) func(*desktop.App) {
	if fn == nil {
		return nil
	}
	return func(app *desktop.App) {
		m.h.call("app."+name, fn, m.wrap(app))
	}
}
