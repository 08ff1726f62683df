package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// WindowHandlers receives X events for one client window. Nil fields are
// skipped. Handlers run on the xevent goroutine.
type WindowHandlers struct {
	Property  func(atom string)
	Configure func()
	Destroy   func()
}

// WatchRoot delivers root window property changes by atom name.
func (c *Connection) WatchRoot(onProperty func(atom string)) error {
	if err := xwindow.New(c.XUtil, c.Root).Listen(
		xproto.EventMaskPropertyChange,
		xproto.EventMaskSubstructureNotify,
	); err != nil {
		return fmt.Errorf("listen on root: %w", err)
	}
	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		name, err := xprop.AtomName(xu, ev.Atom)
		if err != nil {
			return
		}
		onProperty(name)
	}).Connect(c.XUtil, c.Root)
	return nil
}

// WatchWindow selects property and structure events on a client window.
func (c *Connection) WatchWindow(windowID xproto.Window, h WindowHandlers) error {
	if err := xwindow.New(c.XUtil, windowID).Listen(
		xproto.EventMaskPropertyChange,
		xproto.EventMaskStructureNotify,
	); err != nil {
		return fmt.Errorf("listen on window %d: %w", windowID, err)
	}
	if h.Property != nil {
		xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
			name, err := xprop.AtomName(xu, ev.Atom)
			if err != nil {
				return
			}
			h.Property(name)
		}).Connect(c.XUtil, windowID)
	}
	if h.Configure != nil {
		xevent.ConfigureNotifyFun(func(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
			h.Configure()
		}).Connect(c.XUtil, windowID)
	}
	if h.Destroy != nil {
		xevent.DestroyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.DestroyNotifyEvent) {
			h.Destroy()
		}).Connect(c.XUtil, windowID)
	}
	return nil
}

// UnwatchWindow drops every callback attached to the window.
func (c *Connection) UnwatchWindow(windowID xproto.Window) {
	xevent.Detach(c.XUtil, windowID)
}

// WatchScreens calls fn whenever RandR reports a screen configuration change.
func (c *Connection) WatchScreens(fn func()) error {
	err := randr.SelectInputChecked(c.XUtil.Conn(), c.Root,
		randr.NotifyMaskScreenChange|randr.NotifyMaskCrtcChange|randr.NotifyMaskOutputChange).Check()
	if err != nil {
		return fmt.Errorf("randr select input: %w", err)
	}
	xevent.HookFun(func(xu *xgbutil.XUtil, event interface{}) bool {
		switch event.(type) {
		case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
			fn()
		}
		return true
	}).Connect(c.XUtil)
	return nil
}
