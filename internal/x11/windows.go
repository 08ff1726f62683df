package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
)

const (
	stateHidden     = "_NET_WM_STATE_HIDDEN"
	stateFullScreen = "_NET_WM_STATE_FULLSCREEN"
	stateMaxHorz    = "_NET_WM_STATE_MAXIMIZED_HORZ"
	stateMaxVert    = "_NET_WM_STATE_MAXIMIZED_VERT"
)

// Geometry is a window rectangle in root coordinates.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// ClientList returns the managed top-level windows in mapping order.
func (c *Connection) ClientList() ([]xproto.Window, error) {
	return ewmh.ClientListGet(c.XUtil)
}

// MoveResizeWindow moves and resizes a window to the specified geometry
func (c *Connection) MoveResizeWindow(windowID xproto.Window, x, y, width, height int) error {
	// Maximized windows ignore geometry requests on most window managers.
	// Failure only means the window does not expose its state.
	_ = c.unmaximizeWindow(windowID)

	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, x, y, width, height); err != nil {
		// Fallback to direct window manipulation
		xwindow.New(c.XUtil, windowID).MoveResize(x, y, width, height)
	}
	return nil
}

// unmaximizeWindow removes maximized state from a window
func (c *Connection) unmaximizeWindow(windowID xproto.Window) error {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return err
	}

	for _, state := range states {
		if state == stateMaxHorz || state == stateMaxVert {
			if err := ewmh.WmStateReq(c.XUtil, windowID, ewmh.StateRemove, state); err != nil {
				return err
			}
		}
	}
	return nil
}

// WindowGeometry returns the window's rectangle in root coordinates.
func (c *Connection) WindowGeometry(windowID xproto.Window) (Geometry, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Geometry{}, err
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return Geometry{}, err
	}

	return Geometry{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// WindowTitle prefers _NET_WM_NAME and falls back to WM_NAME.
func (c *Connection) WindowTitle(windowID xproto.Window) (string, error) {
	title, err := ewmh.WmNameGet(c.XUtil, windowID)
	if err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title, nil
		}
	}

	title, err = icccm.WmNameGet(c.XUtil, windowID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

// WindowClass returns the WM_CLASS instance and class names.
func (c *Connection) WindowClass(windowID xproto.Window) (instance, class string, err error) {
	wmClass, err := icccm.WmClassGet(c.XUtil, windowID)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(wmClass.Instance), strings.TrimSpace(wmClass.Class), nil
}

// WindowPID returns _NET_WM_PID, or 0 when the client does not set it.
func (c *Connection) WindowPID(windowID xproto.Window) int {
	pid, err := ewmh.WmPidGet(c.XUtil, windowID)
	if err != nil {
		return 0
	}
	return int(pid)
}

// WindowStates returns the _NET_WM_STATE atoms set on the window.
func (c *Connection) WindowStates(windowID xproto.Window) ([]string, error) {
	return ewmh.WmStateGet(c.XUtil, windowID)
}

// HasState reports whether the window carries the given _NET_WM_STATE atom.
func (c *Connection) HasState(windowID xproto.Window, state string) bool {
	states, err := c.WindowStates(windowID)
	if err != nil {
		return false
	}
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

// IsMinimized reports whether the window is iconified.
func (c *Connection) IsMinimized(windowID xproto.Window) bool {
	if c.HasState(windowID, stateHidden) {
		return true
	}
	st, err := icccm.WmStateGet(c.XUtil, windowID)
	return err == nil && st.State == icccm.StateIconic
}

// IsFullScreen reports whether the window is in full-screen state.
func (c *Connection) IsFullScreen(windowID xproto.Window) bool {
	return c.HasState(windowID, stateFullScreen)
}

// SetFullScreen adds or removes the full-screen state.
func (c *Connection) SetFullScreen(windowID xproto.Window, fullScreen bool) error {
	action := ewmh.StateRemove
	if fullScreen {
		action = ewmh.StateAdd
	}
	return ewmh.WmStateReq(c.XUtil, windowID, action, stateFullScreen)
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_NORMAL" {
			return true
		}
		// Reject desktop, dock, splash, etc.
		if t == "_NET_WM_WINDOW_TYPE_DESKTOP" ||
			t == "_NET_WM_WINDOW_TYPE_DOCK" ||
			t == "_NET_WM_WINDOW_TYPE_SPLASH" ||
			t == "_NET_WM_WINDOW_TYPE_NOTIFICATION" {
			return false
		}
	}

	// If no specific type is set, assume it's normal
	return len(types) == 0
}

// IsDialog reports whether the window declares itself a dialog or utility.
func (c *Connection) IsDialog(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_DIALOG" || t == "_NET_WM_WINDOW_TYPE_UTILITY" {
			return true
		}
	}
	return false
}

func (c *Connection) GetActiveWindow() (xproto.Window, error) {
	return ewmh.ActiveWindowGet(c.XUtil)
}

// Minimize iconifies a window via WM_CHANGE_STATE.
func (c *Connection) Minimize(windowID xproto.Window) error {
	reply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len("WM_CHANGE_STATE")), "WM_CHANGE_STATE").Reply()
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   reply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(icccm.StateIconic), 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// Unminimize restores an iconified window by mapping and activating it.
func (c *Connection) Unminimize(windowID xproto.Window) error {
	if err := xproto.MapWindowChecked(c.XUtil.Conn(), windowID).Check(); err != nil {
		return fmt.Errorf("map window: %w", err)
	}
	return c.FocusWindow(windowID)
}

// Close requests graceful window close via WM_DELETE_WINDOW.
func (c *Connection) CloseWindow(windowID xproto.Window) error {
	deleteReply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len("WM_DELETE_WINDOW")), "WM_DELETE_WINDOW").Reply()
	if err != nil {
		return err
	}
	protocolsReply, err := xproto.InternAtom(c.XUtil.Conn(), false, uint16(len("WM_PROTOCOLS")), "WM_PROTOCOLS").Reply()
	if err != nil {
		return err
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   protocolsReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(deleteReply.Atom), 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		windowID,
		xproto.EventMaskNoEvent,
		string(ev.Bytes()),
	).Check()
}
