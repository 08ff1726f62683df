package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// GetCurrentDesktop returns the current virtual desktop number (0-indexed).
// Uses _NET_CURRENT_DESKTOP atom. Returns 0 with an error if detection fails.
func (c *Connection) GetCurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// GetWindowDesktop returns the desktop number a window is on.
// Uses _NET_WM_DESKTOP atom. Returns -1 for "sticky" windows (visible on all desktops).
func (c *Connection) GetWindowDesktop(windowID xproto.Window) (int, error) {
	desktop, err := ewmh.WmDesktopGet(c.XUtil, windowID)
	if err != nil {
		return 0, fmt.Errorf("failed to get window desktop: %w", err)
	}
	// 0xFFFFFFFF means the window is on all desktops (sticky)
	if desktop == 0xFFFFFFFF {
		return -1, nil
	}
	return int(desktop), nil
}

// OnCurrentDesktop reports whether the window is shown on the current
// virtual desktop. Windows without desktop information count as shown.
func (c *Connection) OnCurrentDesktop(windowID xproto.Window) bool {
	current, err := c.GetCurrentDesktop()
	if err != nil {
		return true
	}
	desktop, err := c.GetWindowDesktop(windowID)
	if err != nil {
		return true
	}
	return desktop == -1 || desktop == current
}

// FocusWindow activates and raises a window using _NET_ACTIVE_WINDOW.
// Sends a client message to the root window per EWMH spec.
// We build the message manually because the xgbutil ewmh helpers panic on
// this library version.
func (c *Connection) FocusWindow(windowID xproto.Window) error {
	atomReply, err := xproto.InternAtom(c.XUtil.Conn(), false,
		uint16(len("_NET_ACTIVE_WINDOW")), "_NET_ACTIVE_WINDOW").Reply()
	if err != nil {
		return fmt.Errorf("failed to intern _NET_ACTIVE_WINDOW: %w", err)
	}

	const sourceIndication = 2 // pager/direct action
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   atomReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{sourceIndication, 0, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}
