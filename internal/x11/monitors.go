package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

// GetMonitors retrieves all active monitors using XRandR, in CRTC order.
func (c *Connection) GetMonitors() ([]Monitor, error) {
	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor

	// Query each CRTC for active monitors
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		monitors = append(monitors, Monitor{
			ID:     i,
			Name:   outputName,
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		})
	}

	return monitors, nil
}

// UsableArea returns the monitor geometry minus dock struts. When no dock
// reserves space on the monitor, the EWMH work area of the current desktop
// is intersected with it instead.
func (c *Connection) UsableArea(mon Monitor) Monitor {
	usable := mon
	if applyDockStruts(c, &usable) {
		return usable
	}

	workArea, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workArea) == 0 {
		return usable
	}
	desktopIndex := 0
	if currentDesktop, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil {
		if int(currentDesktop) >= 0 && int(currentDesktop) < len(workArea) {
			desktopIndex = int(currentDesktop)
		}
	}

	wa := workArea[desktopIndex]
	isect := intersectionSize(
		mon.X, mon.Y, mon.X+mon.Width, mon.Y+mon.Height,
		int(wa.X), int(wa.Y), int(wa.X)+int(wa.Width), int(wa.Y)+int(wa.Height),
	)
	if isect.w > 0 && isect.h > 0 {
		usable.X = max(mon.X, int(wa.X))
		usable.Y = max(mon.Y, int(wa.Y))
		usable.Width = isect.w
		usable.Height = isect.h
	}
	return usable
}

type dockStruts struct {
	left   int
	right  int
	top    int
	bottom int
}

func applyDockStruts(c *Connection, monitor *Monitor) bool {
	rootGeom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return false
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return false
	}

	var struts dockStruts
	for _, windowID := range clients {
		types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
		if err != nil {
			continue
		}

		isDock := false
		for _, t := range types {
			if t == "_NET_WM_WINDOW_TYPE_DOCK" {
				isDock = true
				break
			}
		}
		if !isDock {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.XUtil, windowID); err == nil {
			updateStrutsForMonitor(monitor, rootWidth, rootHeight, sp, &struts)
			continue
		}

		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.XUtil, windowID); err == nil {
			sp := &ewmh.WmStrutPartial{
				Left:         s.Left,
				Right:        s.Right,
				Top:          s.Top,
				Bottom:       s.Bottom,
				LeftStartY:   0,
				LeftEndY:     uint(rootHeight - 1),
				RightStartY:  0,
				RightEndY:    uint(rootHeight - 1),
				TopStartX:    0,
				TopEndX:      uint(rootWidth - 1),
				BottomStartX: 0,
				BottomEndX:   uint(rootWidth - 1),
			}
			updateStrutsForMonitor(monitor, rootWidth, rootHeight, sp, &struts)
		}
	}

	if struts.left == 0 && struts.right == 0 && struts.top == 0 && struts.bottom == 0 {
		return false
	}

	monitor.X += struts.left
	monitor.Y += struts.top
	monitor.Width -= (struts.left + struts.right)
	monitor.Height -= (struts.top + struts.bottom)

	if monitor.Width < 1 {
		monitor.Width = 1
	}
	if monitor.Height < 1 {
		monitor.Height = 1
	}

	return true
}

func updateStrutsForMonitor(monitor *Monitor, rootWidth, rootHeight int, sp *ewmh.WmStrutPartial, acc *dockStruts) {
	monX1 := monitor.X
	monY1 := monitor.Y
	monX2 := monitor.X + monitor.Width
	monY2 := monitor.Y + monitor.Height

	// Top strut: y=[0,Top), x=[TopStartX,TopEndX]
	if sp.Top > 0 {
		isect := intersectionSize(monX1, monY1, monX2, monY2, int(sp.TopStartX), 0, int(sp.TopEndX)+1, int(sp.Top))
		acc.top = max(acc.top, isect.h)
	}

	// Bottom strut: y=[rootHeight-Bottom,rootHeight), x=[BottomStartX,BottomEndX]
	if sp.Bottom > 0 {
		isect := intersectionSize(monX1, monY1, monX2, monY2, int(sp.BottomStartX), rootHeight-int(sp.Bottom), int(sp.BottomEndX)+1, rootHeight)
		acc.bottom = max(acc.bottom, isect.h)
	}

	// Left strut: x=[0,Left), y=[LeftStartY,LeftEndY]
	if sp.Left > 0 {
		isect := intersectionSize(monX1, monY1, monX2, monY2, 0, int(sp.LeftStartY), int(sp.Left), int(sp.LeftEndY)+1)
		acc.left = max(acc.left, isect.w)
	}

	// Right strut: x=[rootWidth-Right,rootWidth), y=[RightStartY,RightEndY]
	if sp.Right > 0 {
		isect := intersectionSize(monX1, monY1, monX2, monY2, rootWidth-int(sp.Right), int(sp.RightStartY), rootWidth, int(sp.RightEndY)+1)
		acc.right = max(acc.right, isect.w)
	}
}

type intersection struct {
	w int
	h int
}

func intersectionSize(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 int) intersection {
	x1 := max(ax1, bx1)
	y1 := max(ay1, by1)
	x2 := min(ax2, bx2)
	y2 := min(ay2, by2)

	if x2 <= x1 || y2 <= y1 {
		return intersection{}
	}
	return intersection{w: x2 - x1, h: y2 - y1}
}
