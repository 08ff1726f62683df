package script

import (
	"errors"
	"fmt"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/grid"
	"github.com/dop251/goja"
)

// gridModule exposes the GridWM global. Window arguments default to the
// focused window.
type gridModule struct {
	h *Host
}

func (m *gridModule) name() string { return "GridWM" }

func (m *gridModule) start(h *Host) error {
	m.h = h
	global := h.vm.NewObject()

	m.specProperty(global, "rows", func(s *grid.Spec) *int { return &s.Rows })
	m.specProperty(global, "cols", func(s *grid.Spec) *int { return &s.Cols })
	m.specProperty(global, "padding", func(s *grid.Spec) *int { return &s.Padding })
	m.specProperty(global, "margin", func(s *grid.Spec) *int { return &s.Margin })

	actions := map[string]func(*desktop.Window) error{
		"align":                h.grid.Align,
		"moveUp":               h.grid.MoveUp,
		"moveDown":             h.grid.MoveDown,
		"moveLeft":             h.grid.MoveLeft,
		"moveRight":            h.grid.MoveRight,
		"growAbove":            h.grid.GrowAbove,
		"growBelow":            h.grid.GrowBelow,
		"growLeft":             h.grid.GrowLeft,
		"growRight":            h.grid.GrowRight,
		"shrinkFromAbove":      h.grid.ShrinkFromAbove,
		"shrinkFromBelow":      h.grid.ShrinkFromBelow,
		"shrinkFromLeft":       h.grid.ShrinkFromLeft,
		"shrinkFromRight":      h.grid.ShrinkFromRight,
		"fillCurrentColumn":    h.grid.FillCurrentColumn,
		"fillCurrentRow":       h.grid.FillCurrentRow,
		"moveToNextScreen":     h.grid.MoveToNextScreen,
		"moveToPreviousScreen": h.grid.MoveToPreviousScreen,
	}
	for name, fn := range actions {
		name, fn := name, fn
		h.method(global, name, func(call goja.FunctionCall) goja.Value {
			w, err := m.window(call.Argument(0))
			if err != nil {
				return h.commandResult("grid."+name, err)
			}
			return h.commandResult("grid."+name, fn(w))
		})
	}

	h.method(global, "alignAll", func(goja.FunctionCall) goja.Value {
		return h.commandResult("grid.alignAll", h.grid.AlignAll())
	})
	h.method(global, "fullScreenCellGroup", func(goja.FunctionCall) goja.Value {
		return h.cellGroupValue(h.grid.FullScreenCellGroup())
	})
	h.method(global, "approximateCellGroup", func(call goja.FunctionCall) goja.Value {
		w, err := m.window(call.Argument(0))
		if err != nil {
			return goja.Null()
		}
		g, err := h.grid.ApproximateCellGroup(w)
		if err != nil {
			return goja.Null()
		}
		return h.cellGroupValue(g)
	})
	h.method(global, "moveToCellGroup", func(call goja.FunctionCall) goja.Value {
		g, err := h.toCellGroup(call.Argument(0))
		if errors.Is(err, grid.ErrInvalidCellGroup) {
			return h.commandResult("grid.moveToCellGroup", err)
		}
		if err != nil {
			h.throw(fmt.Errorf("moveToCellGroup: %w", err))
		}
		w, err := m.window(call.Argument(1))
		if err != nil {
			return h.commandResult("grid.moveToCellGroup", err)
		}
		s, err := h.screens.resolve(call.Argument(2))
		if err != nil {
			return h.commandResult("grid.moveToCellGroup", err)
		}
		if s == nil {
			s = w.Screen()
		}
		return h.commandResult("grid.moveToCellGroup", h.grid.MoveToCellGroup(g, w, s))
	})

	return h.vm.Set("GridWM", global)
}

func (m *gridModule) stop() {}

// window resolves an optional window argument.
func (m *gridModule) window(v goja.Value) (*desktop.Window, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		w := m.h.desktop.FocusedWindow()
		if w == nil {
			return nil, fmt.Errorf("no focused window")
		}
		return w, nil
	}
	return m.h.windows.resolve(v)
}

// specProperty exposes one field of the default grid. Invalid assignments
// throw and leave the grid unchanged.
func (m *gridModule) specProperty(obj *goja.Object, name string, field func(*grid.Spec) *int) {
	h := m.h
	getter := h.vm.ToValue(func(goja.FunctionCall) goja.Value {
		spec := h.grid.Spec()
		return h.vm.ToValue(*field(&spec))
	})
	setter := h.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		spec := h.grid.Spec()
		*field(&spec) = int(call.Argument(0).ToInteger())
		if err := h.grid.SetSpec(spec); err != nil {
			h.throw(fmt.Errorf("GridWM.%s: %w", name, err))
		}
		return goja.Undefined()
	})
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}
