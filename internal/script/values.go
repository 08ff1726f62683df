package script

import (
	"fmt"
	"math"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/grid"
	"github.com/1broseidon/autumn/internal/platform"
	"github.com/dop251/goja"
)

func (h *Host) rectValue(r platform.Rect) goja.Value {
	obj := h.vm.NewObject()
	_ = obj.Set("x", r.X)
	_ = obj.Set("y", r.Y)
	_ = obj.Set("width", r.Width)
	_ = obj.Set("height", r.Height)
	return obj
}

func (h *Host) pointValue(p platform.Point) goja.Value {
	obj := h.vm.NewObject()
	_ = obj.Set("x", p.X)
	_ = obj.Set("y", p.Y)
	return obj
}

func (h *Host) sizeValue(s platform.Size) goja.Value {
	obj := h.vm.NewObject()
	_ = obj.Set("width", s.Width)
	_ = obj.Set("height", s.Height)
	return obj
}

func (h *Host) cellGroupValue(g grid.CellGroup) goja.Value {
	obj := h.vm.NewObject()
	_ = obj.Set("x", g.X0)
	_ = obj.Set("y", g.Y0)
	_ = obj.Set("width", g.Cols())
	_ = obj.Set("height", g.Rows())
	return obj
}

// field reads a numeric property; missing or non-numeric properties fail.
func (h *Host) field(v goja.Value, name string) (float64, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, fmt.Errorf("expected an object with %q", name)
	}
	obj := v.ToObject(h.vm)
	prop := obj.Get(name)
	if prop == nil || goja.IsUndefined(prop) || goja.IsNull(prop) {
		return 0, fmt.Errorf("missing %q", name)
	}
	f := prop.ToFloat()
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%q is not a number", name)
	}
	return f, nil
}

func (h *Host) fields(v goja.Value, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		f, err := h.field(v, n)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func (h *Host) toRect(v goja.Value) (platform.Rect, error) {
	f, err := h.fields(v, "x", "y", "width", "height")
	if err != nil {
		return platform.Rect{}, err
	}
	return platform.Rect{X: int(f[0]), Y: int(f[1]), Width: int(f[2]), Height: int(f[3])}, nil
}

func (h *Host) toPoint(v goja.Value) (platform.Point, error) {
	f, err := h.fields(v, "x", "y")
	if err != nil {
		return platform.Point{}, err
	}
	return platform.Point{X: int(f[0]), Y: int(f[1])}, nil
}

func (h *Host) toSize(v goja.Value) (platform.Size, error) {
	f, err := h.fields(v, "width", "height")
	if err != nil {
		return platform.Size{}, err
	}
	return platform.Size{Width: int(f[0]), Height: int(f[1])}, nil
}

func (h *Host) toUnitRect(v goja.Value) (desktop.UnitRect, error) {
	f, err := h.fields(v, "x", "y", "width", "height")
	if err != nil {
		return desktop.UnitRect{}, err
	}
	return desktop.UnitRect{X: f[0], Y: f[1], Width: f[2], Height: f[3]}, nil
}

// maxCellIndex bounds cell coordinates so x+width stays representable.
const maxCellIndex = 1 << 20

// toCellGroup reads {x, y, width, height} in cells. Fractional or
// out-of-range values give grid.ErrInvalidCellGroup.
func (h *Host) toCellGroup(v goja.Value) (grid.CellGroup, error) {
	names := []string{"x", "y", "width", "height"}
	f, err := h.fields(v, names...)
	if err != nil {
		return grid.CellGroup{}, err
	}
	for i, n := range f {
		if n != math.Trunc(n) || math.Abs(n) > maxCellIndex {
			return grid.CellGroup{}, fmt.Errorf("%w: %s = %v is not a cell index", grid.ErrInvalidCellGroup, names[i], n)
		}
	}
	x, y, w, ht := int(f[0]), int(f[1]), int(f[2]), int(f[3])
	return grid.CellGroup{X0: x, X1: x + w - 1, Y0: y, Y1: y + ht - 1}, nil
}

// callbackArg returns the function in v, nil for null/undefined, or an error.
func callbackArg(v goja.Value) (goja.Callable, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("callback must be a function")
	}
	return fn, nil
}

// throw raises a JS TypeError carrying err.
func (h *Host) throw(err error) {
	panic(h.vm.NewTypeError(err.Error()))
}

// method installs a native function on obj.
func (h *Host) method(obj *goja.Object, name string, fn func(goja.FunctionCall) goja.Value) {
	_ = obj.Set(name, fn)
}

// callbackProperty installs an accessor pair whose setter stores a function
// (or clears it with null) and whose getter returns the stored value.
func (h *Host) callbackProperty(obj *goja.Object, name string, set func(goja.Callable)) {
	var current goja.Value = goja.Null()
	getter := h.vm.ToValue(func(goja.FunctionCall) goja.Value { return current })
	setter := h.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		v := call.Argument(0)
		fn, err := callbackArg(v)
		if err != nil {
			h.throw(fmt.Errorf("%s: %w", name, err))
		}
		if fn == nil {
			current = goja.Null()
		} else {
			current = v
		}
		set(fn)
		return goja.Undefined()
	})
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (h *Host) array(n int, item func(i int) goja.Value) goja.Value {
	items := make([]interface{}, n)
	for i := 0; i < n; i++ {
		items[i] = item(i)
	}
	return h.vm.NewArray(items...)
}
