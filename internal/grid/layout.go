// Package grid implements a row/column tiling layout: cell groups to pixel
// rectangles and back, plus movement within and between screens.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/1broseidon/autumn/internal/platform"
)

var (
	// ErrInvalidCellGroup is returned for inverted or out-of-bounds cell groups.
	ErrInvalidCellGroup = errors.New("invalid cell group")
	// ErrInvalidSpec is returned for grids that cannot be laid out.
	ErrInvalidSpec = errors.New("invalid grid spec")
)

// Spec describes a grid: Padding is the gap between adjacent cells and Margin
// the gap between the outermost cells and the screen's inner frame.
type Spec struct {
	Rows    int
	Cols    int
	Padding int
	Margin  int
}

func (s Spec) Validate() error {
	if s.Rows <= 0 || s.Cols <= 0 {
		return fmt.Errorf("%w: rows and cols must be positive, got %dx%d", ErrInvalidSpec, s.Rows, s.Cols)
	}
	if s.Padding < 0 || s.Margin < 0 {
		return fmt.Errorf("%w: padding and margin must be non-negative", ErrInvalidSpec)
	}
	return nil
}

// SameShape reports whether both grids have the same rows and columns.
func (s Spec) SameShape(o Spec) bool { return s.Rows == o.Rows && s.Cols == o.Cols }

// CellGroup is the closed index rectangle [X0,X1] x [Y0,Y1].
type CellGroup struct {
	X0 int `json:"x0"`
	X1 int `json:"x1"`
	Y0 int `json:"y0"`
	Y1 int `json:"y1"`
}

func (g CellGroup) Cols() int { return g.X1 - g.X0 + 1 }
func (g CellGroup) Rows() int { return g.Y1 - g.Y0 + 1 }

func (g CellGroup) String() string {
	return fmt.Sprintf("{x0:%d x1:%d y0:%d y1:%d}", g.X0, g.X1, g.Y0, g.Y1)
}

// Full returns the group covering every cell.
func (s Spec) Full() CellGroup {
	return CellGroup{X0: 0, X1: s.Cols - 1, Y0: 0, Y1: s.Rows - 1}
}

// Check returns ErrInvalidCellGroup unless g lies inside the grid and is not
// inverted.
func (s Spec) Check(g CellGroup) error {
	if g.X0 < 0 || g.Y0 < 0 || g.X0 > g.X1 || g.Y0 > g.Y1 || g.X1 >= s.Cols || g.Y1 >= s.Rows {
		return fmt.Errorf("%w: %s on %dx%d grid", ErrInvalidCellGroup, g, s.Rows, s.Cols)
	}
	return nil
}

// axis is one dimension of the usable area split into n cells.
type axis struct {
	origin float64
	cell   float64
	pad    float64
	n      int
}

func newAxis(origin, length, n, pad int) (axis, error) {
	cell := (float64(length) - float64((n-1)*pad)) / float64(n)
	if cell <= 0 {
		return axis{}, fmt.Errorf("%w: %d cells with padding %d do not fit in %dpx", ErrInvalidSpec, n, pad, length)
	}
	return axis{origin: float64(origin), cell: cell, pad: float64(pad), n: n}, nil
}

func (a axis) step() float64 { return a.cell + a.pad }

func (a axis) start(i int) float64 { return a.origin + float64(i)*a.step() }

func (a axis) end(i int) float64 { return a.start(i) + a.cell }

// span returns the pixel start and length covering cells i0..i1. Both edges
// are rounded independently so adjacent groups never overlap or leave gaps.
func (a axis) span(i0, i1 int) (int, int) {
	lo := roundHalfUp(a.start(i0))
	hi := roundHalfUp(a.end(i1))
	return lo, hi - lo
}

// nearest maps a pixel range onto the closest cell indices, clamped to the
// axis. The leading edge snaps to the nearest cell start; the trailing edge
// snaps to the nearest cell end.
func (a axis) nearest(lo, hi int) (int, int) {
	i0 := clamp(roundHalfUp((float64(lo)-a.origin)/a.step()), 0, a.n-1)
	k := clamp(roundHalfUp((float64(hi)-a.origin+a.pad)/a.step()), 1, a.n)
	i1 := k - 1
	if i1 < i0 {
		i1 = i0
	}
	return i0, i1
}

func (s Spec) axes(inner platform.Rect) (axis, axis, error) {
	if err := s.Validate(); err != nil {
		return axis{}, axis{}, err
	}
	usable := inner.Inset(s.Margin, s.Margin)
	x, err := newAxis(usable.X, usable.Width, s.Cols, s.Padding)
	if err != nil {
		return axis{}, axis{}, err
	}
	y, err := newAxis(usable.Y, usable.Height, s.Rows, s.Padding)
	if err != nil {
		return axis{}, axis{}, err
	}
	return x, y, nil
}

// Rect returns the pixel rectangle of g within a screen's inner frame.
func (s Spec) Rect(inner platform.Rect, g CellGroup) (platform.Rect, error) {
	if err := s.Check(g); err != nil {
		return platform.Rect{}, err
	}
	x, y, err := s.axes(inner)
	if err != nil {
		return platform.Rect{}, err
	}
	left, width := x.span(g.X0, g.X1)
	top, height := y.span(g.Y0, g.Y1)
	return platform.Rect{X: left, Y: top, Width: width, Height: height}, nil
}

// Approximate returns the cell group whose edges lie closest to frame's
// edges. Frames outside the usable area clamp to the nearest border cells.
// Halfway cases round toward the higher index.
func (s Spec) Approximate(inner, frame platform.Rect) (CellGroup, error) {
	x, y, err := s.axes(inner)
	if err != nil {
		return CellGroup{}, err
	}
	x0, x1 := x.nearest(frame.X, frame.Right())
	y0, y1 := y.nearest(frame.Y, frame.Bottom())
	return CellGroup{X0: x0, X1: x1, Y0: y0, Y1: y1}, nil
}

// Direction names the edge or heading of a grid operation.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Move shifts g one cell toward dir. A shift that would leave the grid
// returns g unchanged.
func (s Spec) Move(g CellGroup, dir Direction) CellGroup {
	switch dir {
	case Up:
		if g.Y0 > 0 {
			g.Y0--
			g.Y1--
		}
	case Down:
		if g.Y1 < s.Rows-1 {
			g.Y0++
			g.Y1++
		}
	case Left:
		if g.X0 > 0 {
			g.X0--
			g.X1--
		}
	case Right:
		if g.X1 < s.Cols-1 {
			g.X0++
			g.X1++
		}
	}
	return g
}

// Grow extends the edge of g facing dir by one cell, clamped to the grid.
func (s Spec) Grow(g CellGroup, dir Direction) CellGroup {
	switch dir {
	case Up:
		g.Y0 = max(g.Y0-1, 0)
	case Down:
		g.Y1 = min(g.Y1+1, s.Rows-1)
	case Left:
		g.X0 = max(g.X0-1, 0)
	case Right:
		g.X1 = min(g.X1+1, s.Cols-1)
	}
	return g
}

// Shrink pulls the edge of g facing dir in by one cell. A group never shrinks
// below one cell on either axis.
func (s Spec) Shrink(g CellGroup, dir Direction) CellGroup {
	switch dir {
	case Up:
		if g.Rows() > 1 {
			g.Y0++
		}
	case Down:
		if g.Rows() > 1 {
			g.Y1--
		}
	case Left:
		if g.Cols() > 1 {
			g.X0++
		}
	case Right:
		if g.Cols() > 1 {
			g.X1--
		}
	}
	return g
}

// FillColumn stretches g over every row, keeping its columns.
func (s Spec) FillColumn(g CellGroup) CellGroup {
	g.Y0, g.Y1 = 0, s.Rows-1
	return g
}

// FillRow stretches g over every column, keeping its rows.
func (s Spec) FillRow(g CellGroup) CellGroup {
	g.X0, g.X1 = 0, s.Cols-1
	return g
}

// roundHalfUp rounds to the nearest integer, with .5 going up.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
