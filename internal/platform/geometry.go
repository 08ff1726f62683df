package platform

// Point is a position in screen coordinates.
type Point struct {
	X int
	Y int
}

// Size is a width/height pair.
type Size struct {
	Width  int
	Height int
}

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Rect) Right() int  { return r.X + r.Width }
func (r Rect) Bottom() int { return r.Y + r.Height }

// Center returns the midpoint of the rect, rounded toward the origin.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

func (r Rect) Position() Point { return Point{X: r.X, Y: r.Y} }
func (r Rect) Size() Size      { return Size{Width: r.Width, Height: r.Height} }

// Empty reports whether the rect covers no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Area returns Width*Height, or 0 for empty rects.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Contains reports whether the point lies inside the rect (right/bottom exclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.Right() && p.Y >= r.Y && p.Y < r.Bottom()
}

// ContainsRect reports whether o lies entirely within r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Intersect returns the overlapping region, or the zero Rect when there is none.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.Right(), o.Right())
	y2 := min(r.Bottom(), o.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

func (r Rect) Intersects(o Rect) bool { return !r.Intersect(o).Empty() }

// Union returns the smallest rect containing both.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.Right(), o.Right())
	y2 := max(r.Bottom(), o.Bottom())
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Inset shrinks the rect by dx on the left and right and dy on top and bottom.
// Negative values grow it. The result never has a negative size.
func (r Rect) Inset(dx, dy int) Rect {
	out := Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width - 2*dx, Height: r.Height - 2*dy}
	if out.Width < 0 {
		out.Width = 0
	}
	if out.Height < 0 {
		out.Height = 0
	}
	return out
}

func (r Rect) Offset(dx, dy int) Rect {
	r.X += dx
	r.Y += dy
	return r
}
