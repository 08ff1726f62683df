package grid

import (
	"errors"
	"testing"

	"github.com/1broseidon/autumn/internal/platform"
)

var square = platform.Rect{X: 0, Y: 0, Width: 1000, Height: 1000}

func TestSpecRect(t *testing.T) {
	tests := []struct {
		name  string
		spec  Spec
		inner platform.Rect
		group CellGroup
		want  platform.Rect
	}{
		{
			name:  "2x2 top left",
			spec:  Spec{Rows: 2, Cols: 2},
			inner: square,
			group: CellGroup{0, 0, 0, 0},
			want:  platform.Rect{X: 0, Y: 0, Width: 500, Height: 500},
		},
		{
			name:  "2x2 top right",
			spec:  Spec{Rows: 2, Cols: 2},
			inner: square,
			group: CellGroup{1, 1, 0, 0},
			want:  platform.Rect{X: 500, Y: 0, Width: 500, Height: 500},
		},
		{
			name:  "full group covers usable area",
			spec:  Spec{Rows: 2, Cols: 3, Padding: 10, Margin: 20},
			inner: square,
			group: CellGroup{0, 2, 0, 1},
			want:  platform.Rect{X: 20, Y: 20, Width: 960, Height: 960},
		},
		{
			name:  "padding between cells only",
			spec:  Spec{Rows: 1, Cols: 2, Padding: 10},
			inner: square,
			group: CellGroup{1, 1, 0, 0},
			want:  platform.Rect{X: 505, Y: 0, Width: 495, Height: 1000},
		},
		{
			name:  "offset inner frame",
			spec:  Spec{Rows: 2, Cols: 2, Margin: 10},
			inner: platform.Rect{X: 1000, Y: 30, Width: 800, Height: 570},
			group: CellGroup{1, 1, 1, 1},
			want:  platform.Rect{X: 1400, Y: 315, Width: 390, Height: 275},
		},
		{
			name:  "uneven split rounds edges independently",
			spec:  Spec{Rows: 1, Cols: 3},
			inner: platform.Rect{Width: 1000, Height: 100},
			group: CellGroup{1, 1, 0, 0},
			want:  platform.Rect{X: 333, Y: 0, Width: 334, Height: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Rect(tt.inner, tt.group)
			if err != nil {
				t.Fatalf("Rect() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Rect() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSpecRect_RejectsInvalidGroups(t *testing.T) {
	spec := Spec{Rows: 2, Cols: 2}
	groups := []CellGroup{
		{X0: 1, X1: 0, Y0: 0, Y1: 0},
		{X0: 0, X1: 0, Y0: 1, Y1: 0},
		{X0: -1, X1: 0, Y0: 0, Y1: 0},
		{X0: 0, X1: 2, Y0: 0, Y1: 0},
		{X0: 0, X1: 0, Y0: 0, Y1: 2},
	}
	for _, g := range groups {
		if _, err := spec.Rect(square, g); !errors.Is(err, ErrInvalidCellGroup) {
			t.Errorf("Rect(%s) error = %v, want ErrInvalidCellGroup", g, err)
		}
	}
}

func TestSpecValidate(t *testing.T) {
	bad := []Spec{
		{Rows: 0, Cols: 2},
		{Rows: 2, Cols: -1},
		{Rows: 2, Cols: 2, Padding: -1},
		{Rows: 2, Cols: 2, Margin: -5},
	}
	for _, s := range bad {
		if err := s.Validate(); !errors.Is(err, ErrInvalidSpec) {
			t.Errorf("Validate(%+v) error = %v, want ErrInvalidSpec", s, err)
		}
	}
	if err := (Spec{Rows: 1, Cols: 1}).Validate(); err != nil {
		t.Errorf("Validate(1x1) error = %v", err)
	}

	tooTight := Spec{Rows: 1, Cols: 4, Padding: 400}
	if _, err := tooTight.Rect(square, CellGroup{}); !errors.Is(err, ErrInvalidSpec) {
		t.Errorf("expected oversized padding to be rejected, got %v", err)
	}
}

func TestApproximate(t *testing.T) {
	spec := Spec{Rows: 2, Cols: 2}
	tests := []struct {
		name  string
		frame platform.Rect
		want  CellGroup
	}{
		{"exact cell", platform.Rect{X: 0, Y: 0, Width: 500, Height: 500}, CellGroup{0, 0, 0, 0}},
		{"exact full", square, CellGroup{0, 1, 0, 1}},
		{"slightly off", platform.Rect{X: 480, Y: 10, Width: 530, Height: 470}, CellGroup{1, 1, 0, 0}},
		{"tiny window", platform.Rect{X: 600, Y: 600, Width: 10, Height: 10}, CellGroup{1, 1, 1, 1}},
		{"off screen clamps", platform.Rect{X: -300, Y: 2000, Width: 100, Height: 100}, CellGroup{0, 0, 1, 1}},
		{"halfway edge rounds up", platform.Rect{X: 250, Y: 0, Width: 750, Height: 1000}, CellGroup{1, 1, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := spec.Approximate(square, tt.frame)
			if err != nil {
				t.Fatalf("Approximate() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Approximate(%+v) = %s, want %s", tt.frame, got, tt.want)
			}
		})
	}
}

func TestApproximate_RoundTripsEveryGroup(t *testing.T) {
	spec := Spec{Rows: 3, Cols: 4, Padding: 7, Margin: 13}
	inner := platform.Rect{X: 0, Y: 27, Width: 1917, Height: 1053}

	for x0 := 0; x0 < spec.Cols; x0++ {
		for x1 := x0; x1 < spec.Cols; x1++ {
			for y0 := 0; y0 < spec.Rows; y0++ {
				for y1 := y0; y1 < spec.Rows; y1++ {
					g := CellGroup{X0: x0, X1: x1, Y0: y0, Y1: y1}
					rect, err := spec.Rect(inner, g)
					if err != nil {
						t.Fatalf("Rect(%s) error = %v", g, err)
					}
					back, err := spec.Approximate(inner, rect)
					if err != nil {
						t.Fatalf("Approximate() error = %v", err)
					}
					if back != g {
						t.Fatalf("round trip %s -> %+v -> %s", g, rect, back)
					}
				}
			}
		}
	}
}

func TestMoveGrowShrink(t *testing.T) {
	spec := Spec{Rows: 3, Cols: 3}
	center := CellGroup{1, 1, 1, 1}
	corner := CellGroup{0, 0, 0, 0}
	wide := CellGroup{0, 2, 1, 1}

	tests := []struct {
		name string
		got  CellGroup
		want CellGroup
	}{
		{"move up", spec.Move(center, Up), CellGroup{1, 1, 0, 0}},
		{"move down", spec.Move(center, Down), CellGroup{1, 1, 2, 2}},
		{"move left at edge", spec.Move(corner, Left), corner},
		{"move up at edge", spec.Move(corner, Up), corner},
		{"move wide right blocked", spec.Move(wide, Right), wide},
		{"grow above", spec.Grow(center, Up), CellGroup{1, 1, 0, 1}},
		{"grow right", spec.Grow(center, Right), CellGroup{1, 2, 1, 1}},
		{"grow left at edge", spec.Grow(corner, Left), corner},
		{"grow below at edge", spec.Grow(CellGroup{0, 0, 2, 2}, Down), CellGroup{0, 0, 2, 2}},
		{"shrink from left", spec.Shrink(wide, Left), CellGroup{1, 2, 1, 1}},
		{"shrink from right", spec.Shrink(wide, Right), CellGroup{0, 1, 1, 1}},
		{"shrink single column", spec.Shrink(center, Right), center},
		{"shrink single row", spec.Shrink(center, Up), center},
		{"fill column", spec.FillColumn(center), CellGroup{1, 1, 0, 2}},
		{"fill row", spec.FillRow(center), CellGroup{0, 2, 1, 1}},
		{"full", spec.Full(), CellGroup{0, 2, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}
