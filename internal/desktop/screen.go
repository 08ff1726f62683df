package desktop

import (
	"fmt"

	"github.com/1broseidon/autumn/internal/platform"
)

// Screen is one connected display. A Screen is invalidated on every
// reconfiguration; queries on an invalidated Screen fail with
// platform.ErrStale.
type Screen struct {
	r      *ScreenRegistry
	id     uint64
	handle platform.Element
	name   string
	frame  platform.Rect
	inner  platform.Rect
	valid  bool
}

func (s *Screen) ID() uint64               { return s.id }
func (s *Screen) Handle() platform.Element { return s.handle }
func (s *Screen) Name() string             { return s.name }

// Valid reports whether the Screen survived every reconfiguration since it
// was created.
func (s *Screen) Valid() bool { return s.valid }

func (s *Screen) stale() error {
	return fmt.Errorf("screen %d (%s): %w", s.id, s.name, platform.ErrStale)
}

// FullFrame returns the physical bounds of the display.
func (s *Screen) FullFrame() (platform.Rect, error) {
	if !s.valid {
		return platform.Rect{}, s.stale()
	}
	return s.frame, nil
}

// InnerFrame returns the bounds minus panels and docks.
func (s *Screen) InnerFrame() (platform.Rect, error) {
	if !s.valid {
		return platform.Rect{}, s.stale()
	}
	return s.inner, nil
}

// Next returns the following screen in OS order, wrapping around.
func (s *Screen) Next() (*Screen, error) {
	if !s.valid {
		return nil, s.stale()
	}
	return s.r.neighbor(s, 1), nil
}

// Previous returns the preceding screen in OS order, wrapping around.
func (s *Screen) Previous() (*Screen, error) {
	if !s.valid {
		return nil, s.stale()
	}
	return s.r.neighbor(s, -1), nil
}

// Windows returns every window whose largest overlap is with this screen.
func (s *Screen) Windows() ([]*Window, error) {
	if !s.valid {
		return nil, s.stale()
	}
	var out []*Window
	for _, w := range s.r.d.windows.All() {
		if w.Screen() == s {
			out = append(out, w)
		}
	}
	return out, nil
}

// VisibleWindows is Windows restricted to visible windows.
func (s *Screen) VisibleWindows() ([]*Window, error) {
	all, err := s.Windows()
	if err != nil {
		return nil, err
	}
	var out []*Window
	for _, w := range all {
		if w.IsVisible() {
			out = append(out, w)
		}
	}
	return out, nil
}
