package grid

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/platform"
)

// ErrNoScreen is returned when a window lies on no known screen.
var ErrNoScreen = desktop.ErrNoScreen

// Manager applies grid operations to windows of a desktop. It must be used
// on the coordination loop.
type Manager struct {
	d         *desktop.Desktop
	spec      Spec
	perScreen map[string]Spec
	logger    *slog.Logger
}

// NewManager creates a manager with a default grid for every screen.
func NewManager(d *desktop.Desktop, spec Spec, logger *slog.Logger) (*Manager, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		d:         d,
		spec:      spec,
		perScreen: make(map[string]Spec),
		logger:    logger,
	}, nil
}

// Spec returns the default grid.
func (m *Manager) Spec() Spec { return m.spec }

// SetSpec replaces the default grid.
func (m *Manager) SetSpec(spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	m.spec = spec
	return nil
}

// SetScreenSpec overrides the grid for screens with the given name.
func (m *Manager) SetScreenSpec(screenName string, spec Spec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("screen %q: %w", screenName, err)
	}
	m.perScreen[screenName] = spec
	return nil
}

// ClearScreenSpecs drops every per-screen override.
func (m *Manager) ClearScreenSpecs() {
	m.perScreen = make(map[string]Spec)
}

// SpecFor returns the grid used on s.
func (m *Manager) SpecFor(s *desktop.Screen) Spec {
	if s != nil {
		if spec, ok := m.perScreen[s.Name()]; ok {
			return spec
		}
	}
	return m.spec
}

// FullScreenCellGroup returns the group covering the default grid.
func (m *Manager) FullScreenCellGroup() CellGroup { return m.spec.Full() }

// placement is a window resolved against its screen.
type placement struct {
	screen *desktop.Screen
	inner  platform.Rect
	spec   Spec
	group  CellGroup
}

func (m *Manager) locate(w *desktop.Window) (placement, error) {
	s := w.Screen()
	if s == nil {
		return placement{}, fmt.Errorf("window %d: %w", w.ID(), ErrNoScreen)
	}
	inner, err := s.InnerFrame()
	if err != nil {
		return placement{}, err
	}
	spec := m.SpecFor(s)
	g, err := spec.Approximate(inner, w.Frame())
	if err != nil {
		return placement{}, err
	}
	return placement{screen: s, inner: inner, spec: spec, group: g}, nil
}

// ApproximateCellGroup returns the group that best matches the window's
// current frame on its screen.
func (m *Manager) ApproximateCellGroup(w *desktop.Window) (CellGroup, error) {
	p, err := m.locate(w)
	if err != nil {
		return CellGroup{}, err
	}
	return p.group, nil
}

// MoveToCellGroup sets the window's frame to g on screen. An invalid group is
// rejected before the window is touched.
func (m *Manager) MoveToCellGroup(g CellGroup, w *desktop.Window, s *desktop.Screen) error {
	if s == nil {
		return fmt.Errorf("window %d: %w", w.ID(), ErrNoScreen)
	}
	inner, err := s.InnerFrame()
	if err != nil {
		return err
	}
	rect, err := m.SpecFor(s).Rect(inner, g)
	if err != nil {
		return err
	}
	return w.SetFrame(rect)
}

// Align snaps the window to the group nearest its current frame.
func (m *Manager) Align(w *desktop.Window) error {
	p, err := m.locate(w)
	if err != nil {
		return err
	}
	return m.MoveToCellGroup(p.group, w, p.screen)
}

// AlignAll aligns every visible window on a known screen. Failures do not
// stop the pass; they are joined into the returned error.
func (m *Manager) AlignAll() error {
	var errs []error
	for _, w := range m.d.Windows().Visible() {
		if w.Screen() == nil {
			continue
		}
		if err := m.Align(w); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// adjust recomputes the window's group with fn and applies it. An unchanged
// group leaves the window alone.
func (m *Manager) adjust(w *desktop.Window, fn func(Spec, CellGroup) CellGroup) error {
	p, err := m.locate(w)
	if err != nil {
		return err
	}
	next := fn(p.spec, p.group)
	if next == p.group {
		return nil
	}
	return m.MoveToCellGroup(next, w, p.screen)
}

func (m *Manager) Move(w *desktop.Window, dir Direction) error {
	return m.adjust(w, func(s Spec, g CellGroup) CellGroup { return s.Move(g, dir) })
}

func (m *Manager) Grow(w *desktop.Window, dir Direction) error {
	return m.adjust(w, func(s Spec, g CellGroup) CellGroup { return s.Grow(g, dir) })
}

func (m *Manager) Shrink(w *desktop.Window, dir Direction) error {
	return m.adjust(w, func(s Spec, g CellGroup) CellGroup { return s.Shrink(g, dir) })
}

func (m *Manager) MoveUp(w *desktop.Window) error    { return m.Move(w, Up) }
func (m *Manager) MoveDown(w *desktop.Window) error  { return m.Move(w, Down) }
func (m *Manager) MoveLeft(w *desktop.Window) error  { return m.Move(w, Left) }
func (m *Manager) MoveRight(w *desktop.Window) error { return m.Move(w, Right) }

func (m *Manager) GrowAbove(w *desktop.Window) error { return m.Grow(w, Up) }
func (m *Manager) GrowBelow(w *desktop.Window) error { return m.Grow(w, Down) }
func (m *Manager) GrowLeft(w *desktop.Window) error  { return m.Grow(w, Left) }
func (m *Manager) GrowRight(w *desktop.Window) error { return m.Grow(w, Right) }

func (m *Manager) ShrinkFromAbove(w *desktop.Window) error { return m.Shrink(w, Up) }
func (m *Manager) ShrinkFromBelow(w *desktop.Window) error { return m.Shrink(w, Down) }
func (m *Manager) ShrinkFromLeft(w *desktop.Window) error  { return m.Shrink(w, Left) }
func (m *Manager) ShrinkFromRight(w *desktop.Window) error { return m.Shrink(w, Right) }

// FillCurrentColumn stretches the window over every row of its columns.
func (m *Manager) FillCurrentColumn(w *desktop.Window) error {
	return m.adjust(w, func(s Spec, g CellGroup) CellGroup { return s.FillColumn(g) })
}

// FillCurrentRow stretches the window over every column of its rows.
func (m *Manager) FillCurrentRow(w *desktop.Window) error {
	return m.adjust(w, func(s Spec, g CellGroup) CellGroup { return s.FillRow(g) })
}

func (m *Manager) MoveToNextScreen(w *desktop.Window) error {
	return m.moveToScreen(w, (*desktop.Screen).Next)
}

func (m *Manager) MoveToPreviousScreen(w *desktop.Window) error {
	return m.moveToScreen(w, (*desktop.Screen).Previous)
}

// moveToScreen keeps the window's indices when the destination grid has the
// same shape; otherwise the frame is mapped proportionally into the
// destination's inner frame and approximated there.
func (m *Manager) moveToScreen(w *desktop.Window, neighbor func(*desktop.Screen) (*desktop.Screen, error)) error {
	p, err := m.locate(w)
	if err != nil {
		return err
	}
	dest, err := neighbor(p.screen)
	if err != nil {
		return err
	}
	if dest == nil || dest == p.screen {
		return nil
	}

	destSpec := m.SpecFor(dest)
	if destSpec.SameShape(p.spec) {
		return m.MoveToCellGroup(p.group, w, dest)
	}

	destInner, err := dest.InnerFrame()
	if err != nil {
		return err
	}
	mapped := mapRect(w.Frame(), p.inner, destInner)
	g, err := destSpec.Approximate(destInner, mapped)
	if err != nil {
		return err
	}
	return m.MoveToCellGroup(g, w, dest)
}

// mapRect scales r from the src frame into the dst frame.
func mapRect(r, src, dst platform.Rect) platform.Rect {
	if src.Empty() {
		return dst
	}
	sx := float64(dst.Width) / float64(src.Width)
	sy := float64(dst.Height) / float64(src.Height)
	return platform.Rect{
		X:      dst.X + roundHalfUp(float64(r.X-src.X)*sx),
		Y:      dst.Y + roundHalfUp(float64(r.Y-src.Y)*sy),
		Width:  roundHalfUp(float64(r.Width) * sx),
		Height: roundHalfUp(float64(r.Height) * sy),
	}
}

// Action is a named single-window grid operation.
type Action string

const (
	ActionAlign           Action = "align"
	ActionMoveUp          Action = "move_up"
	ActionMoveDown        Action = "move_down"
	ActionMoveLeft        Action = "move_left"
	ActionMoveRight       Action = "move_right"
	ActionGrowAbove       Action = "grow_above"
	ActionGrowBelow       Action = "grow_below"
	ActionGrowLeft        Action = "grow_left"
	ActionGrowRight       Action = "grow_right"
	ActionShrinkAbove     Action = "shrink_from_above"
	ActionShrinkBelow     Action = "shrink_from_below"
	ActionShrinkLeft      Action = "shrink_from_left"
	ActionShrinkRight     Action = "shrink_from_right"
	ActionFillColumn      Action = "fill_column"
	ActionFillRow         Action = "fill_row"
	ActionNextScreen      Action = "next_screen"
	ActionPreviousScreen  Action = "previous_screen"
	ActionFullScreenGroup Action = "full_screen"
)

func (m *Manager) actions() map[Action]func(*desktop.Window) error {
	return map[Action]func(*desktop.Window) error{
		ActionAlign:          m.Align,
		ActionMoveUp:         m.MoveUp,
		ActionMoveDown:       m.MoveDown,
		ActionMoveLeft:       m.MoveLeft,
		ActionMoveRight:      m.MoveRight,
		ActionGrowAbove:      m.GrowAbove,
		ActionGrowBelow:      m.GrowBelow,
		ActionGrowLeft:       m.GrowLeft,
		ActionGrowRight:      m.GrowRight,
		ActionShrinkAbove:    m.ShrinkFromAbove,
		ActionShrinkBelow:    m.ShrinkFromBelow,
		ActionShrinkLeft:     m.ShrinkFromLeft,
		ActionShrinkRight:    m.ShrinkFromRight,
		ActionFillColumn:     m.FillCurrentColumn,
		ActionFillRow:        m.FillCurrentRow,
		ActionNextScreen:     m.MoveToNextScreen,
		ActionPreviousScreen: m.MoveToPreviousScreen,
		ActionFullScreenGroup: func(w *desktop.Window) error {
			s := w.Screen()
			return m.MoveToCellGroup(m.SpecFor(s).Full(), w, s)
		},
	}
}

// Actions lists every action name, sorted.
func (m *Manager) Actions() []string {
	names := make([]string, 0, len(m.actions()))
	for a := range m.actions() {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return names
}

// Apply runs the named action on w.
func (m *Manager) Apply(action string, w *desktop.Window) error {
	fn, ok := m.actions()[Action(strings.ToLower(strings.TrimSpace(action)))]
	if !ok {
		return fmt.Errorf("unknown grid action %q (available: %s)", action, strings.Join(m.Actions(), ", "))
	}
	if err := fn(w); err != nil {
		return fmt.Errorf("grid %s on window %d: %w", action, w.ID(), err)
	}
	m.logger.Debug("grid action applied", "action", action, "window_id", w.ID())
	return nil
}
