package hotkeys

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/1broseidon/autumn/internal/platform"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// x11Accessor is implemented by backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

type binding struct {
	sequence string
	fn       func()
}

// Binder grabs global key sequences on the X11 root window. Each sequence is
// grabbed once; every active binding for it runs on key press, in bind order.
type Binder struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	logger *slog.Logger

	mu        sync.Mutex
	nextToken platform.Token
	bindings  map[platform.Token]binding
	grabbed   map[string]bool
}

var _ platform.HotkeyBinder = (*Binder)(nil)

var ignoreModsOnce sync.Once

// NewBinder creates a binder for an X11-backed platform.
func NewBinder(backend platform.Backend, logger *slog.Logger) (*Binder, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok {
		return nil, fmt.Errorf("backend %T does not expose an X11 connection", backend)
	}
	if logger == nil {
		logger = slog.Default()
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Binder{
		xu:       xu,
		root:     accessor.RootWindow(),
		logger:   logger,
		bindings: make(map[platform.Token]binding),
		grabbed:  make(map[string]bool),
	}, nil
}

// BindHotkey registers fn for a key sequence such as "Mod4-Shift-Left".
func (b *Binder) BindHotkey(sequence string, fn func()) (platform.Token, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.grabbed[sequence] {
		err := keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
			b.dispatch(sequence)
		}).Connect(b.xu, b.root, sequence, true)
		if err != nil {
			return 0, fmt.Errorf("grab %q: %w", sequence, err)
		}
		b.grabbed[sequence] = true
	}

	b.nextToken++
	b.bindings[b.nextToken] = binding{sequence: sequence, fn: fn}
	return b.nextToken, nil
}

// UnbindHotkey deactivates a binding. The key grab is kept so the sequence
// can be rebound cheaply after a script reload.
func (b *Binder) UnbindHotkey(tok platform.Token) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.bindings[tok]; !ok {
		return fmt.Errorf("unknown hotkey token %d", tok)
	}
	delete(b.bindings, tok)
	return nil
}

func (b *Binder) dispatch(sequence string) {
	b.mu.Lock()
	tokens := make([]platform.Token, 0, len(b.bindings))
	for tok, bd := range b.bindings {
		if bd.sequence == sequence {
			tokens = append(tokens, tok)
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
	fns := make([]func(), 0, len(tokens))
	for _, tok := range tokens {
		fns = append(fns, b.bindings[tok].fn)
	}
	b.mu.Unlock()

	if len(fns) == 0 {
		b.logger.Debug("hotkey has no active binding", "sequence", sequence)
	}
	for _, fn := range fns {
		fn()
	}
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
