package script

import (
	"fmt"
	"sort"
	"strings"

	"github.com/1broseidon/autumn/internal/platform"
	"github.com/dop251/goja"
)

var modifierNames = map[string]string{
	"command": "Mod4",
	"cmd":     "Mod4",
	"super":   "Mod4",
	"mod4":    "Mod4",
	"option":  "Mod1",
	"alt":     "Mod1",
	"mod1":    "Mod1",
	"control": "Control",
	"ctrl":    "Control",
	"shift":   "Shift",
}

// modifierOrder fixes the order modifiers appear in a key sequence.
var modifierOrder = map[string]int{"Control": 0, "Shift": 1, "Mod1": 2, "Mod4": 3}

var keyNames = map[string]string{
	"up":     "Up",
	"down":   "Down",
	"left":   "Left",
	"right":  "Right",
	"return": "Return",
	"enter":  "Return",
	"space":  "space",
	"tab":    "Tab",
	"escape": "Escape",
	"esc":    "Escape",
}

// keySequence builds an X11 key sequence such as "Shift-Mod4-Left".
func keySequence(mods []string, key string) (string, error) {
	seen := make(map[string]bool)
	var parts []string
	for _, mod := range mods {
		name, ok := modifierNames[strings.ToLower(strings.TrimSpace(mod))]
		if !ok {
			return "", fmt.Errorf("unknown modifier %q", mod)
		}
		if !seen[name] {
			seen[name] = true
			parts = append(parts, name)
		}
	}
	sort.Slice(parts, func(i, j int) bool { return modifierOrder[parts[i]] < modifierOrder[parts[j]] })

	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	if name, ok := keyNames[strings.ToLower(key)]; ok {
		key = name
	} else if len(key) == 1 {
		key = strings.ToLower(key)
	}
	return strings.Join(append(parts, key), "-"), nil
}

// hotkeyModule exposes the Hotkey global.
type hotkeyModule struct {
	h      *Host
	tokens map[platform.Token]bool
}

func (m *hotkeyModule) name() string { return "Hotkey" }

func (m *hotkeyModule) start(h *Host) error {
	m.h = h
	m.tokens = make(map[platform.Token]bool)

	global := h.vm.NewObject()
	h.method(global, "activate", func(call goja.FunctionCall) goja.Value {
		var mods []string
		if err := h.vm.ExportTo(call.Argument(0), &mods); err != nil {
			h.throw(fmt.Errorf("Hotkey.activate: modifiers must be an array of strings"))
		}
		seq, err := keySequence(mods, call.Argument(1).String())
		if err != nil {
			h.throw(fmt.Errorf("Hotkey.activate: %w", err))
		}
		fn, err := callbackArg(call.Argument(2))
		if err != nil || fn == nil {
			h.throw(fmt.Errorf("Hotkey.activate: handler must be a function"))
		}

		tok, err := h.hotkeys.BindHotkey(seq, func() {
			h.call("hotkey "+seq, fn)
		})
		if err != nil {
			h.logger.Warn("hotkey bind failed", "sequence", seq, "error", err)
			return goja.Null()
		}
		m.tokens[tok] = true
		return h.vm.ToValue(uint64(tok))
	})
	h.method(global, "deactivate", func(call goja.FunctionCall) goja.Value {
		tok := platform.Token(call.Argument(0).ToInteger())
		if !m.tokens[tok] {
			return h.vm.ToValue(false)
		}
		delete(m.tokens, tok)
		return h.commandResult("hotkey.deactivate", h.hotkeys.UnbindHotkey(tok))
	})
	return h.vm.Set("Hotkey", global)
}

func (m *hotkeyModule) stop() {
	for tok := range m.tokens {
		if err := m.h.hotkeys.UnbindHotkey(tok); err != nil {
			m.h.logger.Debug("hotkey unbind failed", "token", tok, "error", err)
		}
	}
	m.tokens = nil
}
