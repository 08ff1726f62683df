package script

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/grid"
	"github.com/1broseidon/autumn/internal/platform"
	"github.com/1broseidon/autumn/internal/platform/fake"
	"github.com/1broseidon/autumn/internal/runloop"
)

var square = platform.Rect{X: 0, Y: 0, Width: 1000, Height: 1000}

type harness struct {
	t       *testing.T
	backend *fake.Backend
	loop    *runloop.Loop
	desktop *desktop.Desktop
	host    *Host
	app     platform.Element
	win     platform.Element
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	b := fake.New()
	b.SetDisplays(platform.Display{Handle: 1, Name: "DP-1", Bounds: square, Usable: square})
	app := b.AddApp(10, "xterm")
	win := b.AddWindow(app, "shell", platform.Rect{X: 100, Y: 100, Width: 300, Height: 300})

	loop := runloop.New()
	d := desktop.New(b, loop, nil)
	if err := d.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	gm, err := grid.NewManager(d, grid.Spec{Rows: 2, Cols: 2}, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	h := New(d, gm, nil, opts...)
	if err := h.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(h.Stop)
	return &harness{t: t, backend: b, loop: loop, desktop: d, host: h, app: app, win: win}
}

func (h *harness) eval(src string) any {
	h.t.Helper()
	v, err := h.host.Eval(src)
	if err != nil {
		h.t.Fatalf("Eval(%q) error = %v", src, err)
	}
	return v
}

func (h *harness) window() *desktop.Window {
	h.t.Helper()
	w := h.desktop.Windows().WindowForElement(h.win)
	if w == nil {
		h.t.Fatalf("window %d not registered", h.win)
	}
	return w
}

func TestGlobals_QueryRegistries(t *testing.T) {
	h := newHarness(t)
	h.backend.SetFocused(h.win)

	tests := []struct {
		src  string
		want any
	}{
		{`App.allApps().length`, int64(1)},
		{`App.find("xterm").pid`, int64(10)},
		{`App.find("nope")`, nil},
		{`App.focusedApp().name`, "xterm"},
		{`Window.allWindows().length`, int64(1)},
		{`Window.focusedWindow().title()`, "shell"},
		{`Window.focusedWindow().app().name`, "xterm"},
		{`Window.focusedWindow().frame().width`, int64(300)},
		{`Screen.allScreens()[0].name`, "DP-1"},
		{`Screen.currentScreen().innerFrame().height`, int64(1000)},
		{`Screen.currentScreen().allWindows().length`, int64(1)},
		{`GridWM.cols`, int64(2)},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if got := h.eval(tt.src); got != tt.want {
				t.Fatalf("Eval(%q) = %#v, want %#v", tt.src, got, tt.want)
			}
		})
	}
}

func TestWrappers_CachedPerEntity(t *testing.T) {
	h := newHarness(t)
	h.backend.SetFocused(h.win)

	checks := []string{
		`Window.allWindows()[0] === Window.focusedWindow()`,
		`Window.focusedWindow().app() === App.find("xterm")`,
		`App.allApps()[0].mainWindow() === Window.allWindows()[0]`,
		`Screen.currentScreen() === Screen.allScreens()[0]`,
	}
	for _, src := range checks {
		if got := h.eval(src); got != true {
			t.Errorf("Eval(%q) = %v, want true", src, got)
		}
	}
}

func TestWindowCallbacks_FireOnLoop(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var events = [];
		var w = Window.allWindows()[0];
		w.onMoved = function(win) { events.push("moved:" + win.title()); };
		w.onResized = function(win) { events.push("resized"); };
		w.onTitleChanged = function(win) { events.push("title:" + win.title()); };
	`)

	h.backend.MoveWindowExternally(h.win, platform.Rect{X: 0, Y: 0, Width: 300, Height: 300})
	h.backend.SetTitle(h.win, "vim")
	if got := h.eval(`events.join(",")`); got != "" {
		t.Fatalf("callbacks ran before the loop drained: %v", got)
	}
	h.loop.Drain()

	if got := h.eval(`events.join(",")`); got != "moved:shell,title:vim" {
		t.Fatalf("events = %v", got)
	}

	h.eval(`w.onMoved = null`)
	if h.window().Callback(desktop.EventMoved) != nil {
		t.Fatalf("assigning null left the moved callback installed")
	}
	if got := h.eval(`w.onMoved`); got != nil {
		t.Fatalf("onMoved after clearing = %v, want null", got)
	}
}

func TestWindowClosed_CallbackThenHook(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var log = [];
		var w = Window.allWindows()[0];
		w.onClosed = function(win) { log.push("closed:" + (win === w)); };
	`)

	h.backend.DestroyWindow(h.win)
	h.loop.Drain()

	if got := h.eval(`log.join(",")`); got != "closed:true" {
		t.Fatalf("log = %v", got)
	}
	if got := h.eval(`w.focus()`); got != false {
		t.Fatalf("focus() on a closed window = %v, want false", got)
	}
	if got := h.eval(`Window.allWindows().length`); got != int64(0) {
		t.Fatalf("allWindows() after close = %v", got)
	}
}

func TestHooks_LaunchOpenAndTerminate(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var log = [];
		App.onLaunched = function(app) {
			log.push("launched:" + app.name);
			app.onTermination = function(a) { log.push("terminated:" + a.name); };
		};
		Window.onOpened = function(win) { log.push("opened:" + win.title()); };
	`)

	editor := h.backend.Launch(20, "editor")
	h.loop.Drain()
	h.backend.OpenWindow(editor, "notes", platform.Rect{X: 0, Y: 0, Width: 100, Height: 100})
	h.loop.Drain()
	h.backend.Terminate(editor)
	h.loop.Drain()

	want := "launched:editor,opened:notes,terminated:editor"
	if got := h.eval(`log.join(",")`); got != want {
		t.Fatalf("log = %v, want %v", got, want)
	}
}

func TestCallbackException_IsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.eval(`Window.onOpened = function() { throw new Error("boom"); };`)

	el := h.backend.OpenWindow(h.app, "second", platform.Rect{X: 0, Y: 0, Width: 100, Height: 100})
	h.loop.Drain()

	if h.desktop.Windows().WindowForElement(el) == nil {
		t.Fatalf("window was not registered after a throwing hook")
	}
	if got := h.eval(`1 + 1`); got != int64(2) {
		t.Fatalf("runtime unusable after callback exception: %v", got)
	}
}

func TestScreenChanged_DropsWrappersAndNotifies(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var changes = 0;
		var before = Screen.allScreens()[0];
		Screen.onChanged = function() { changes++; };
	`)

	h.backend.Reconfigure(platform.Display{Handle: 2, Name: "HDMI-1", Bounds: square, Usable: square})
	h.loop.Drain()

	if got := h.eval(`changes`); got != int64(1) {
		t.Fatalf("changes = %v, want 1", got)
	}
	if got := h.eval(`Screen.allScreens()[0].name`); got != "HDMI-1" {
		t.Fatalf("screen after rebuild = %v", got)
	}
	if got := h.eval(`before.innerFrame()`); got != nil {
		t.Fatalf("stale screen innerFrame() = %v, want null", got)
	}
}

func TestMoveToCellGroup_RejectsStaleOrUnknownScreen(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var w = Window.allWindows()[0];
		var before = Screen.allScreens()[0];
	`)

	big := platform.Rect{X: 0, Y: 0, Width: 2000, Height: 2000}
	h.backend.Reconfigure(platform.Display{Handle: 2, Name: "DP-1", Bounds: big, Usable: big})
	h.loop.Drain()

	start := platform.Rect{X: 100, Y: 100, Width: 300, Height: 300}
	tests := []struct {
		name string
		src  string
	}{
		{"stale wrapper with same name", `GridWM.moveToCellGroup({x: 0, y: 0, width: 1, height: 1}, w, before)`},
		{"plain object", `GridWM.moveToCellGroup({x: 1, y: 1, width: 1, height: 1}, w, {name: "DP-1"})`},
		{"unknown name", `GridWM.moveToCellGroup({x: 1, y: 1, width: 1, height: 1}, w, {name: "nope"})`},
		{"not an object", `GridWM.moveToCellGroup({x: 1, y: 1, width: 1, height: 1}, w, "DP-1")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.eval(tt.src); got != false {
				t.Fatalf("moveToCellGroup() = %v, want false", got)
			}
			h.loop.Drain()
			if got := h.backend.Frame(h.win); got != start {
				t.Fatalf("frame = %+v, want unchanged %+v", got, start)
			}
		})
	}

	if got := h.eval(`GridWM.moveToCellGroup({x: 1, y: 1, width: 1, height: 1}, w, Screen.allScreens()[0])`); got != true {
		t.Fatalf("moveToCellGroup() on live screen = %v, want true", got)
	}
	h.loop.Drain()
	want := platform.Rect{X: 1000, Y: 1000, Width: 1000, Height: 1000}
	if got := h.backend.Frame(h.win); got != want {
		t.Fatalf("frame = %+v, want %+v", got, want)
	}
}

func TestMoveToCellGroup_RejectsNonIntegralCells(t *testing.T) {
	h := newHarness(t)
	h.eval(`var w = Window.allWindows()[0];`)

	start := h.backend.Frame(h.win)
	for _, src := range []string{
		`GridWM.moveToCellGroup({x: 0.9, y: 0, width: 1, height: 1}, w)`,
		`GridWM.moveToCellGroup({x: 0, y: 0, width: 1.5, height: 1}, w)`,
		`GridWM.moveToCellGroup({x: 1e300, y: 0, width: 1, height: 1}, w)`,
		`GridWM.moveToCellGroup({x: 0, y: 0, width: Infinity, height: 1}, w)`,
	} {
		if got := h.eval(src); got != false {
			t.Fatalf("%s = %v, want false", src, got)
		}
	}
	h.loop.Drain()
	if got := h.backend.Frame(h.win); got != start {
		t.Fatalf("frame = %+v, want unchanged %+v", got, start)
	}
}

func TestCommands_ReturnBooleans(t *testing.T) {
	h := newHarness(t)
	h.eval(`var w = Window.allWindows()[0];`)

	if got := h.eval(`w.setFrame({x: 10, y: 20, width: 200, height: 100})`); got != true {
		t.Fatalf("setFrame() = %v", got)
	}
	want := platform.Rect{X: 10, Y: 20, Width: 200, Height: 100}
	if got := h.backend.Frame(h.win); got != want {
		t.Fatalf("frame = %+v, want %+v", got, want)
	}

	if got := h.eval(`w.moveToPercentOfScreen({x: 0.5, y: 0, width: 0.5, height: 1})`); got != true {
		t.Fatalf("moveToPercentOfScreen() = %v", got)
	}
	want = platform.Rect{X: 500, Y: 0, Width: 500, Height: 1000}
	if got := h.backend.Frame(h.win); got != want {
		t.Fatalf("frame = %+v, want %+v", got, want)
	}

	h.backend.Fail(h.win, platform.ErrTransport)
	if got := h.eval(`w.maximize()`); got != false {
		t.Fatalf("maximize() on failing window = %v, want false", got)
	}
}

func TestCommands_BadArgumentsThrow(t *testing.T) {
	h := newHarness(t)
	_, err := h.host.Eval(`Window.allWindows()[0].setFrame({x: 1})`)
	if err == nil || !strings.Contains(err.Error(), "setFrame") {
		t.Fatalf("Eval() error = %v, want setFrame type error", err)
	}
	_, err = h.host.Eval(`Window.allWindows()[0].windowsInDirection("sideways")`)
	if err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}

func TestGridWM_MovesWindow(t *testing.T) {
	h := newHarness(t)
	h.eval(`var w = Window.allWindows()[0];`)

	if got := h.eval(`GridWM.moveToCellGroup({x: 0, y: 0, width: 1, height: 1}, w)`); got != true {
		t.Fatalf("moveToCellGroup() = %v", got)
	}
	h.loop.Drain()
	if got := h.eval(`GridWM.moveRight(w)`); got != true {
		t.Fatalf("moveRight() = %v", got)
	}
	h.loop.Drain()

	want := platform.Rect{X: 500, Y: 0, Width: 500, Height: 500}
	if got := h.backend.Frame(h.win); got != want {
		t.Fatalf("frame = %+v, want %+v", got, want)
	}
	if got := h.eval(`JSON.stringify(GridWM.approximateCellGroup(w))`); got != `{"x":1,"y":0,"width":1,"height":1}` {
		t.Fatalf("approximateCellGroup() = %v", got)
	}
	if got := h.eval(`GridWM.moveToCellGroup({x: 5, y: 0, width: 1, height: 1}, w)`); got != false {
		t.Fatalf("out-of-bounds moveToCellGroup() = %v, want false", got)
	}
}

func TestGridWM_SpecProperties(t *testing.T) {
	h := newHarness(t)

	h.eval(`GridWM.cols = 4; GridWM.padding = 10;`)
	spec := h.host.grid.Spec()
	if spec.Cols != 4 || spec.Padding != 10 || spec.Rows != 2 {
		t.Fatalf("spec = %+v", spec)
	}
	if _, err := h.host.Eval(`GridWM.rows = 0`); err == nil {
		t.Fatalf("expected error for zero rows")
	}
	if got := h.host.grid.Spec().Rows; got != 2 {
		t.Fatalf("rows after rejected assignment = %d, want 2", got)
	}
	if got := h.eval(`GridWM.fullScreenCellGroup().width`); got != int64(4) {
		t.Fatalf("fullScreenCellGroup().width = %v", got)
	}
}

func TestGridWM_DefaultsToFocusedWindow(t *testing.T) {
	h := newHarness(t)
	if got := h.eval(`GridWM.align()`); got != false {
		t.Fatalf("align() without a focused window = %v, want false", got)
	}
	h.backend.SetFocused(h.win)
	if got := h.eval(`GridWM.align()`); got != true {
		t.Fatalf("align() = %v, want true", got)
	}
}

func TestEval_Timeout(t *testing.T) {
	h := newHarness(t, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := h.host.Eval(`while (true) {}`)
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("interrupt took too long")
	}
	if got := h.eval(`"still alive"`); got != "still alive" {
		t.Fatalf("runtime unusable after interrupt: %v", got)
	}
}

func TestEval_JSONSafeResult(t *testing.T) {
	h := newHarness(t)

	got := h.eval(`({name: "x", count: 2})`)
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("Eval() = %T, want map", got)
	}
	if m["name"] != "x" || m["count"] != int64(2) {
		t.Fatalf("Eval() = %#v", m)
	}

	if _, ok := h.eval(`Window.allWindows()[0]`).(string); !ok {
		t.Fatalf("wrapper was not reduced to a string")
	}
}

func TestStop_ClearsCallbacksAndRuntime(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		Window.allWindows()[0].onMoved = function() {};
		App.find("xterm").onHidden = function() {};
		Window.onOpened = function() {};
	`)

	h.host.Stop()

	if h.window().Callback(desktop.EventMoved) != nil {
		t.Fatalf("window callback survived Stop")
	}
	if _, err := h.host.Eval(`1`); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Eval() after Stop error = %v, want ErrNotRunning", err)
	}

	h.backend.OpenWindow(h.app, "late", platform.Rect{X: 0, Y: 0, Width: 100, Height: 100})
	h.backend.MoveWindowExternally(h.win, platform.Rect{X: 1, Y: 1, Width: 300, Height: 300})
	h.loop.Drain()
}

func TestLoadFileAndReload(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "init.js")
	src := `
		var loads = (typeof loads === "undefined") ? 1 : loads + 1;
		Window.allWindows()[0].onMoved = function() {};
	`
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := h.host.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := h.eval(`loads`); got != int64(1) {
		t.Fatalf("loads = %v", got)
	}

	h.eval(`var leftover = true;`)
	if err := h.host.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := h.eval(`typeof leftover`); got != "undefined" {
		t.Fatalf("reload kept old globals: leftover is %v", got)
	}
	if got := h.eval(`loads`); got != int64(1) {
		t.Fatalf("loads after reload = %v, want 1", got)
	}
	if h.window().Callback(desktop.EventMoved) == nil {
		t.Fatalf("reloaded script did not reinstall its callback")
	}
}

func TestLoadFile_SyntaxError(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "broken.js")
	if err := os.WriteFile(path, []byte("function ("), 0o644); err != nil {
		t.Fatal(err)
	}
	err := h.host.LoadFile(path)
	if err == nil || !strings.Contains(err.Error(), "broken.js") {
		t.Fatalf("LoadFile() error = %v, want error naming the file", err)
	}
}

func TestHotkeys_BindAndRelease(t *testing.T) {
	b := fake.New()
	h := newHarness(t, WithHotkeys(b))
	h.eval(`
		var presses = 0;
		var id = Hotkey.activate(["cmd", "shift"], "left", function() { presses++; });
	`)

	if !b.PressHotkey("Shift-Mod4-Left") {
		t.Fatalf("no handler bound for Shift-Mod4-Left")
	}
	if got := h.eval(`presses`); got != int64(1) {
		t.Fatalf("presses = %v", got)
	}

	if got := h.eval(`Hotkey.deactivate(id)`); got != true {
		t.Fatalf("deactivate() = %v", got)
	}
	if got := h.eval(`Hotkey.deactivate(id)`); got != false {
		t.Fatalf("second deactivate() = %v, want false", got)
	}

	h.eval(`Hotkey.activate(["ctrl"], "a", function() {});`)
	h.host.Stop()
	if b.PressHotkey("Control-a") {
		t.Fatalf("hotkey survived Stop")
	}
}

func TestKeySequence(t *testing.T) {
	tests := []struct {
		mods    []string
		key     string
		want    string
		wantErr bool
	}{
		{mods: []string{"cmd", "alt"}, key: "Right", want: "Mod1-Mod4-Right"},
		{mods: []string{"Shift", "ctrl"}, key: "X", want: "Control-Shift-x"},
		{mods: []string{"super", "command"}, key: "return", want: "Mod4-Return"},
		{mods: nil, key: "F1", want: "F1"},
		{mods: []string{"hyper"}, key: "a", wantErr: true},
		{mods: []string{"cmd"}, key: " ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := keySequence(tt.mods, tt.key)
		if tt.wantErr {
			if err == nil {
				t.Errorf("keySequence(%v, %q) expected error", tt.mods, tt.key)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("keySequence(%v, %q) = %q, %v; want %q", tt.mods, tt.key, got, err, tt.want)
		}
	}
}

func TestAlert_ReachesSink(t *testing.T) {
	var got []string
	h := newHarness(t, WithAlertSink(func(msg string) { got = append(got, msg) }))
	h.eval(`alert("tiled", 3); console.log("ignored")`)
	if len(got) != 1 || got[0] != "tiled 3" {
		t.Fatalf("alerts = %v", got)
	}
}
