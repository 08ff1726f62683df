package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/grid"
	"github.com/1broseidon/autumn/internal/platform"
	"github.com/1broseidon/autumn/internal/platform/fake"
	"github.com/1broseidon/autumn/internal/runloop"
	"github.com/1broseidon/autumn/internal/script"
)

var square = platform.Rect{X: 0, Y: 0, Width: 1000, Height: 1000}

type fixture struct {
	backend *fake.Backend
	client  *Client
	win     platform.Element
	reloads int
}

// startServer runs a server over a fake desktop with the loop on its own
// goroutine, as the daemon does.
func startServer(t *testing.T, withScript bool) *fixture {
	t.Helper()

	dir, err := os.MkdirTemp("", "autumn-ipc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("AUTUMN_SOCKET", filepath.Join(dir, "s.sock"))

	b := fake.New()
	b.SetDisplays(platform.Display{Handle: 1, Name: "DP-1", Bounds: square, Usable: square})
	app := b.AddApp(10, "xterm")
	win := b.AddWindow(app, "shell", platform.Rect{X: 100, Y: 100, Width: 300, Height: 300})
	b.AddWindow(app, "logs", platform.Rect{X: 600, Y: 600, Width: 200, Height: 200})

	loop := runloop.New()
	d := desktop.New(b, loop, nil)
	if err := d.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	gm, err := grid.NewManager(d, grid.Spec{Rows: 2, Cols: 2}, nil)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	f := &fixture{backend: b, win: win}
	deps := Deps{
		Loop:    loop,
		Desktop: d,
		Grid:    gm,
		Reload: func() error {
			f.reloads++
			return nil
		},
	}
	if withScript {
		host := script.New(d, gm, nil)
		if err := host.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		deps.Script = host
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	srv, err := NewServer(deps)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		srv.Stop()
		cancel()
		<-done
	})

	f.client = NewClient()
	return f
}

func TestServer_StatusAndLists(t *testing.T) {
	f := startServer(t, true)

	status, err := f.client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !status.DaemonRunning || status.Apps != 1 || status.Windows != 2 || status.Screens != 1 {
		t.Fatalf("status = %+v", status)
	}
	if !status.ScriptRunning || status.Grid.Cols != 2 {
		t.Fatalf("status = %+v", status)
	}

	apps, err := f.client.ListApps()
	if err != nil {
		t.Fatalf("ListApps() error = %v", err)
	}
	if len(apps) != 1 || apps[0].Name != "xterm" || apps[0].Windows != 2 {
		t.Fatalf("apps = %+v", apps)
	}

	windows, err := f.client.ListWindows(false)
	if err != nil {
		t.Fatalf("ListWindows() error = %v", err)
	}
	if len(windows) != 2 || windows[0].Title != "shell" || windows[0].Screen != "DP-1" || windows[0].App != "xterm" {
		t.Fatalf("windows = %+v", windows)
	}

	screens, err := f.client.ListScreens()
	if err != nil {
		t.Fatalf("ListScreens() error = %v", err)
	}
	if len(screens) != 1 || screens[0].Inner != (Rect{Width: 1000, Height: 1000}) {
		t.Fatalf("screens = %+v", screens)
	}
}

func TestServer_WindowCommands(t *testing.T) {
	f := startServer(t, false)

	windows, err := f.client.ListWindows(false)
	if err != nil {
		t.Fatalf("ListWindows() error = %v", err)
	}
	id := windows[0].ID

	info, err := f.client.SetFrame(id, Rect{X: 0, Y: 0, Width: 400, Height: 200})
	if err != nil {
		t.Fatalf("SetFrame() error = %v", err)
	}
	if info.Frame != (Rect{Width: 400, Height: 200}) {
		t.Fatalf("frame after SetFrame = %+v", info.Frame)
	}

	info, err = f.client.Grid("move_right", id)
	if err != nil {
		t.Fatalf("Grid() error = %v", err)
	}
	want := platform.Rect{X: 500, Y: 0, Width: 500, Height: 500}
	if got := f.backend.Frame(f.win); got != want {
		t.Fatalf("frame after move_right = %+v, want %+v", got, want)
	}

	if err := f.client.Focus(id); err != nil {
		t.Fatalf("Focus() error = %v", err)
	}
	if err := f.client.Minimize(id); err != nil {
		t.Fatalf("Minimize() error = %v", err)
	}
}

func TestServer_Errors(t *testing.T) {
	f := startServer(t, false)
	id := f.firstWindow(t)

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"unknown window", func() error { return f.client.Focus(999999) }, "unknown window"},
		{"no focused window", func() error { return f.client.Close(0) }, "no focused window"},
		{"unknown grid action", func() error { _, err := f.client.Grid("spin", id); return err }, "action"},
		{"empty frame", func() error {
			_, err := f.client.SetFrame(id, Rect{})
			return err
		}, "no area"},
		{"eval without script", func() error { _, err := f.client.Eval("1"); return err }, "scripting is disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}

	resp := f.rawRequest(t, `{"command":"NOPE"}`)
	if resp.Status != "ERROR" || !strings.Contains(resp.Error, "Unknown command") {
		t.Fatalf("unknown command response = %+v", resp)
	}
	resp = f.rawRequest(t, `not json`)
	if resp.Status != "ERROR" || !strings.Contains(resp.Error, "Invalid request") {
		t.Fatalf("malformed request response = %+v", resp)
	}
}

func TestServer_EvalAndReload(t *testing.T) {
	f := startServer(t, true)

	got, err := f.client.Eval(`Window.allWindows().map(function(w) { return w.title(); }).join(",")`)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if got != "shell,logs" {
		t.Fatalf("Eval() = %v", got)
	}

	if _, err := f.client.Eval(`throw new Error("nope")`); err == nil {
		t.Fatalf("expected error from throwing script")
	}

	if err := f.client.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if err := f.client.Ping(); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if f.reloads != 1 {
		t.Fatalf("reloads = %d, want 1", f.reloads)
	}
}

func (f *fixture) firstWindow(t *testing.T) uint64 {
	t.Helper()
	windows, err := f.client.ListWindows(false)
	if err != nil || len(windows) == 0 {
		t.Fatalf("ListWindows() = %v, %v", windows, err)
	}
	return windows[0].ID
}

func TestClient_NoDaemon(t *testing.T) {
	t.Setenv("AUTUMN_SOCKET", filepath.Join(t.TempDir(), "missing.sock"))
	err := NewClient().Ping()
	if err == nil || !strings.Contains(err.Error(), "is the daemon running") {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestNewServer_RequiresDeps(t *testing.T) {
	if _, err := NewServer(Deps{}); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}

func (f *fixture) rawRequest(t *testing.T, line string) *Response {
	t.Helper()
	conn, err := net.Dial("unix", f.client.socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return &resp
}
