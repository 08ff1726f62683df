package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/autumn/internal/ipc"
)

type fakeControl struct {
	windows  []ipc.WindowInfo
	calls    []string
	evalSrc  string
	frame    ipc.Rect
	err      error
	reloaded bool
}

func (f *fakeControl) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeControl) GetStatus() (*ipc.StatusData, error) {
	if err := f.record("status"); err != nil {
		return nil, err
	}
	return &ipc.StatusData{DaemonRunning: true, Windows: len(f.windows)}, nil
}

func (f *fakeControl) ListApps() ([]ipc.AppInfo, error) {
	return nil, f.record("apps")
}

func (f *fakeControl) ListWindows(visibleOnly bool) ([]ipc.WindowInfo, error) {
	if err := f.record("windows"); err != nil {
		return nil, err
	}
	if !visibleOnly {
		return f.windows, nil
	}
	var out []ipc.WindowInfo
	for _, w := range f.windows {
		if w.Visible {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeControl) ListScreens() ([]ipc.ScreenInfo, error) {
	return []ipc.ScreenInfo{{ID: 1, Name: "DP-1"}}, f.record("screens")
}

func (f *fakeControl) Grid(action string, windowID uint64) (*ipc.WindowInfo, error) {
	if err := f.record("grid:" + action); err != nil {
		return nil, err
	}
	return &ipc.WindowInfo{ID: windowID, Frame: ipc.Rect{Width: 500, Height: 500}}, nil
}

func (f *fakeControl) SetFrame(windowID uint64, frame ipc.Rect) (*ipc.WindowInfo, error) {
	f.frame = frame
	if err := f.record("frame"); err != nil {
		return nil, err
	}
	return &ipc.WindowInfo{ID: windowID, Frame: frame}, nil
}

func (f *fakeControl) Focus(uint64) error    { return f.record("focus") }
func (f *fakeControl) Close(uint64) error    { return f.record("close") }
func (f *fakeControl) Minimize(uint64) error { return f.record("minimize") }

func (f *fakeControl) Eval(source string) (interface{}, error) {
	f.evalSrc = source
	return float64(42), f.record("eval")
}

func (f *fakeControl) Reload() error {
	f.reloaded = true
	return f.record("reload")
}

func TestHandlers(t *testing.T) {
	ctl := &fakeControl{windows: []ipc.WindowInfo{
		{ID: 1, Title: "shell", Visible: true},
		{ID: 2, Title: "hidden"},
	}}
	s := NewServer(ctl, nil)
	ctx := context.Background()

	_, windows, err := s.handleListWindows(ctx, nil, ListWindowsInput{VisibleOnly: true})
	if err != nil {
		t.Fatalf("list_windows error = %v", err)
	}
	if len(windows.Windows) != 1 || windows.Windows[0].Title != "shell" {
		t.Fatalf("list_windows = %+v", windows)
	}

	_, apps, err := s.handleListApps(ctx, nil, Empty{})
	if err != nil {
		t.Fatalf("list_apps error = %v", err)
	}
	if apps.Apps == nil {
		t.Fatalf("list_apps returned a nil slice")
	}

	_, win, err := s.handleGridAction(ctx, nil, GridActionInput{Action: " move_left ", WindowID: 7})
	if err != nil {
		t.Fatalf("grid_action error = %v", err)
	}
	if win.ID != 7 || ctl.calls[len(ctl.calls)-1] != "grid:move_left" {
		t.Fatalf("grid_action = %+v, calls %v", win, ctl.calls)
	}

	_, win, err = s.handleSetFrame(ctx, nil, SetFrameInput{WindowID: 1, X: 10, Y: 20, Width: 300, Height: 200})
	if err != nil {
		t.Fatalf("set_window_frame error = %v", err)
	}
	if ctl.frame != (ipc.Rect{X: 10, Y: 20, Width: 300, Height: 200}) || win.Frame != ctl.frame {
		t.Fatalf("set_window_frame sent %+v, got %+v", ctl.frame, win)
	}

	_, ack, err := s.handleFocus(ctx, nil, WindowInput{WindowID: 2})
	if err != nil || !ack.OK || ack.WindowID != 2 {
		t.Fatalf("focus_window = %+v, %v", ack, err)
	}

	_, out, err := s.handleEval(ctx, nil, EvalInput{Source: "6 * 7"})
	if err != nil || out.Result != float64(42) || ctl.evalSrc != "6 * 7" {
		t.Fatalf("eval_script = %+v, %v", out, err)
	}

	if _, _, err := s.handleReload(ctx, nil, Empty{}); err != nil || !ctl.reloaded {
		t.Fatalf("reload: %v, reloaded=%v", err, ctl.reloaded)
	}
}

func TestHandlers_RejectInput(t *testing.T) {
	ctl := &fakeControl{}
	s := NewServer(ctl, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"empty action", func() error {
			_, _, err := s.handleGridAction(ctx, nil, GridActionInput{Action: "  "})
			return err
		}, "action is required"},
		{"zero width", func() error {
			_, _, err := s.handleSetFrame(ctx, nil, SetFrameInput{Width: 0, Height: 10})
			return err
		}, "must be positive"},
		{"empty source", func() error {
			_, _, err := s.handleEval(ctx, nil, EvalInput{})
			return err
		}, "source is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want %q", err, tt.want)
			}
		})
	}
	if len(ctl.calls) != 0 {
		t.Fatalf("invalid input reached the daemon: %v", ctl.calls)
	}
}

func TestHandlers_PropagateDaemonErrors(t *testing.T) {
	ctl := &fakeControl{err: errors.New("unknown window 9")}
	s := NewServer(ctl, nil)

	_, _, err := s.handleClose(context.Background(), nil, WindowInput{WindowID: 9})
	if err == nil || !strings.Contains(err.Error(), "close: unknown window 9") {
		t.Fatalf("close_window error = %v", err)
	}
}

func connect(t *testing.T, ctl Control) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverT, clientT := mcpsdk.NewInMemoryTransports()

	if _, err := NewServer(ctl, nil).Connect(ctx, serverT); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "v0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestSession_ListsAndCallsTools(t *testing.T) {
	ctl := &fakeControl{windows: []ipc.WindowInfo{{ID: 1, Title: "shell", Visible: true}}}
	session := connect(t, ctl)
	ctx := context.Background()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{
		"close_window", "eval_script", "focus_window", "get_status", "grid_action",
		"list_apps", "list_screens", "list_windows", "minimize_window", "reload", "set_window_frame",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("tools = %v", names)
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "list_windows",
		Arguments: map[string]any{"visible_only": true},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("list_windows reported an error: %+v", res.Content)
	}
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatal(err)
	}
	var out WindowsOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	if len(out.Windows) != 1 || out.Windows[0].Title != "shell" {
		t.Fatalf("list_windows = %s", raw)
	}
}

func TestSession_ToolErrorIsReported(t *testing.T) {
	session := connect(t, &fakeControl{err: errors.New("no focused window")})

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      "focus_window",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected a tool error result")
	}
}
