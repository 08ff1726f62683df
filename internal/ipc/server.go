package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/autumn/internal/desktop"
	"github.com/1broseidon/autumn/internal/grid"
	"github.com/1broseidon/autumn/internal/platform"
	"github.com/1broseidon/autumn/internal/runloop"
	"github.com/1broseidon/autumn/internal/runtimepath"
)

// DefaultRequestTimeout bounds how long a request waits for the loop.
const DefaultRequestTimeout = 10 * time.Second

// Evaluator runs script source and reports the script it loaded.
type Evaluator interface {
	Eval(src string) (any, error)
	Running() bool
	Path() string
}

// Deps are the components a Server drives. Everything except Loop is only
// touched from tasks running on Loop.
type Deps struct {
	Loop    *runloop.Loop
	Desktop *desktop.Desktop
	Grid    *grid.Manager
	Script  Evaluator
	// Reload reloads configuration and script. Nil disables RELOAD.
	Reload func() error
	Logger *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	deps         Deps
	logger       *slog.Logger
	timeout      time.Duration
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
	conns        sync.WaitGroup
}

// NewServer creates a new IPC server
func NewServer(deps Deps) (*Server, error) {
	if deps.Loop == nil || deps.Desktop == nil || deps.Grid == nil {
		return nil, errors.New("ipc server requires a loop, a desktop and a grid manager")
	}
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		deps:       deps,
		logger:     logger,
		timeout:    DefaultRequestTimeout,
		startTime:  time.Now(),
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("ipc server listening", "socket", s.socketPath)

	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("ipc accept failed", "error", err)
			continue
		}

		s.conns.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection serves one request per connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.conns.Done()
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("ipc read failed", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	resp := s.handleCommand(ctx, req)

	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Warn("ipc response marshal failed", "command", req.Command, "error", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("ipc write failed", "command", req.Command, "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	s.logger.Debug("ipc request", "command", req.Command)

	switch req.Command {
	case CommandGetStatus:
		return s.onLoop(ctx, s.handleGetStatus)
	case CommandListApps:
		return s.onLoop(ctx, s.handleListApps)
	case CommandListWindows:
		var p ListWindowsPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid list payload: %v", err))
		}
		return s.onLoop(ctx, func() (interface{}, error) { return s.handleListWindows(p) })
	case CommandListScreens:
		return s.onLoop(ctx, s.handleListScreens)
	case CommandGrid:
		var p GridPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid grid payload: %v", err))
		}
		if p.Action == "" {
			return NewErrorResponse("action is required")
		}
		return s.onLoop(ctx, func() (interface{}, error) { return s.handleGrid(p) })
	case CommandSetFrame:
		var p SetFramePayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid frame payload: %v", err))
		}
		return s.onLoop(ctx, func() (interface{}, error) { return s.handleSetFrame(p) })
	case CommandFocus, CommandClose, CommandMinimize:
		var p WindowPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid window payload: %v", err))
		}
		return s.onLoop(ctx, func() (interface{}, error) { return s.handleWindowCommand(req.Command, p) })
	case CommandEval:
		var p EvalPayload
		if err := decodePayload(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid eval payload: %v", err))
		}
		return s.onLoop(ctx, func() (interface{}, error) { return s.handleEval(p) })
	case CommandReload:
		return s.onLoop(ctx, s.handleReload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

// onLoop runs fn on the coordination loop and wraps its result.
func (s *Server) onLoop(ctx context.Context, fn func() (interface{}, error)) *Response {
	var data interface{}
	err := s.deps.Loop.Do(ctx, func() error {
		var err error
		data, err = fn()
		return err
	})
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func decodePayload(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}

func (s *Server) gridInfo(spec grid.Spec) GridInfo {
	return GridInfo{Rows: spec.Rows, Cols: spec.Cols, Padding: spec.Padding, Margin: spec.Margin}
}

func (s *Server) handleGetStatus() (interface{}, error) {
	d := s.deps.Desktop
	status := StatusData{
		DaemonRunning: true,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Apps:          d.Apps().Len(),
		Windows:       d.Windows().Len(),
		Screens:       d.Screens().Len(),
		Grid:          s.gridInfo(s.deps.Grid.Spec()),
	}
	if s.deps.Script != nil {
		status.Script = s.deps.Script.Path()
		status.ScriptRunning = s.deps.Script.Running()
	}
	return status, nil
}

func (s *Server) handleListApps() (interface{}, error) {
	apps := s.deps.Desktop.Apps().Apps()
	out := make([]AppInfo, 0, len(apps))
	for _, a := range apps {
		out = append(out, AppInfo{
			PID:          a.PID(),
			Name:         a.Name(),
			BundleID:     a.BundleID(),
			Kind:         string(a.Kind()),
			Hidden:       a.IsHidden(),
			Focused:      a.IsFocused(),
			Unresponsive: a.IsUnresponsive(),
			Windows:      len(a.Windows()),
		})
	}
	return AppsData{Apps: out}, nil
}

func toRect(r platform.Rect) Rect {
	return Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

func windowInfo(w *desktop.Window) WindowInfo {
	info := WindowInfo{
		ID:         w.ID(),
		PID:        w.PID(),
		Title:      w.Title(),
		Frame:      toRect(w.Frame()),
		Minimized:  w.IsMinimized(),
		FullScreen: w.IsFullScreen(),
		Main:       w.IsMainWindow(),
		Visible:    w.IsVisible(),
		Focused:    w.IsFocused(),
	}
	if app := w.App(); app != nil {
		info.App = app.Name()
	}
	if screen := w.Screen(); screen != nil {
		info.Screen = screen.Name()
	}
	return info
}

func (s *Server) handleListWindows(p ListWindowsPayload) (interface{}, error) {
	windows := s.deps.Desktop.Windows().All()
	if p.VisibleOnly {
		windows = s.deps.Desktop.Windows().Visible()
	}
	out := make([]WindowInfo, 0, len(windows))
	for _, w := range windows {
		out = append(out, windowInfo(w))
	}
	return WindowsData{Windows: out}, nil
}

func (s *Server) handleListScreens() (interface{}, error) {
	screens := s.deps.Desktop.Screens()
	current := screens.Current()
	out := make([]ScreenInfo, 0, screens.Len())
	for _, sc := range screens.All() {
		full, err := sc.FullFrame()
		if err != nil {
			continue
		}
		inner, err := sc.InnerFrame()
		if err != nil {
			continue
		}
		out = append(out, ScreenInfo{
			ID:      sc.ID(),
			Name:    sc.Name(),
			Frame:   toRect(full),
			Inner:   toRect(inner),
			Current: sc == current,
			Grid:    s.gridInfo(s.deps.Grid.SpecFor(sc)),
		})
	}
	return ScreensData{Screens: out}, nil
}

// window resolves a window id, with zero meaning the focused window.
func (s *Server) window(id uint64) (*desktop.Window, error) {
	if id == 0 {
		w := s.deps.Desktop.FocusedWindow()
		if w == nil {
			return nil, errors.New("no focused window")
		}
		return w, nil
	}
	w := s.deps.Desktop.Windows().ByID(id)
	if w == nil {
		return nil, fmt.Errorf("unknown window %d", id)
	}
	return w, nil
}

func (s *Server) handleGrid(p GridPayload) (interface{}, error) {
	w, err := s.window(p.WindowID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Grid.Apply(p.Action, w); err != nil {
		return nil, err
	}
	return windowInfo(w), nil
}

func (s *Server) handleSetFrame(p SetFramePayload) (interface{}, error) {
	w, err := s.window(p.WindowID)
	if err != nil {
		return nil, err
	}
	r := platform.Rect{X: p.Frame.X, Y: p.Frame.Y, Width: p.Frame.Width, Height: p.Frame.Height}
	if r.Empty() {
		return nil, fmt.Errorf("frame %+v has no area", p.Frame)
	}
	if err := w.SetFrame(r); err != nil {
		return nil, err
	}
	return windowInfo(w), nil
}

func (s *Server) handleWindowCommand(cmd CommandType, p WindowPayload) (interface{}, error) {
	w, err := s.window(p.WindowID)
	if err != nil {
		return nil, err
	}
	switch cmd {
	case CommandFocus:
		err = w.Focus()
	case CommandClose:
		err = w.Close()
	case CommandMinimize:
		err = w.Minimize()
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleEval(p EvalPayload) (interface{}, error) {
	if s.deps.Script == nil {
		return nil, errors.New("scripting is disabled")
	}
	result, err := s.deps.Script.Eval(p.Source)
	if err != nil {
		return nil, err
	}
	return EvalData{Result: result}, nil
}

func (s *Server) handleReload() (interface{}, error) {
	if s.deps.Reload == nil {
		return nil, errors.New("reload is not supported")
	}
	s.logger.Info("ipc reload requested")
	if err := s.deps.Reload(); err != nil {
		return nil, fmt.Errorf("reload failed: %w", err)
	}
	return nil, nil
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket.
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.conns.Wait()
	os.Remove(s.socketPath)
}
