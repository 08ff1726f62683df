// Package mcp exposes the running daemon's desktop to MCP clients. Every tool
// is a thin adapter over one control-socket command.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/autumn/internal/ipc"
)

const (
	ServerName    = "autumn"
	ServerVersion = "0.1.0"
)

// Control is the subset of the control-socket client the tools use.
type Control interface {
	GetStatus() (*ipc.StatusData, error)
	ListApps() ([]ipc.AppInfo, error)
	ListWindows(visibleOnly bool) ([]ipc.WindowInfo, error)
	ListScreens() ([]ipc.ScreenInfo, error)
	Grid(action string, windowID uint64) (*ipc.WindowInfo, error)
	SetFrame(windowID uint64, frame ipc.Rect) (*ipc.WindowInfo, error)
	Focus(windowID uint64) error
	Close(windowID uint64) error
	Minimize(windowID uint64) error
	Eval(source string) (interface{}, error)
	Reload() error
}

var _ Control = (*ipc.Client)(nil)

// Server is the MCP server for desktop control.
type Server struct {
	mcpServer *mcpsdk.Server
	control   Control
	logger    *slog.Logger
}

// NewServer creates a server that forwards tool calls to control. A nil
// control dials the daemon's socket.
func NewServer(control Control, logger *slog.Logger) *Server {
	if control == nil {
		control = ipc.NewClient()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		control: control,
		logger:  logger,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Report daemon uptime, registry sizes, the loaded script and the default grid.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_apps",
		Description: "List running applications with their pid, name, hidden/focused state and window count.",
	}, s.handleListApps)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_windows",
		Description: "List tracked windows with id, owning app, title, frame and screen. Window ids are stable for the life of the window.",
	}, s.handleListWindows)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_screens",
		Description: "List screens with their full and usable frames and the grid in effect on each.",
	}, s.handleListScreens)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "grid_action",
		Description: "Apply a grid action to a window (default: the focused window) and return its new frame.",
	}, s.handleGridAction)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "set_window_frame",
		Description: "Move and resize a window to an exact frame in global coordinates.",
	}, s.handleSetFrame)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "focus_window",
		Description: "Raise and focus a window.",
	}, s.handleFocus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "close_window",
		Description: "Ask a window to close.",
	}, s.handleClose)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "minimize_window",
		Description: "Minimize a window.",
	}, s.handleMinimize)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "eval_script",
		Description: "Evaluate JavaScript in the daemon's script runtime. The App, Window, Screen, GridWM and Hotkey globals are available; the completion value is returned as JSON.",
	}, s.handleEval)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "reload",
		Description: "Re-read the configuration and reload the user script.",
	}, s.handleReload)
}
