package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/autumn/internal/ipc"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ Empty) (*mcpsdk.CallToolResult, ipc.StatusData, error) {
	status, err := s.control.GetStatus()
	if err != nil {
		return nil, ipc.StatusData{}, err
	}
	return nil, *status, nil
}

func (s *Server) handleListApps(_ context.Context, _ *mcpsdk.CallToolRequest, _ Empty) (*mcpsdk.CallToolResult, AppsOutput, error) {
	apps, err := s.control.ListApps()
	if err != nil {
		return nil, AppsOutput{}, err
	}
	if apps == nil {
		apps = []ipc.AppInfo{}
	}
	return nil, AppsOutput{Apps: apps}, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, WindowsOutput, error) {
	windows, err := s.control.ListWindows(args.VisibleOnly)
	if err != nil {
		return nil, WindowsOutput{}, err
	}
	if windows == nil {
		windows = []ipc.WindowInfo{}
	}
	return nil, WindowsOutput{Windows: windows}, nil
}

func (s *Server) handleListScreens(_ context.Context, _ *mcpsdk.CallToolRequest, _ Empty) (*mcpsdk.CallToolResult, ScreensOutput, error) {
	screens, err := s.control.ListScreens()
	if err != nil {
		return nil, ScreensOutput{}, err
	}
	if screens == nil {
		screens = []ipc.ScreenInfo{}
	}
	return nil, ScreensOutput{Screens: screens}, nil
}

func (s *Server) handleGridAction(_ context.Context, _ *mcpsdk.CallToolRequest, args GridActionInput) (*mcpsdk.CallToolResult, ipc.WindowInfo, error) {
	action := strings.TrimSpace(args.Action)
	if action == "" {
		return nil, ipc.WindowInfo{}, fmt.Errorf("action is required")
	}
	win, err := s.control.Grid(action, args.WindowID)
	if err != nil {
		return nil, ipc.WindowInfo{}, err
	}
	s.logger.Debug("grid action", "action", action, "window_id", win.ID)
	return nil, *win, nil
}

func (s *Server) handleSetFrame(_ context.Context, _ *mcpsdk.CallToolRequest, args SetFrameInput) (*mcpsdk.CallToolResult, ipc.WindowInfo, error) {
	if args.Width <= 0 || args.Height <= 0 {
		return nil, ipc.WindowInfo{}, fmt.Errorf("width and height must be positive, got %dx%d", args.Width, args.Height)
	}
	win, err := s.control.SetFrame(args.WindowID, ipc.Rect{
		X:      args.X,
		Y:      args.Y,
		Width:  args.Width,
		Height: args.Height,
	})
	if err != nil {
		return nil, ipc.WindowInfo{}, err
	}
	return nil, *win, nil
}

func (s *Server) handleFocus(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.windowCommand("focus", args.WindowID, s.control.Focus)
}

func (s *Server) handleClose(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.windowCommand("close", args.WindowID, s.control.Close)
}

func (s *Server) handleMinimize(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return s.windowCommand("minimize", args.WindowID, s.control.Minimize)
}

func (s *Server) windowCommand(name string, id uint64, fn func(uint64) error) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if err := fn(id); err != nil {
		return nil, ActionOutput{}, fmt.Errorf("%s: %w", name, err)
	}
	s.logger.Debug("window command", "command", name, "window_id", id)
	return nil, ActionOutput{OK: true, WindowID: id}, nil
}

func (s *Server) handleEval(_ context.Context, _ *mcpsdk.CallToolRequest, args EvalInput) (*mcpsdk.CallToolResult, EvalOutput, error) {
	if strings.TrimSpace(args.Source) == "" {
		return nil, EvalOutput{}, fmt.Errorf("source is required")
	}
	result, err := s.control.Eval(args.Source)
	if err != nil {
		return nil, EvalOutput{}, err
	}
	return nil, EvalOutput{Result: result}, nil
}

func (s *Server) handleReload(_ context.Context, _ *mcpsdk.CallToolRequest, _ Empty) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if err := s.control.Reload(); err != nil {
		return nil, ActionOutput{}, err
	}
	return nil, ActionOutput{OK: true}, nil
}
