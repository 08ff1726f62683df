package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandListApps    CommandType = "LIST_APPS"
	CommandListWindows CommandType = "LIST_WINDOWS"
	CommandListScreens CommandType = "LIST_SCREENS"
	CommandGrid        CommandType = "GRID"
	CommandSetFrame    CommandType = "SET_FRAME"
	CommandFocus       CommandType = "FOCUS"
	CommandClose       CommandType = "CLOSE"
	CommandMinimize    CommandType = "MINIMIZE"
	CommandEval        CommandType = "EVAL"
	CommandReload      CommandType = "RELOAD"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Rect is a pixel rectangle in global coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GridInfo describes the default grid.
type GridInfo struct {
	Rows    int `json:"rows"`
	Cols    int `json:"cols"`
	Padding int `json:"padding"`
	Margin  int `json:"margin"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	DaemonRunning bool     `json:"daemon_running"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	Apps          int      `json:"apps"`
	Windows       int      `json:"windows"`
	Screens       int      `json:"screens"`
	Script        string   `json:"script,omitempty"`
	ScriptRunning bool     `json:"script_running"`
	Grid          GridInfo `json:"grid"`
}

// AppInfo is one running application.
type AppInfo struct {
	PID          int    `json:"pid"`
	Name         string `json:"name"`
	BundleID     string `json:"bundle_id,omitempty"`
	Kind         string `json:"kind"`
	Hidden       bool   `json:"hidden"`
	Focused      bool   `json:"focused"`
	Unresponsive bool   `json:"unresponsive"`
	Windows      int    `json:"windows"`
}

type AppsData struct {
	Apps []AppInfo `json:"apps"`
}

// WindowInfo is one window of a running application.
type WindowInfo struct {
	ID         uint64 `json:"id"`
	PID        int    `json:"pid"`
	App        string `json:"app,omitempty"`
	Title      string `json:"title"`
	Frame      Rect   `json:"frame"`
	Screen     string `json:"screen,omitempty"`
	Minimized  bool   `json:"minimized"`
	FullScreen bool   `json:"full_screen"`
	Main       bool   `json:"main"`
	Visible    bool   `json:"visible"`
	Focused    bool   `json:"focused"`
}

type WindowsData struct {
	Windows []WindowInfo `json:"windows"`
}

// ListWindowsPayload represents the payload for LIST_WINDOWS command
type ListWindowsPayload struct {
	VisibleOnly bool `json:"visible_only,omitempty"`
}

// ScreenInfo is one display.
type ScreenInfo struct {
	ID      uint64   `json:"id"`
	Name    string   `json:"name"`
	Frame   Rect     `json:"frame"`
	Inner   Rect     `json:"inner"`
	Current bool     `json:"current"`
	Grid    GridInfo `json:"grid"`
}

type ScreensData struct {
	Screens []ScreenInfo `json:"screens"`
}

// WindowPayload targets one window. A zero WindowID means the focused window.
type WindowPayload struct {
	WindowID uint64 `json:"window_id,omitempty"`
}

// GridPayload represents the payload for GRID command
type GridPayload struct {
	Action   string `json:"action"`
	WindowID uint64 `json:"window_id,omitempty"`
}

// SetFramePayload represents the payload for SET_FRAME command
type SetFramePayload struct {
	WindowID uint64 `json:"window_id,omitempty"`
	Frame    Rect   `json:"frame"`
}

// EvalPayload represents the payload for EVAL command
type EvalPayload struct {
	Source string `json:"source"`
}

type EvalData struct {
	Result interface{} `json:"result"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
