package mcp

import "github.com/1broseidon/autumn/internal/ipc"

// Empty is the input of tools that take no arguments.
type Empty struct{}

// ListWindowsInput is the input for list_windows.
type ListWindowsInput struct {
	VisibleOnly bool `json:"visible_only,omitempty" jsonschema:"Only list visible windows (not minimized, owner not hidden)"`
}

// WindowInput selects a window. Zero selects the focused window.
type WindowInput struct {
	WindowID uint64 `json:"window_id,omitempty" jsonschema:"Window id from list_windows (default: the focused window)"`
}

// GridActionInput is the input for grid_action.
type GridActionInput struct {
	Action   string `json:"action" jsonschema:"Grid action, e.g. move_left, grow_right, shrink_from_below, fill_column, next_screen, full_screen, align"`
	WindowID uint64 `json:"window_id,omitempty" jsonschema:"Window id from list_windows (default: the focused window)"`
}

// SetFrameInput is the input for set_window_frame.
type SetFrameInput struct {
	WindowID uint64 `json:"window_id,omitempty" jsonschema:"Window id from list_windows (default: the focused window)"`
	X        int    `json:"x" jsonschema:"Left edge in global screen coordinates"`
	Y        int    `json:"y" jsonschema:"Top edge in global screen coordinates"`
	Width    int    `json:"width" jsonschema:"Width in pixels, must be positive"`
	Height   int    `json:"height" jsonschema:"Height in pixels, must be positive"`
}

// EvalInput is the input for eval_script.
type EvalInput struct {
	Source string `json:"source" jsonschema:"JavaScript evaluated in the daemon's script runtime; the completion value is returned"`
}

// AppsOutput is the output of list_apps.
type AppsOutput struct {
	Apps []ipc.AppInfo `json:"apps"`
}

// WindowsOutput is the output of list_windows.
type WindowsOutput struct {
	Windows []ipc.WindowInfo `json:"windows"`
}

// ScreensOutput is the output of list_screens.
type ScreensOutput struct {
	Screens []ipc.ScreenInfo `json:"screens"`
}

// ActionOutput acknowledges a command that returns no entity.
type ActionOutput struct {
	OK       bool   `json:"ok"`
	WindowID uint64 `json:"window_id,omitempty"`
}

// EvalOutput is the output of eval_script.
type EvalOutput struct {
	Result any `json:"result"`
}
