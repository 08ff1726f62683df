package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/autumn/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}

	return &Client{
		socketPath: socketPath,
		timeout:    DefaultRequestTimeout + 2*time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Status == "ERROR" {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

// call sends cmd with an optional payload and decodes the response data
// into out when out is non-nil.
func (c *Client) call(cmd CommandType, payload interface{}, out interface{}) error {
	req := &Request{Command: cmd}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		req.Payload = data
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", cmd, err)
	}
	return nil
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	var status StatusData
	if err := c.call(CommandGetStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListApps retrieves every tracked application.
func (c *Client) ListApps() ([]AppInfo, error) {
	var data AppsData
	if err := c.call(CommandListApps, nil, &data); err != nil {
		return nil, err
	}
	return data.Apps, nil
}

// ListWindows retrieves tracked windows, optionally only visible ones.
func (c *Client) ListWindows(visibleOnly bool) ([]WindowInfo, error) {
	var data WindowsData
	if err := c.call(CommandListWindows, ListWindowsPayload{VisibleOnly: visibleOnly}, &data); err != nil {
		return nil, err
	}
	return data.Windows, nil
}

// ListScreens retrieves every screen in display order.
func (c *Client) ListScreens() ([]ScreenInfo, error) {
	var data ScreensData
	if err := c.call(CommandListScreens, nil, &data); err != nil {
		return nil, err
	}
	return data.Screens, nil
}

// Grid applies a named grid action to a window (0 for the focused window)
// and returns the window afterwards.
func (c *Client) Grid(action string, windowID uint64) (*WindowInfo, error) {
	var info WindowInfo
	if err := c.call(CommandGrid, GridPayload{Action: action, WindowID: windowID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SetFrame moves and resizes a window.
func (c *Client) SetFrame(windowID uint64, frame Rect) (*WindowInfo, error) {
	var info WindowInfo
	if err := c.call(CommandSetFrame, SetFramePayload{WindowID: windowID, Frame: frame}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Focus focuses a window.
func (c *Client) Focus(windowID uint64) error {
	return c.call(CommandFocus, WindowPayload{WindowID: windowID}, nil)
}

// Close asks a window to close.
func (c *Client) Close(windowID uint64) error {
	return c.call(CommandClose, WindowPayload{WindowID: windowID}, nil)
}

// Minimize minimizes a window.
func (c *Client) Minimize(windowID uint64) error {
	return c.call(CommandMinimize, WindowPayload{WindowID: windowID}, nil)
}

// Eval evaluates JavaScript in the daemon's script runtime.
func (c *Client) Eval(source string) (interface{}, error) {
	var data EvalData
	if err := c.call(CommandEval, EvalPayload{Source: source}, &data); err != nil {
		return nil, err
	}
	return data.Result, nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() error {
	return c.call(CommandReload, nil, nil)
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}
