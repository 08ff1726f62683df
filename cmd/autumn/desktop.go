package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/1broseidon/autumn/internal/ipc"
)

func writeJSON(v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail(err)
	}
	return 0
}

func formatRect(r ipc.Rect) string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

func formatGrid(g ipc.GridInfo) string {
	return fmt.Sprintf("%dx%d (padding %d, margin %d)", g.Cols, g.Rows, g.Padding, g.Margin)
}

func flags(pairs ...any) string {
	var out []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if on, _ := pairs[i+1].(bool); on {
			out = append(out, pairs[i].(string))
		}
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

// parseWindowID parses a window id argument. Zero means the focused window.
func parseWindowID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid window id %q", s)
	}
	return id, nil
}

func runApps(args []string) int {
	fs := newFlagSet("apps", "apps [--json]", "List running applications.")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	apps, err := ipc.NewClient().ListApps()
	if err != nil {
		return fail(err)
	}
	if *jsonOut {
		return writeJSON(apps)
	}
	for _, a := range apps {
		fmt.Fprintf(stdout, "%-7d %-20s windows=%d %s\n", a.PID, a.Name, a.Windows,
			flags("focused", a.Focused, "hidden", a.Hidden, "unresponsive", a.Unresponsive))
	}
	return 0
}

func printWindows(windows []ipc.WindowInfo) {
	for _, w := range windows {
		fmt.Fprintf(stdout, "%-6d %-16s %-20s %-8s %s %q\n", w.ID, w.App, formatRect(w.Frame), w.Screen,
			flags("focused", w.Focused, "main", w.Main, "minimized", w.Minimized, "fullscreen", w.FullScreen),
			w.Title)
	}
}

func runWindows(args []string) int {
	fs := newFlagSet("windows", "windows [--visible] [--json]", "List tracked windows.")
	visible := fs.Bool("visible", false, "Only list visible windows")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	windows, err := ipc.NewClient().ListWindows(*visible)
	if err != nil {
		return fail(err)
	}
	if *jsonOut {
		return writeJSON(windows)
	}
	printWindows(windows)
	return 0
}

func runScreens(args []string) int {
	fs := newFlagSet("screens", "screens [--json]", "List screens, their usable frames and grids.")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	screens, err := ipc.NewClient().ListScreens()
	if err != nil {
		return fail(err)
	}
	if *jsonOut {
		return writeJSON(screens)
	}
	for _, s := range screens {
		marker := " "
		if s.Current {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %-10s frame=%s inner=%s grid=%s\n", marker, s.Name,
			formatRect(s.Frame), formatRect(s.Inner), formatGrid(s.Grid))
	}
	return 0
}

func runGrid(args []string) int {
	fs := newFlagSet("grid", "grid [--window ID] <action>",
		"Apply a grid action to a window (default: the focused window).\n\n"+
			"Actions: align, move_up, move_down, move_left, move_right,\n"+
			"grow_above, grow_below, grow_left, grow_right, shrink_from_above,\n"+
			"shrink_from_below, shrink_from_left, shrink_from_right, fill_column,\n"+
			"fill_row, next_screen, previous_screen, full_screen")
	window := fs.Uint64("window", 0, "Window id (default: focused window)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "grid requires exactly one <action>")
		fs.Usage()
		return 2
	}

	win, err := ipc.NewClient().Grid(fs.Arg(0), *window)
	if err != nil {
		return fail(err)
	}
	printWindows([]ipc.WindowInfo{*win})
	return 0
}

func runFrame(args []string) int {
	fs := newFlagSet("frame", "frame [--window ID] X Y WIDTH HEIGHT",
		"Move and resize a window (default: the focused window).\n"+
			"Put -- before the numbers when X or Y is negative.")
	window := fs.Uint64("window", 0, "Window id (default: focused window)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 4 {
		fmt.Fprintln(stderr, "frame requires X Y WIDTH HEIGHT")
		fs.Usage()
		return 2
	}
	var nums [4]int
	for i := range nums {
		n, err := strconv.Atoi(fs.Arg(i))
		if err != nil {
			fmt.Fprintf(stderr, "invalid number %q\n", fs.Arg(i))
			return 2
		}
		nums[i] = n
	}

	win, err := ipc.NewClient().SetFrame(*window, ipc.Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]})
	if err != nil {
		return fail(err)
	}
	printWindows([]ipc.WindowInfo{*win})
	return 0
}

func runWindowCommand(name string, args []string) int {
	fs := newFlagSet(name, name+" [ID]", fmt.Sprintf("%s a window (default: the focused window).", strings.ToUpper(name[:1])+name[1:]))
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(stderr, "%s takes at most one window id\n", name)
		fs.Usage()
		return 2
	}
	var id uint64
	if fs.NArg() == 1 {
		var err error
		if id, err = parseWindowID(fs.Arg(0)); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
	}

	client := ipc.NewClient()
	var err error
	switch name {
	case "focus":
		err = client.Focus(id)
	case "close":
		err = client.Close(id)
	case "minimize":
		err = client.Minimize(id)
	}
	if err != nil {
		return fail(err)
	}
	return 0
}
