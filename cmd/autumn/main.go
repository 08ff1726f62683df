package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/1broseidon/autumn/internal/config"
	"github.com/1broseidon/autumn/internal/daemon"
	"github.com/1broseidon/autumn/internal/hotkeys"
	"github.com/1broseidon/autumn/internal/ipc"
	"github.com/1broseidon/autumn/internal/platform"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "apps":
		os.Exit(runApps(os.Args[2:]))
	case "windows":
		os.Exit(runWindows(os.Args[2:]))
	case "screens":
		os.Exit(runScreens(os.Args[2:]))
	case "grid":
		os.Exit(runGrid(os.Args[2:]))
	case "frame":
		os.Exit(runFrame(os.Args[2:]))
	case "focus", "close", "minimize":
		os.Exit(runWindowCommand(os.Args[1], os.Args[2:]))
	case "eval":
		os.Exit(runEval(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: autumn <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the autumn daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  reload              Reload config and script")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  apps                List running applications")
	fmt.Fprintln(w, "  windows             List tracked windows")
	fmt.Fprintln(w, "  screens             List screens and their grids")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  grid <action>       Apply a grid action to a window")
	fmt.Fprintln(w, "  frame X Y W H       Set a window frame")
	fmt.Fprintln(w, "  focus [ID]          Focus a window")
	fmt.Fprintln(w, "  close [ID]          Close a window")
	fmt.Fprintln(w, "  minimize [ID]       Minimize a window")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  eval [SOURCE]       Evaluate JavaScript in the daemon")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "  config path         Print the config file path")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'autumn <command> --help' for command-specific options.")
}

// newFlagSet builds a subcommand flag set whose usage prints synopsis,
// description and the defined flags.
func newFlagSet(name, synopsis, description string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: autumn %s\n", synopsis)
		if description != "" {
			fmt.Fprintln(stderr, "")
			fmt.Fprintln(stderr, description)
		}
		if fs.HasFlags() {
			fmt.Fprintln(stderr, "")
			fmt.Fprintln(stderr, "Flags:")
			fs.PrintDefaults()
		}
	}
	return fs
}

// parseFlags parses args and reports the exit code to use when the command
// should stop.
func parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func fail(err error) int {
	fmt.Fprintln(stderr, err)
	return 1
}

func runDaemon(args []string) int {
	fs := newFlagSet("daemon", "daemon [--config PATH]", "Run the desktop daemon in the foreground.")
	path := fs.String("config", "", "Config file path (default: ~/.config/autumn/config.yaml)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := daemon.NewLogger(res.Config.LogLevel)
	logger.Info("configuration loaded", "file", res.File, "script", res.ScriptPath())

	backend, err := platform.NewLinuxBackendFromDisplay(res.Config.Display, logger.With("component", "x11"))
	if err != nil {
		log.Fatalf("Failed to connect to display: %v", err)
	}
	defer backend.Disconnect()
	if err := backend.Start(); err != nil {
		log.Fatalf("Failed to start X11 backend: %v", err)
	}

	binder, err := hotkeys.NewBinder(backend, logger.With("component", "hotkeys"))
	if err != nil {
		log.Fatalf("Failed to set up hotkeys: %v", err)
	}

	d, err := daemon.New(daemon.Options{
		Config:  res,
		Backend: backend,
		Hotkeys: binder,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("Failed to create daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					logger.Info("received SIGHUP, reloading")
					d.RequestReload()
					continue
				}
				logger.Info("shutting down", "signal", sig.String())
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	// X events are read on their own goroutine; the daemon loop owns state.
	go backend.EventLoop()
	defer backend.Stop()

	if err := d.Run(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := newFlagSet("status", "status [--json]", "Show daemon status via IPC.")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		return fail(err)
	}
	if *jsonOut {
		return writeJSON(status)
	}
	fmt.Fprintf(stdout, "daemon_running: %v\n", status.DaemonRunning)
	fmt.Fprintf(stdout, "uptime_seconds: %d\n", status.UptimeSeconds)
	fmt.Fprintf(stdout, "apps:           %d\n", status.Apps)
	fmt.Fprintf(stdout, "windows:        %d\n", status.Windows)
	fmt.Fprintf(stdout, "screens:        %d\n", status.Screens)
	fmt.Fprintf(stdout, "script:         %s (running: %v)\n", status.Script, status.ScriptRunning)
	fmt.Fprintf(stdout, "grid:           %s\n", formatGrid(status.Grid))
	return 0
}

func runReload(args []string) int {
	fs := newFlagSet("reload", "reload", "Re-read the configuration and reload the script.")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "reload takes no arguments")
		fs.Usage()
		return 2
	}
	if err := ipc.NewClient().Reload(); err != nil {
		return fail(err)
	}
	fmt.Fprintln(stdout, "reloaded")
	return 0
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromPath(path)
}
