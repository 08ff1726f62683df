//go:build linux

package platform

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/prometheus/procfs"
)

// X window ids fit in 32 bits, so applications and displays are tagged
// above that range.
const (
	appTag     Element = 1 << 40
	displayTag Element = 1 << 41
	tagMask            = appTag | displayTag
)

func windowElement(win xproto.Window) Element { return Element(win) }
func appElement(pid int) Element              { return appTag | Element(pid) }
func displayElement(id int) Element           { return displayTag | Element(id) }

func isAppElement(el Element) bool    { return el&tagMask == appTag }
func isWindowElement(el Element) bool { return el != SystemElement && el&tagMask == 0 }

func pidOf(el Element) int              { return int(el &^ tagMask) }
func windowOf(el Element) xproto.Window { return xproto.Window(el) }

// processState returns the single-letter scheduler state from /proc/<pid>/stat.
func processState(fs procfs.FS, pid int) (string, error) {
	proc, err := fs.Proc(pid)
	if err != nil {
		return "", fmt.Errorf("%w: process %d: %v", ErrStale, pid, err)
	}
	stat, err := proc.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: process %d: %v", ErrStale, pid, err)
	}
	return stat.State, nil
}

// stoppedState reports whether a scheduler state means the process can no
// longer service requests.
func stoppedState(state string) bool {
	switch state {
	case "T", "t", "Z", "X":
		return true
	}
	return false
}

func processName(fs procfs.FS, pid int) string {
	proc, err := fs.Proc(pid)
	if err != nil {
		return ""
	}
	comm, err := proc.Comm()
	if err != nil {
		return ""
	}
	return comm
}

func signalProcess(pid int, force bool) error {
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	if err := syscall.Kill(pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("%w: process %d", ErrStale, pid)
		}
		return fmt.Errorf("%w: signal process %d: %v", ErrTransport, pid, err)
	}
	return nil
}
