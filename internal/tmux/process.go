package tmux

import (
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// detailedCommand resolves the foreground command of a pane by looking
// at the pane shell's children: tmux only reports the shell's name
// (e.g. "bash"), but the interesting process is usually what the shell
// is running. Falls back to the pane's own cmdline, then to fallback.
//
// Best effort by contract: processes come and go between the tmux
// listing and this lookup, so the answer may be stale or missing.
func detailedCommand(pid int32, fallback string) string {
	if pid <= 0 {
		return fallback
	}

	proc, err := process.NewProcess(pid)
	if err != nil {
		return fallback
	}

	children, err := proc.Children()
	if err == nil && len(children) > 0 {
		if cmd, err := children[0].Cmdline(); err == nil && strings.TrimSpace(cmd) != "" {
			return strings.TrimSpace(cmd)
		}
	}

	if cmd, err := proc.Cmdline(); err == nil {
		if cmd = strings.TrimSpace(cmd); cmd != "" && cmd != fallback {
			return cmd
		}
	}

	return fallback
}
