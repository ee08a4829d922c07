//go:build windows

package process

import (
	"os"

	"golang.org/x/sys/windows"
)

// stillActive is the exit code reported for a running process.
const stillActive = 259

// Interrupt on Windows cannot deliver SIGINT to an unrelated console
// process, so it falls through to a kill.
func (s OSSignaler) Interrupt(pid int) error {
	return s.Kill(pid)
}

func (OSSignaler) Kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func (OSSignaler) Alive(pid int) bool {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}
