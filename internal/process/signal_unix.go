//go:build !windows

package process

import "golang.org/x/sys/unix"

func (OSSignaler) Interrupt(pid int) error {
	return unix.Kill(pid, unix.SIGINT)
}

func (OSSignaler) Kill(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}

// Alive sends signal 0, which performs error checking only.
func (OSSignaler) Alive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
