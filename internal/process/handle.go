package process

import (
	"errors"
	"io"
	"os/exec"
	"sync"
	"time"
)

// EventKind classifies a process event.
type EventKind int

const (
	EventStdout EventKind = iota
	EventStderr
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventStdout:
		return "stdout"
	case EventStderr:
		return "stderr"
	case EventExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Event is one line of output or the final exit notification.
type Event struct {
	Kind     EventKind
	Line     string
	ExitCode int   // EventExit only
	Err      error // EventExit only; non-nil when waiting failed
}

// Handle is an owned, running subprocess started by Spawn.
type Handle struct {
	sup    *Supervisor
	pid    int
	events chan Event
	done   chan struct{}

	mu       sync.Mutex
	exitCode int
	exitErr  error
}

// PID returns the OS process id.
func (h *Handle) PID() int {
	return h.pid
}

// Events returns the stream of output and exit events. It is closed after
// the exit event.
func (h *Handle) Events() <-chan Event {
	return h.events
}

// Done is closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode returns the exit status once Done is closed.
func (h *Handle) ExitCode() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode, h.exitErr
}

// Terminate runs the graceful-then-forceful escalation and then waits briefly
// for the process to be reaped so its output is fully flushed to disk.
func (h *Handle) Terminate(timeout time.Duration) Termination {
	select {
	case <-h.done:
		return Termination{}
	default:
	}

	term := h.sup.InterruptAndWait(h.pid, timeout)

	select {
	case <-h.done:
	case <-time.After(reapGrace):
		h.sup.logger.Warnf("pid=%d not reaped within %s", h.pid, reapGrace)
	}
	return term
}

// reapGrace bounds how long Terminate waits for the reaper after signalling.
const reapGrace = time.Second

func (h *Handle) stream(c *exec.Cmd, stdout, stderr io.Reader) {
	drainErr := drain(stdout, stderr, h.events)
	waitErr := c.Wait()

	code := 0
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		code = exitErr.ExitCode()
		waitErr = nil
	}
	if waitErr == nil && drainErr != nil {
		waitErr = drainErr
	}

	h.mu.Lock()
	h.exitCode = code
	h.exitErr = waitErr
	h.mu.Unlock()

	close(h.done)
	h.events <- Event{Kind: EventExit, ExitCode: code, Err: waitErr}
	close(h.events)
}
