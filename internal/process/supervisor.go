// Package process supervises external tools: long-running capture processes
// whose output is streamed as events, and short-lived tools that are run to
// completion.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is how often InterruptAndWait probes liveness.
const DefaultPollInterval = 50 * time.Millisecond

// Command describes an executable invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
}

func (c Command) String() string {
	return fmt.Sprintf("%s %v", c.Path, c.Args)
}

// SpawnError reports that an executable could not be located or launched.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Result is the captured outcome of Run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the process exited with status zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Termination describes how InterruptAndWait ended.
type Termination struct {
	Forced  bool          // the forceful signal was sent
	Elapsed time.Duration // time from the graceful signal to return
}

// Supervisor spawns and terminates subprocesses.
type Supervisor struct {
	signaler     Signaler
	pollInterval time.Duration
	logger       *zap.SugaredLogger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSignaler replaces the OS signaler. Used by tests to observe signals.
func WithSignaler(s Signaler) Option {
	return func(sup *Supervisor) {
		sup.signaler = s
	}
}

// WithPollInterval overrides the liveness probe interval.
func WithPollInterval(d time.Duration) Option {
	return func(sup *Supervisor) {
		sup.pollInterval = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(sup *Supervisor) {
		sup.logger = l
	}
}

// New creates a Supervisor using OS signals.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		signaler:     OSSignaler{},
		pollInterval: DefaultPollInterval,
		logger:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn starts cmd and returns immediately. Output lines and the exit status
// are delivered on the handle's event channel by a background goroutine; the
// channel must be drained until it closes.
func (s *Supervisor) Spawn(cmd Command) (*Handle, error) {
	c := exec.Command(cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir

	stdout, err := c.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}
	if err := c.Start(); err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}

	h := &Handle{
		sup:    s,
		pid:    c.Process.Pid,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	s.logger.Debugf("spawned %s pid=%d", cmd.Path, h.pid)

	go h.stream(c, stdout, stderr)
	return h, nil
}

// Run executes cmd and blocks until it exits. A non-zero exit status is
// reported in the Result, not as an error; errors are reserved for failures
// to launch or wait on the process.
func (s *Supervisor) Run(ctx context.Context, cmd Command) (*Result, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}

	s.logger.Debugf("ran %s exit=%d in %s", cmd.Path, res.ExitCode, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// InterruptAndWait asks pid to exit gracefully, polls until it is gone and,
// if it is still alive once timeout has elapsed, sends exactly one forceful
// signal. It never blocks longer than timeout plus one poll interval.
func (s *Supervisor) InterruptAndWait(pid int, timeout time.Duration) Termination {
	start := time.Now()
	if err := s.signaler.Interrupt(pid); err != nil {
		s.logger.Debugf("interrupt pid=%d: %v", pid, err)
	}

	deadline := start.Add(timeout)
	for s.signaler.Alive(pid) {
		if !time.Now().Before(deadline) {
			s.logger.Warnf("pid=%d still alive after %s, killing", pid, timeout)
			if err := s.signaler.Kill(pid); err != nil {
				s.logger.Debugf("kill pid=%d: %v", pid, err)
			}
			return Termination{Forced: true, Elapsed: time.Since(start)}
		}
		time.Sleep(s.pollInterval)
	}
	return Termination{Elapsed: time.Since(start)}
}

// readLines sends every line of r as an event of the given kind.
func readLines(r io.Reader, kind EventKind, out chan<- Event) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(ScanLinesOrCR)
	for scanner.Scan() {
		out <- Event{Kind: kind, Line: scanner.Text()}
	}
	return scanner.Err()
}

// ScanLinesOrCR is a bufio.SplitFunc that splits on '\n' and on bare '\r'.
// ffmpeg rewrites its progress line in place using carriage returns.
func ScanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, bytes.TrimSuffix(data[:i], []byte{'\r'}), nil
		case '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// Need one more byte to tell "\r" from "\r\n".
			return 0, nil, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// drain reads both pipes concurrently; exec requires all reads to finish
// before Wait is called.
func drain(stdout, stderr io.Reader, out chan<- Event) error {
	var g errgroup.Group
	g.Go(func() error { return readLines(stdout, EventStdout, out) })
	g.Go(func() error { return readLines(stderr, EventStderr, out) })
	return g.Wait()
}
