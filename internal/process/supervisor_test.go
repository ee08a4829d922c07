package process

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It is re-executed as a child process
// by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "no helper mode")
		os.Exit(2)
	}

	switch args[1] {
	case "echo":
		fmt.Fprint(os.Stdout, "out one\nout two\n")
		fmt.Fprint(os.Stderr, "size=  1kB\rsize=  2kB\r\nlast")
	case "exit":
		fmt.Fprintln(os.Stderr, "failing")
		os.Exit(3)
	case "exit-on-interrupt":
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		fmt.Fprintln(os.Stdout, "ready")
		select {
		case <-sig:
			os.Exit(0)
		case <-time.After(10 * time.Second):
			os.Exit(4)
		}
	case "ignore-interrupt":
		signal.Ignore(os.Interrupt)
		fmt.Fprintln(os.Stdout, "ready")
		time.Sleep(10 * time.Second)
		os.Exit(4)
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", args[1])
		os.Exit(2)
	}
}

func helperCommand(t *testing.T, mode string) Command {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	return Command{
		Path: os.Args[0],
		Args: []string{"-test.run=TestHelperProcess", "--", mode},
	}
}

func collect(t *testing.T, h *Handle) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(15 * time.Second)
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

// waitForLine reads events until a stdout line equals want, then keeps
// draining in the background.
func waitForLine(t *testing.T, h *Handle, want string) {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-h.Events():
			require.True(t, ok, "events closed before %q", want)
			if ev.Kind == EventStdout && ev.Line == want {
				go func() {
					for range h.Events() {
					}
				}()
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestSpawnStreamsLinesAndExit(t *testing.T) {
	sup := New()
	h, err := sup.Spawn(helperCommand(t, "echo"))
	require.NoError(t, err)
	assert.Greater(t, h.PID(), 0)

	events := collect(t, h)
	require.NotEmpty(t, events)

	var stdout, stderr []string
	for _, ev := range events[:len(events)-1] {
		switch ev.Kind {
		case EventStdout:
			stdout = append(stdout, ev.Line)
		case EventStderr:
			stderr = append(stderr, ev.Line)
		default:
			t.Fatalf("unexpected %s event before exit", ev.Kind)
		}
	}
	assert.Equal(t, []string{"out one", "out two"}, stdout)
	assert.Equal(t, []string{"size=  1kB", "size=  2kB", "last"}, stderr)

	last := events[len(events)-1]
	assert.Equal(t, EventExit, last.Kind)
	assert.Equal(t, 0, last.ExitCode)
	assert.NoError(t, last.Err)

	select {
	case <-h.Done():
	default:
		t.Fatal("Done not closed after exit event")
	}
}

func TestSpawnReportsExitCode(t *testing.T) {
	h, err := New().Spawn(helperCommand(t, "exit"))
	require.NoError(t, err)

	events := collect(t, h)
	last := events[len(events)-1]
	assert.Equal(t, EventExit, last.Kind)
	assert.Equal(t, 3, last.ExitCode)

	code, err := h.ExitCode()
	assert.Equal(t, 3, code)
	assert.NoError(t, err)
}

func TestSpawnMissingExecutable(t *testing.T) {
	_, err := New().Spawn(Command{Path: "/nonexistent/whisperflow-tool"})
	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "/nonexistent/whisperflow-tool", spawnErr.Path)
}

func TestRunCapturesOutput(t *testing.T) {
	res, err := New().Run(context.Background(), helperCommand(t, "echo"))
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "out one\nout two\n", res.Stdout)
	assert.Contains(t, res.Stderr, "size=  2kB")
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	res, err := New().Run(context.Background(), helperCommand(t, "exit"))
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "failing\n", res.Stderr)
}

func TestRunMissingExecutable(t *testing.T) {
	_, err := New().Run(context.Background(), Command{Path: "/nonexistent/whisperflow-tool"})
	var spawnErr *SpawnError
	assert.ErrorAs(t, err, &spawnErr)
}

// fakeSignaler reports the process alive for a fixed number of probes.
type fakeSignaler struct {
	mu         sync.Mutex
	aliveFor   int // probes answered "alive"; negative means forever
	probes     int
	interrupts int
	kills      int
}

func (f *fakeSignaler) Interrupt(int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	return nil
}

func (f *fakeSignaler) Kill(int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills++
	return nil
}

func (f *fakeSignaler) Alive(int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	return f.aliveFor < 0 || f.probes <= f.aliveFor
}

func TestInterruptAndWaitExitsBeforeTimeout(t *testing.T) {
	sig := &fakeSignaler{aliveFor: 3}
	sup := New(WithSignaler(sig), WithPollInterval(time.Millisecond))

	term := sup.InterruptAndWait(42, time.Second)

	assert.False(t, term.Forced)
	assert.Equal(t, 1, sig.interrupts)
	assert.Equal(t, 0, sig.kills)
}

func TestInterruptAndWaitForcesExactlyOnce(t *testing.T) {
	sig := &fakeSignaler{aliveFor: -1}
	sup := New(WithSignaler(sig), WithPollInterval(5*time.Millisecond))

	start := time.Now()
	term := sup.InterruptAndWait(42, 50*time.Millisecond)

	assert.True(t, term.Forced)
	assert.Equal(t, 1, sig.interrupts)
	assert.Equal(t, 1, sig.kills)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestInterruptAndWaitAlreadyGone(t *testing.T) {
	sig := &fakeSignaler{aliveFor: 0}
	term := New(WithSignaler(sig)).InterruptAndWait(42, time.Second)
	assert.False(t, term.Forced)
	assert.Equal(t, 0, sig.kills)
}

func TestTerminateGraceful(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no SIGINT delivery on windows")
	}
	h, err := New().Spawn(helperCommand(t, "exit-on-interrupt"))
	require.NoError(t, err)
	waitForLine(t, h, "ready")

	term := h.Terminate(5 * time.Second)
	assert.False(t, term.Forced)

	<-h.Done()
	code, err := h.ExitCode()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestTerminateForcesStubbornProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no SIGINT delivery on windows")
	}
	h, err := New().Spawn(helperCommand(t, "ignore-interrupt"))
	require.NoError(t, err)
	waitForLine(t, h, "ready")

	term := h.Terminate(200 * time.Millisecond)
	assert.True(t, term.Forced)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process not reaped after kill")
	}
}

func TestTerminateAfterExitIsNoop(t *testing.T) {
	h, err := New().Spawn(helperCommand(t, "echo"))
	require.NoError(t, err)
	collect(t, h)

	term := h.Terminate(time.Second)
	assert.False(t, term.Forced)
}

func TestScanLinesOrCR(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"newlines", "a\nb\n", []string{"a", "b"}},
		{"carriage returns", "a\rb\rc", []string{"a", "b", "c"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"trailing text", "a\nrest", []string{"a", "rest"}},
		{"empty lines kept", "a\n\nb", []string{"a", "", "b"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := bufio.NewScanner(strings.NewReader(tt.input))
			scanner.Split(ScanLinesOrCR)
			var got []string
			for scanner.Scan() {
				got = append(got, scanner.Text())
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, tt.want, got)
		})
	}
}
