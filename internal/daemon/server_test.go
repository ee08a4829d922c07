package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/maxyzli/whisper-flow/internal/db"
	"github.com/maxyzli/whisper-flow/internal/diag"
	"github.com/maxyzli/whisper-flow/internal/history"
	"github.com/maxyzli/whisper-flow/internal/models"
	"github.com/maxyzli/whisper-flow/internal/pipeline"
	"github.com/maxyzli/whisper-flow/internal/session"
)

// fakePipeline records requests and notifies like the real controller.
type fakePipeline struct {
	mu       sync.Mutex
	notifier pipeline.Notifier
	active   *session.Status
	stops    []pipeline.StopRequest
	files    []pipeline.FileRequest
}

func (f *fakePipeline) Start(_ context.Context, deviceID string) (pipeline.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		return pipeline.StartResult{SessionID: f.active.ID, AlreadyActive: true}, nil
	}
	f.active = &session.Status{Active: true, ID: "2024-01-02_03-04-05", DeviceID: deviceID, StartedAt: time.Now()}
	f.notifier.Notify(pipeline.Event{Type: pipeline.EventState, SessionID: f.active.ID, State: pipeline.StateRecording})
	f.notifier.Notify(pipeline.Event{Type: pipeline.EventReady, SessionID: f.active.ID})
	f.notifier.Notify(pipeline.Event{Type: pipeline.EventLevel, SessionID: f.active.ID, Level: 0.75})
	return pipeline.StartResult{SessionID: f.active.ID}, nil
}

func (f *fakePipeline) Stop(_ context.Context, req pipeline.StopRequest) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return nil, pipeline.ErrNoActiveSession
	}
	id := f.active.ID
	f.active = nil
	f.stops = append(f.stops, req)
	f.notifier.Notify(pipeline.Event{Type: pipeline.EventTranscript, SessionID: id, Text: "hello world"})
	return &pipeline.Result{SessionID: id, Text: "hello world", TranscriptPath: "/r/" + id + "/transcript.txt"}, nil
}

func (f *fakePipeline) Cancel() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return "", pipeline.ErrNoActiveSession
	}
	id := f.active.ID
	f.active = nil
	return id, nil
}

func (f *fakePipeline) TranscribeFile(_ context.Context, req pipeline.FileRequest) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, req)
	if req.Path == "" {
		return nil, &pipeline.StageError{Kind: pipeline.ErrInvalidPath}
	}
	return &pipeline.Result{SessionID: "file", Text: "from file"}, nil
}

func (f *fakePipeline) Devices(context.Context) []diag.Device {
	return []diag.Device{{ID: "0", Name: "Built-in Microphone"}}
}

func (f *fakePipeline) Status() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return session.Status{}
	}
	return *f.active
}

type fakeModels struct{}

func (fakeModels) Status(name string) models.Status {
	return models.Status{Name: name, Path: "/m/ggml-" + name + ".bin"}
}

func (fakeModels) Download(_ context.Context, name string, progress func(models.Progress)) (string, error) {
	for _, pct := range []int{0, 50, 100} {
		progress(models.Progress{Name: name, Percent: pct, TotalBytes: 2048})
	}
	return "/m/ggml-" + name + ".bin", nil
}

type fakeJournal struct {
	mu      sync.Mutex
	deleted []string
}

func (j *fakeJournal) RecentRuns(context.Context, int) ([]db.Run, error) {
	return []db.Run{{SessionID: "2024-01-02_03-04-05", Mode: db.ModeLive, State: "completed",
		AudioDuration: 1500 * time.Millisecond}}, nil
}

func (j *fakeJournal) DeleteSession(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.deleted = append(j.deleted, id)
	return nil
}

type testServer struct {
	sockPath string
	pipe     *fakePipeline
	journal  *fakeJournal
	recDir   string
	cancel   context.CancelFunc
	done     chan error
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	ts := &testServer{
		sockPath: filepath.Join(dir, "d.sock"),
		journal:  &fakeJournal{},
		recDir:   filepath.Join(dir, "recordings"),
		done:     make(chan error, 1),
	}
	events := NewBroadcaster(nil)
	ts.pipe = &fakePipeline{notifier: events}

	srv := NewServer(ts.pipe, history.New(ts.recDir), fakeModels{}, events,
		WithJournal(ts.journal),
		WithDefaults(Defaults{Device: "0", Model: "base", Language: "en"}),
	)

	ln, err := Listen(ts.sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ts.cancel = cancel
	go func() { ts.done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-ts.done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return ts
}

func (ts *testServer) connect(t *testing.T) *Client {
	t.Helper()
	c, err := Connect(ts.sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServerStartStopRoundTrip(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)

	resp, err := client.SendCommand(Command{Cmd: CmdStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.Recording == nil || *resp.Recording {
		t.Errorf("recording = %v, want false", resp.Recording)
	}

	resp, err = client.Do(Command{Cmd: CmdStart, Device: "1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if resp.SessionID != "2024-01-02_03-04-05" {
		t.Errorf("sessionId = %q", resp.SessionID)
	}
	if resp.AlreadyActive == nil || *resp.AlreadyActive {
		t.Errorf("alreadyActive = %v, want false", resp.AlreadyActive)
	}

	resp, err = client.Do(Command{Cmd: CmdStart})
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if resp.AlreadyActive == nil || !*resp.AlreadyActive {
		t.Error("second start should report alreadyActive")
	}

	resp, err = client.Do(Command{Cmd: CmdStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if resp.Recording == nil || !*resp.Recording || resp.Device != "1" || resp.StartedAt == nil {
		t.Errorf("status during recording = %+v", resp)
	}

	resp, err = client.Do(Command{Cmd: CmdStop, Prompt: "Go, gRPC"})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if resp.Text != "hello world" {
		t.Errorf("text = %q", resp.Text)
	}

	want := pipeline.StopRequest{Model: "base", Language: "en", Prompt: "Go, gRPC"}
	if len(ts.pipe.stops) != 1 || ts.pipe.stops[0] != want {
		t.Errorf("stop requests = %+v, want %+v", ts.pipe.stops, want)
	}
}

func TestServerStopWithoutStart(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)

	resp, err := client.SendCommand(Command{Cmd: CmdStop})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if resp.OK {
		t.Fatal("ok = true, want false")
	}
	if resp.ErrorKind != "no_active_session" {
		t.Errorf("errorKind = %q, want no_active_session", resp.ErrorKind)
	}
}

func TestServerSubscribeReceivesEvents(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)
	evClient := ts.connect(t)

	if _, err := evClient.Do(Command{Cmd: CmdSubscribe}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, err := client.Do(Command{Cmd: CmdStart}); err != nil {
		t.Fatalf("start: %v", err)
	}

	wantOrder := []string{EvStatus, EvReady, EvLevel}
	for _, want := range wantOrder {
		ev, err := evClient.ReadEvent()
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Event != want {
			t.Fatalf("event = %q, want %q", ev.Event, want)
		}
		if want == EvStatus && (ev.Recording == nil || !*ev.Recording || ev.State != "recording") {
			t.Errorf("status event = %+v", ev)
		}
		if want == EvLevel && (ev.Level == nil || *ev.Level != 0.75) {
			t.Errorf("level = %v, want 0.75", ev.Level)
		}
	}
}

func TestServerSubscribeFilter(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)
	evClient := ts.connect(t)

	if _, err := evClient.Do(Command{Cmd: CmdSubscribe, Events: []string{EvTranscript}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	client.Do(Command{Cmd: CmdStart})
	client.Do(Command{Cmd: CmdStop})

	ev, err := evClient.ReadEvent()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Event != EvTranscript || ev.Text != "hello world" {
		t.Errorf("event = %+v, want transcript", ev)
	}
}

func TestServerDownloadModelStreamsProgress(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)
	evClient := ts.connect(t)

	if _, err := evClient.Do(Command{Cmd: CmdSubscribe, Events: []string{EvDownloadProgress}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	resp, err := client.Do(Command{Cmd: CmdDownloadModel, Model: "small"})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if resp.Path != "/m/ggml-small.bin" {
		t.Errorf("path = %q", resp.Path)
	}

	for _, want := range []int{0, 50, 100} {
		ev, err := evClient.ReadEvent()
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		if ev.Percent == nil || *ev.Percent != want || ev.Model != "small" {
			t.Errorf("progress event = %+v, want %d%%", ev, want)
		}
	}
}

func TestServerHistory(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)

	for _, id := range []string{"2024-01-01_10-00-00", "2024-01-02_10-00-00"} {
		if err := os.MkdirAll(filepath.Join(ts.recDir, id), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(ts.recDir, id, "transcript.txt"), []byte("text "+id), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	resp, err := client.Do(Command{Cmd: CmdHistory, Limit: 1})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(resp.History) != 1 || resp.History[0].ID != "2024-01-02_10-00-00" {
		t.Errorf("history = %+v", resp.History)
	}

	resp, err = client.Do(Command{Cmd: CmdTranscript, ID: "2024-01-01_10-00-00"})
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if resp.Text != "text 2024-01-01_10-00-00" {
		t.Errorf("text = %q", resp.Text)
	}

	if _, err := client.Do(Command{Cmd: CmdDeleteHistory, ID: "2024-01-01_10-00-00"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(ts.journal.deleted) != 1 {
		t.Errorf("journal deletes = %v", ts.journal.deleted)
	}

	resp, _ = client.SendCommand(Command{Cmd: CmdDeleteHistory, ID: "../etc"})
	if resp.ErrorKind != "invalid_id" {
		t.Errorf("errorKind = %q, want invalid_id", resp.ErrorKind)
	}

	resp, err = client.Do(Command{Cmd: CmdRuns})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(resp.Runs) != 1 || resp.Runs[0].AudioDurationMs != 1500 {
		t.Errorf("runs = %+v", resp.Runs)
	}
}

func TestServerTranscribeFileAndDevices(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)

	resp, err := client.Do(Command{Cmd: CmdTranscribeFile, Path: "/tmp/a.mp3", Timestamps: BoolPtr(true)})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if resp.Text != "from file" {
		t.Errorf("text = %q", resp.Text)
	}
	if got := ts.pipe.files[0]; !got.Timestamps || got.Model != "base" {
		t.Errorf("file request = %+v", got)
	}

	resp, _ = client.SendCommand(Command{Cmd: CmdTranscribeFile})
	if resp.ErrorKind != "invalid_path" {
		t.Errorf("errorKind = %q, want invalid_path", resp.ErrorKind)
	}

	resp, err = client.Do(Command{Cmd: CmdDevices})
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if len(resp.Devices) != 1 || resp.Devices[0].Name != "Built-in Microphone" {
		t.Errorf("devices = %+v", resp.Devices)
	}

	resp, err = client.Do(Command{Cmd: CmdModelStatus})
	if err != nil {
		t.Fatalf("model_status: %v", err)
	}
	if resp.Model == nil || resp.Model.Name != "base" {
		t.Errorf("model = %+v", resp.Model)
	}
}

func TestServerUnknownAndMalformedCommands(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)

	resp, err := client.SendCommand(Command{Cmd: "dance"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.OK || resp.ErrorKind != "unknown_command" {
		t.Errorf("resp = %+v", resp)
	}

	if _, err := client.conn.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !client.scanner.Scan() {
		t.Fatal("no response to malformed command")
	}
	if got := client.scanner.Text(); got == "" {
		t.Error("empty response")
	}

	// The connection survives bad input.
	if _, err := client.Do(Command{Cmd: CmdStatus}); err != nil {
		t.Errorf("status after bad input: %v", err)
	}
}

func TestShutdownCancelsRecording(t *testing.T) {
	ts := startTestServer(t)
	client := ts.connect(t)

	if _, err := client.Do(Command{Cmd: CmdStart}); err != nil {
		t.Fatalf("start: %v", err)
	}
	ts.cancel()
	select {
	case err := <-ts.done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
		ts.done <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if ts.pipe.Status().Active {
		t.Error("recording still active after shutdown")
	}
}

func TestListenRefusesLiveSocket(t *testing.T) {
	ts := startTestServer(t)
	if _, err := Listen(ts.sockPath); err == nil {
		t.Fatal("expected ErrAlreadyRunning")
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.sock")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	ln, err := Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ln.Close()
}

func TestErrorKind(t *testing.T) {
	err := &pipeline.StageError{Kind: pipeline.ErrConversion, Diagnostic: "bad"}
	if got := ErrorKind(err); got != "conversion" {
		t.Errorf("ErrorKind = %q, want conversion", got)
	}
	if got := ErrorKind(context.Canceled); got != "internal" {
		t.Errorf("ErrorKind = %q, want internal", got)
	}
}
