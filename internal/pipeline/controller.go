// Package pipeline orchestrates a dictation session: it starts the capture
// process, stops it on request, validates the raw recording, converts it,
// runs speech recognition and persists the transcript.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/maxyzli/whisper-flow/internal/db"
	"github.com/maxyzli/whisper-flow/internal/diag"
	"github.com/maxyzli/whisper-flow/internal/process"
	"github.com/maxyzli/whisper-flow/internal/session"
)

// pasteDelay lets the clipboard settle before the paste keystroke.
const pasteDelay = 50 * time.Millisecond

// Config holds the tool locations and limits the Controller runs with.
type Config struct {
	RecordingsDir    string
	FFmpeg           Tool
	Whisper          Tool
	CaptureFormat    string
	Threads          int
	StopTimeout      time.Duration
	MinArtifactBytes int64
	AutoPaste        bool
}

// DefaultConfig returns the reference limits for a recordings directory.
func DefaultConfig(recordingsDir string) Config {
	return Config{
		RecordingsDir:    recordingsDir,
		FFmpeg:           Tool{Path: "ffmpeg"},
		Whisper:          Tool{Path: "whisper-cli"},
		CaptureFormat:    "avfoundation",
		Threads:          8,
		StopTimeout:      3 * time.Second,
		MinArtifactBytes: 1000,
	}
}

// StartResult is the outcome of Start. AlreadyActive is a soft rejection:
// another session was recording and nothing was changed.
type StartResult struct {
	SessionID     string
	AlreadyActive bool
}

// StopRequest selects recognition parameters for a live session.
type StopRequest struct {
	Model    string
	Language string
	Prompt   string
}

// FileRequest transcribes an existing audio or video file.
type FileRequest struct {
	Path       string
	Model      string
	Language   string
	Prompt     string
	Timestamps bool
}

// Result is a completed pipeline run.
type Result struct {
	SessionID      string
	Text           string
	TranscriptPath string
	Empty          bool
}

// Controller owns the single recording slot and runs the pipeline.
type Controller struct {
	cfg       Config
	store     *session.Store
	alloc     *session.Allocator
	sup       *process.Supervisor
	models    ModelResolver
	notifier  Notifier
	clipboard Clipboard
	cue       Cue
	paster    Paster
	journal   Journal
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

func WithStore(s *session.Store) Option {
	return func(c *Controller) { c.store = s }
}

func WithSupervisor(s *process.Supervisor) Option {
	return func(c *Controller) { c.sup = s }
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithClipboard(cb Clipboard) Option {
	return func(c *Controller) { c.clipboard = cb }
}

func WithCue(cue Cue) Option {
	return func(c *Controller) { c.cue = cue }
}

func WithPaster(p Paster) Option {
	return func(c *Controller) { c.paster = p }
}

func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock replaces time.Now, which also names session directories.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller. models resolves recognition model names to files.
func New(cfg Config, models ModelResolver, opts ...Option) *Controller {
	c := &Controller{
		cfg:      cfg,
		store:    session.NewStore(),
		models:   models,
		notifier: nopNotifier{},
		logger:   zap.NewNop().Sugar(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sup == nil {
		c.sup = process.New(process.WithLogger(c.logger))
	}
	c.alloc = session.NewAllocator(cfg.RecordingsDir, c.now, c.logger)
	return c
}

// Status reports the active recording, if any.
func (c *Controller) Status() session.Status {
	return c.store.Status()
}

// RecordingsDir is where session directories are created.
func (c *Controller) RecordingsDir() string {
	return c.cfg.RecordingsDir
}

// Start begins capturing from deviceID. If a session is already recording
// the call is a no-op and the result has AlreadyActive set.
func (c *Controller) Start(ctx context.Context, deviceID string) (StartResult, error) {
	if st := c.store.Status(); st.Active {
		c.logger.Infof("start ignored, session %s already recording", st.ID)
		return StartResult{SessionID: st.ID, AlreadyActive: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return StartResult{}, err
	}
	deviceID = c.resolveDevice(ctx, deviceID)

	paths, err := c.alloc.Allocate()
	if err != nil {
		if errors.Is(err, session.ErrInvalidPath) {
			return StartResult{}, stageErr(StateIdle, ErrInvalidPath, err)
		}
		return StartResult{}, err
	}

	cmd := c.cfg.FFmpeg.command(captureArgs(c.cfg.CaptureFormat, deviceID, paths.Raw)...)
	h, err := c.sup.Spawn(cmd)
	if err != nil {
		c.logger.Errorf("spawn capture: %v", err)
		return StartResult{}, stageErr(StateIdle, ErrSpawn, err)
	}

	s := &session.Session{
		Paths:     paths,
		DeviceID:  deviceID,
		StartedAt: c.now(),
		Capture:   h,
	}
	if !c.store.Begin(s) {
		// Lost a race with a concurrent Start.
		go discard(h)
		h.Terminate(c.cfg.StopTimeout)
		st := c.store.Status()
		return StartResult{SessionID: st.ID, AlreadyActive: true}, nil
	}

	go c.watch(s)

	c.logger.Infof("recording session %s from device %q (pid %d)", paths.ID, deviceID, h.PID())
	c.notifyState(paths.ID, StateRecording, nil)
	return StartResult{SessionID: paths.ID}, nil
}

// resolveDevice maps the default device id onto the first listed input for
// backends that address devices by name. Other backends understand the
// default id directly.
func (c *Controller) resolveDevice(ctx context.Context, deviceID string) string {
	if c.cfg.CaptureFormat != "dshow" || (deviceID != "" && deviceID != diag.FallbackDevice.ID) {
		return deviceID
	}
	first := c.Devices(ctx)[0]
	if first == diag.FallbackDevice {
		c.logger.Warnf("no dshow audio device listed, using %q", deviceID)
		return deviceID
	}
	return first.ID
}

// watch turns capture diagnostics into readiness and level events until the
// capture output closes.
func (c *Controller) watch(s *session.Session) {
	var ready diag.Readiness
	for ev := range s.Capture.Events() {
		switch ev.Kind {
		case process.EventStderr:
			if ready.Observe(ev.Line) {
				c.logger.Debugf("session %s capture ready", s.ID)
				c.notifier.Notify(Event{Type: EventReady, SessionID: s.ID})
			}
			if level, ok := diag.ParseLevel(ev.Line); ok {
				c.notifier.Notify(Event{Type: EventLevel, SessionID: s.ID, Level: level})
			}
		case process.EventExit:
			c.logger.Debugf("session %s capture exited with code %d", s.ID, ev.ExitCode)
		}
	}
}

func discard(h *process.Handle) {
	for range h.Events() {
	}
}

// Stop ends the active recording and runs it through conversion and
// recognition.
func (c *Controller) Stop(ctx context.Context, req StopRequest) (*Result, error) {
	s := c.store.Take()
	if s == nil {
		return nil, ErrNoActiveSession
	}

	run := c.newRun(s.ID, db.ModeLive, req.Model, req.Language)
	run.Device = s.DeviceID
	run.StartedAt = s.StartedAt
	defer c.record(&run)

	c.notifyState(s.ID, StateStopping, nil)
	term := s.Capture.Terminate(c.cfg.StopTimeout)
	if term.Forced {
		c.logger.Warnf("session %s capture did not stop within %s, killed", s.ID, c.cfg.StopTimeout)
	}

	res, err := c.process(ctx, &run, s.Paths, job{
		model:    req.Model,
		language: req.Language,
		prompt:   req.Prompt,
		validate: true,
		convert:  convertRawArgs(s.Raw, s.Wav),
		paste:    c.cfg.AutoPaste,
		emptyCue: true,
	})
	return res, c.finish(&run, s.ID, err)
}

// Cancel ends the active recording without transcribing it. The raw file is
// left on disk. It returns the cancelled session id, or ErrNoActiveSession.
func (c *Controller) Cancel() (string, error) {
	s := c.store.Take()
	if s == nil {
		return "", ErrNoActiveSession
	}
	c.notifyState(s.ID, StateStopping, nil)
	if term := s.Capture.Terminate(c.cfg.StopTimeout); term.Forced {
		c.logger.Warnf("session %s capture did not stop within %s, killed", s.ID, c.cfg.StopTimeout)
	}
	c.logger.Infof("session %s cancelled", s.ID)
	c.notifyState(s.ID, StateIdle, nil)
	return s.ID, nil
}

// TranscribeFile runs conversion and recognition on an existing file. It
// does not touch the recording slot.
func (c *Controller) TranscribeFile(ctx context.Context, req FileRequest) (*Result, error) {
	if req.Path == "" {
		return nil, stageErr(StateIdle, ErrInvalidPath, errors.New("empty file path"))
	}
	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, stageErr(StateIdle, ErrInvalidPath, err)
	}
	if info.IsDir() {
		return nil, stageErr(StateIdle, ErrInvalidPath, fmt.Errorf("%s is a directory", req.Path))
	}

	paths, err := c.alloc.Allocate()
	if err != nil {
		return nil, err
	}

	run := c.newRun(paths.ID, db.ModeFile, req.Model, req.Language)
	run.Source = req.Path
	defer c.record(&run)

	res, err := c.process(ctx, &run, paths, job{
		model:      req.Model,
		language:   req.Language,
		prompt:     req.Prompt,
		timestamps: req.Timestamps,
		convert:    convertFileArgs(req.Path, paths.Wav),
	})
	return res, c.finish(&run, paths.ID, err)
}

// Devices lists capture devices. If the capture tool cannot be launched the
// fallback device is returned.
func (c *Controller) Devices(ctx context.Context) []diag.Device {
	res, err := c.sup.Run(ctx, c.cfg.FFmpeg.command(listDevicesArgs(c.cfg.CaptureFormat)...))
	if err != nil {
		c.logger.Warnf("list devices: %v", err)
		return []diag.Device{diag.FallbackDevice}
	}
	// list_devices always exits non-zero because no input is opened.
	return diag.ParseDevices(res.Stderr)
}

type job struct {
	model      string
	language   string
	prompt     string
	timestamps bool
	validate   bool
	convert    []string
	paste      bool
	emptyCue   bool
}

func (c *Controller) process(ctx context.Context, run *db.Run, p session.Paths, j job) (*Result, error) {
	if j.validate {
		c.notifyState(p.ID, StateValidating, nil)
		run.State = StateValidating.String()
		if err := c.validate(p.Raw); err != nil {
			return nil, err
		}
	}

	c.notifyState(p.ID, StateConverting, nil)
	run.State = StateConverting.String()
	if err := c.convert(ctx, j.convert); err != nil {
		return nil, err
	}
	run.AudioDuration = wavDuration(p.Wav, c.logger)

	c.notifyState(p.ID, StateTranscribing, nil)
	run.State = StateTranscribing.String()
	text, stderr, err := c.recognize(ctx, p.Wav, j)
	if err != nil {
		return nil, err
	}

	c.notifyState(p.ID, StatePersisting, nil)
	run.State = StatePersisting.String()
	body := text
	if text == "" {
		body = "(empty)\n\nstderr:\n" + stderr
	}
	if err := os.WriteFile(p.Transcript, []byte(body), 0o644); err != nil {
		return nil, stageErr(StatePersisting, ErrPersist, err)
	}
	run.TextLength = len(text)

	c.notifier.Notify(Event{Type: EventTranscript, SessionID: p.ID, Text: text})
	c.sideEffects(text, j)

	return &Result{
		SessionID:      p.ID,
		Text:           text,
		TranscriptPath: p.Transcript,
		Empty:          text == "",
	}, nil
}

func (c *Controller) validate(rawPath string) error {
	info, err := os.Stat(rawPath)
	if err != nil {
		return stageErr(StateValidating, ErrArtifactMissing, err)
	}
	if info.Size() < c.cfg.MinArtifactBytes {
		return &StageError{
			Stage:      StateValidating,
			Kind:       ErrRecordingTooShort,
			Diagnostic: fmt.Sprintf("%d bytes", info.Size()),
		}
	}
	return nil
}

func (c *Controller) convert(ctx context.Context, args []string) error {
	res, err := c.sup.Run(ctx, c.cfg.FFmpeg.command(args...))
	if err != nil {
		return stageErr(StateConverting, ErrSpawn, err)
	}
	if !res.Success() {
		return &StageError{
			Stage:      StateConverting,
			Kind:       ErrConversion,
			Diagnostic: strings.TrimSpace(res.Stderr),
			Err:        fmt.Errorf("exit status %d", res.ExitCode),
		}
	}
	return nil
}

// recognize returns the transcript and the recognizer's stderr. Stdout is
// trimmed; a subtitle sidecar is returned as written.
func (c *Controller) recognize(ctx context.Context, wavPath string, j job) (string, string, error) {
	modelPath := ""
	if c.models != nil {
		modelPath = c.models.Path(j.model)
	}
	if modelPath == "" {
		return "", "", stageErr(StateTranscribing, ErrTranscription, fmt.Errorf("no model file for %q", j.model))
	}

	args := recognizeArgs(modelPath, wavPath, c.cfg.Threads, j.language, j.prompt, j.timestamps)
	res, err := c.sup.Run(ctx, c.cfg.Whisper.command(args...))
	if err != nil {
		return "", "", stageErr(StateTranscribing, ErrSpawn, err)
	}
	if !res.Success() {
		c.logger.Warnf("whisper exited with code %d", res.ExitCode)
	}

	text := strings.TrimSpace(res.Stdout)
	if j.timestamps {
		data, err := os.ReadFile(srtPath(wavPath))
		switch {
		case err == nil:
			return string(data), res.Stderr, nil
		case errors.Is(err, os.ErrNotExist):
			c.logger.Warnf("subtitle file %s missing, using stdout", srtPath(wavPath))
		default:
			return "", res.Stderr, &StageError{
				Stage:      StateTranscribing,
				Kind:       ErrTranscription,
				Diagnostic: res.Stderr,
				Err:        err,
			}
		}
	}
	return text, res.Stderr, nil
}

// sideEffects runs the best-effort completion actions. Failures are logged
// and never returned. An empty transcript plays the failure cue only for
// live sessions.
func (c *Controller) sideEffects(text string, j job) {
	if text == "" {
		if j.emptyCue {
			c.playCue(false)
		}
		return
	}

	if c.clipboard != nil {
		if err := c.clipboard.WriteText(text); err != nil {
			c.logger.Warnf("clipboard: %v", err)
		}
	}
	if j.paste && c.paster != nil {
		go func() {
			time.Sleep(pasteDelay)
			if err := c.paster.Paste(); err != nil {
				c.logger.Warnf("paste: %v", err)
			}
		}()
	}
	c.playCue(true)
}

func (c *Controller) playCue(success bool) {
	if c.cue == nil {
		return
	}
	go func() {
		var err error
		if success {
			err = c.cue.Success()
		} else {
			err = c.cue.Failure()
		}
		if err != nil {
			c.logger.Warnf("cue: %v", err)
		}
	}()
}

func (c *Controller) newRun(sessionID, mode, model, language string) db.Run {
	return db.Run{
		SessionID: sessionID,
		Mode:      mode,
		Model:     model,
		Language:  language,
		StartedAt: c.now(),
	}
}

// finish marks the run terminal, emits the closing events and passes err
// through unchanged.
func (c *Controller) finish(run *db.Run, sessionID string, err error) error {
	run.FinishedAt = c.now()
	if err != nil {
		run.State = StateFailed.String()
		run.Error = err.Error()
		c.logger.Errorf("session %s failed: %v", sessionID, err)
		c.notifyState(sessionID, StateFailed, err)
		return err
	}
	run.State = StateCompleted.String()
	c.logger.Infof("session %s completed (%d chars)", sessionID, run.TextLength)
	c.notifyState(sessionID, StateCompleted, nil)
	return nil
}

func (c *Controller) record(run *db.Run) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(context.Background(), *run); err != nil {
		c.logger.Warnf("journal: %v", err)
	}
}

func (c *Controller) notifyState(sessionID string, state State, err error) {
	c.logger.Debugf("session %s -> %s", sessionID, state)
	c.notifier.Notify(Event{Type: EventState, SessionID: sessionID, State: state, Err: err})
}

// wavDuration reads the length of a converted file. Errors only cost the
// journal its duration column.
func wavDuration(path string, logger *zap.SugaredLogger) time.Duration {
	f, err := os.Open(path)
	if err != nil {
		logger.Warnf("open wav: %v", err)
		return 0
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		logger.Warnf("%s is not a valid wav file", path)
		return 0
	}
	if err := dec.FwdToPCM(); err != nil {
		logger.Warnf("wav header: %v", err)
		return 0
	}
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(dec.PCMLen() * int64(time.Second) / bytesPerSec)
}
