package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxyzli/whisper-flow/internal/db"
	"github.com/maxyzli/whisper-flow/internal/diag"
	"github.com/maxyzli/whisper-flow/internal/history"
	"github.com/maxyzli/whisper-flow/internal/models"
	"github.com/maxyzli/whisper-flow/internal/pipeline"
	"github.com/maxyzli/whisper-flow/internal/session"
)

// ErrAlreadyRunning is returned when another daemon owns the socket.
var ErrAlreadyRunning = errors.New("daemon already running")

// Pipeline is the recording controller the daemon drives.
type Pipeline interface {
	Start(ctx context.Context, deviceID string) (pipeline.StartResult, error)
	Stop(ctx context.Context, req pipeline.StopRequest) (*pipeline.Result, error)
	Cancel() (string, error)
	TranscribeFile(ctx context.Context, req pipeline.FileRequest) (*pipeline.Result, error)
	Devices(ctx context.Context) []diag.Device
	Status() session.Status
}

// History lists and deletes past sessions.
type History interface {
	List() ([]history.Item, error)
	Read(id string) (history.Item, error)
	Delete(id string) error
}

// Models reports on and downloads recognition models.
type Models interface {
	Status(name string) models.Status
	Download(ctx context.Context, name string, progress func(models.Progress)) (string, error)
}

// Journal is the read side of the session journal.
type Journal interface {
	RecentRuns(ctx context.Context, limit int) ([]db.Run, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Defaults fill in recognition parameters a command leaves empty.
type Defaults struct {
	Device   string
	Model    string
	Language string
	Prompt   string
}

// Server hosts a Pipeline on a Unix socket.
type Server struct {
	pipeline Pipeline
	history  History
	models   Models
	journal  Journal
	events   *Broadcaster
	defaults Defaults
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	conns map[string]net.Conn
	wg    sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithJournal(j Journal) ServerOption {
	return func(s *Server) { s.journal = j }
}

func WithDefaults(d Defaults) ServerOption {
	return func(s *Server) { s.defaults = d }
}

func WithLogger(l *zap.SugaredLogger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a Server. events must be the Broadcaster the pipeline
// notifies.
func NewServer(p Pipeline, h History, m Models, events *Broadcaster, opts ...ServerOption) *Server {
	s := &Server{
		pipeline: p,
		history:  h,
		models:   m,
		events:   events,
		defaults: Defaults{Device: "0", Language: "auto"},
		logger:   zap.NewNop().Sugar(),
		conns:    make(map[string]net.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen creates the Unix socket at path, replacing a stale socket file
// left behind by a daemon that exited uncleanly.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
			conn.Close()
			return nil, fmt.Errorf("%w at %s", ErrAlreadyRunning, path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return ln, nil
}

// Serve accepts connections until ctx is cancelled. On return every
// connection is closed and an active recording is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("accept: %w", err)
			}
			id := uuid.NewString()
			s.track(id, conn)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.untrack(id)
				s.handle(gctx, id, conn)
			}()
		}
	})

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	s.closeAll()
	s.wg.Wait()

	if id, cerr := s.pipeline.Cancel(); cerr == nil {
		s.logger.Infof("cancelled recording %s on shutdown", id)
	}
	return err
}

func (s *Server) track(id string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = conn
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
}

// connWriter serializes responses and events written to one connection.
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func (w *connWriter) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.conn.Write(data)
	return err
}

func (s *Server) handle(ctx context.Context, id string, conn net.Conn) {
	defer conn.Close()
	s.logger.Debugf("client %s connected", id)

	w := &connWriter{conn: conn}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	subscribed := false
	defer func() {
		if subscribed {
			s.events.Unsubscribe(id)
		}
		s.logger.Debugf("client %s disconnected", id)
	}()

	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			if w.write(Response{Error: "invalid command: " + err.Error(), ErrorKind: "invalid_command"}) != nil {
				return
			}
			continue
		}

		if cmd.Cmd == CmdSubscribe {
			ch := s.events.Subscribe(id, cmd.Events)
			subscribed = true
			if w.write(Response{OK: true}) != nil {
				return
			}
			go pump(w, ch)
			continue
		}

		if err := w.write(s.dispatch(ctx, cmd)); err != nil {
			return
		}
	}
}

// pump forwards subscribed events until the channel is closed or the
// connection fails.
func pump(w *connWriter, ch <-chan Event) {
	for ev := range ch {
		if err := w.write(ev); err != nil {
			for range ch {
			}
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) Response {
	s.logger.Debugf("command %s", cmd.Cmd)
	switch cmd.Cmd {
	case CmdStart:
		res, err := s.pipeline.Start(ctx, or(cmd.Device, s.defaults.Device))
		if err != nil {
			return failure(err)
		}
		return Response{
			OK:            true,
			SessionID:     res.SessionID,
			AlreadyActive: BoolPtr(res.AlreadyActive),
			Recording:     BoolPtr(true),
		}

	case CmdStop:
		res, err := s.pipeline.Stop(ctx, pipeline.StopRequest{
			Model:    or(cmd.Model, s.defaults.Model),
			Language: or(cmd.Language, s.defaults.Language),
			Prompt:   or(cmd.Prompt, s.defaults.Prompt),
		})
		if err != nil {
			return failure(err)
		}
		return resultResponse(res)

	case CmdCancel:
		id, err := s.pipeline.Cancel()
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, SessionID: id, Recording: BoolPtr(false)}

	case CmdStatus:
		st := s.pipeline.Status()
		resp := Response{OK: true, Recording: BoolPtr(st.Active)}
		if st.Active {
			started := st.StartedAt
			resp.SessionID = st.ID
			resp.Device = st.DeviceID
			resp.StartedAt = &started
		}
		return resp

	case CmdDevices:
		return Response{OK: true, Devices: s.pipeline.Devices(ctx)}

	case CmdTranscribeFile:
		req := pipeline.FileRequest{
			Path:     cmd.Path,
			Model:    or(cmd.Model, s.defaults.Model),
			Language: or(cmd.Language, s.defaults.Language),
			Prompt:   or(cmd.Prompt, s.defaults.Prompt),
		}
		if cmd.Timestamps != nil {
			req.Timestamps = *cmd.Timestamps
		}
		res, err := s.pipeline.TranscribeFile(ctx, req)
		if err != nil {
			return failure(err)
		}
		return resultResponse(res)

	case CmdHistory:
		items, err := s.history.List()
		if err != nil {
			return failure(err)
		}
		if cmd.Limit > 0 && len(items) > cmd.Limit {
			items = items[:cmd.Limit]
		}
		return Response{OK: true, History: items}

	case CmdTranscript:
		item, err := s.history.Read(cmd.ID)
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, SessionID: item.ID, Text: item.Text}

	case CmdDeleteHistory:
		if st := s.pipeline.Status(); st.Active && st.ID == cmd.ID {
			return Response{Error: "session is recording", ErrorKind: "busy"}
		}
		if err := s.history.Delete(cmd.ID); err != nil {
			return failure(err)
		}
		if s.journal != nil {
			if err := s.journal.DeleteSession(ctx, cmd.ID); err != nil {
				s.logger.Warnf("journal: %v", err)
			}
		}
		return Response{OK: true, SessionID: cmd.ID}

	case CmdRuns:
		if s.journal == nil {
			return Response{OK: true}
		}
		limit := cmd.Limit
		if limit <= 0 {
			limit = 20
		}
		runs, err := s.journal.RecentRuns(ctx, limit)
		if err != nil {
			return failure(err)
		}
		return Response{OK: true, Runs: wireRuns(runs)}

	case CmdModelStatus:
		st := s.models.Status(or(cmd.Model, s.defaults.Model))
		return Response{OK: true, Model: &st}

	case CmdDownloadModel:
		name := or(cmd.Model, s.defaults.Model)
		path, err := s.models.Download(ctx, name, s.events.Progress)
		if err != nil {
			s.events.Publish(Event{Event: EvError, Model: name, Message: err.Error()})
			return failure(err)
		}
		st := s.models.Status(name)
		return Response{OK: true, Path: path, Model: &st}

	default:
		return Response{Error: fmt.Sprintf("unknown command %q", cmd.Cmd), ErrorKind: "unknown_command"}
	}
}

func resultResponse(res *pipeline.Result) Response {
	return Response{
		OK:             true,
		SessionID:      res.SessionID,
		Text:           res.Text,
		TranscriptPath: res.TranscriptPath,
		Empty:          BoolPtr(res.Empty),
		Recording:      BoolPtr(false),
	}
}

func wireRuns(runs []db.Run) []Run {
	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		out = append(out, Run{
			SessionID:       r.SessionID,
			Mode:            r.Mode,
			State:           r.State,
			Error:           r.Error,
			Model:           r.Model,
			TextLength:      r.TextLength,
			AudioDurationMs: r.AudioDuration.Milliseconds(),
			StartedAt:       r.StartedAt,
			FinishedAt:      r.FinishedAt,
		})
	}
	return out
}

func failure(err error) Response {
	return Response{Error: err.Error(), ErrorKind: ErrorKind(err)}
}

// ErrorKind names the error category carried in Response.ErrorKind.
func ErrorKind(err error) string {
	kinds := []struct {
		target error
		name   string
	}{
		{pipeline.ErrNoActiveSession, "no_active_session"},
		{pipeline.ErrInvalidPath, "invalid_path"},
		{pipeline.ErrDirectoryCreate, "directory_create"},
		{pipeline.ErrArtifactMissing, "artifact_missing"},
		{pipeline.ErrRecordingTooShort, "recording_too_short"},
		{pipeline.ErrSpawn, "spawn"},
		{pipeline.ErrConversion, "conversion"},
		{pipeline.ErrTranscription, "transcription"},
		{pipeline.ErrPersist, "persist"},
		{history.ErrNotFound, "not_found"},
		{history.ErrInvalidID, "invalid_id"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.name
		}
	}
	return "internal"
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
