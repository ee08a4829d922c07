// Package mcpserver exposes file transcription, session history and model
// status as MCP tools served over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/maxyzli/whisper-flow/internal/db"
	"github.com/maxyzli/whisper-flow/internal/history"
	"github.com/maxyzli/whisper-flow/internal/models"
	"github.com/maxyzli/whisper-flow/internal/pipeline"
	"github.com/maxyzli/whisper-flow/internal/version"
)

const defaultListLimit = 20

// Transcriber runs file-mode transcription.
type Transcriber interface {
	TranscribeFile(ctx context.Context, req pipeline.FileRequest) (*pipeline.Result, error)
}

// History reads past sessions.
type History interface {
	List() ([]history.Item, error)
	Read(id string) (history.Item, error)
}

// Models reports model availability.
type Models interface {
	Status(name string) models.Status
}

// Journal reads recent pipeline runs.
type Journal interface {
	RecentRuns(ctx context.Context, limit int) ([]db.Run, error)
}

// Defaults fill in tool arguments the caller omits.
type Defaults struct {
	Model    string
	Language string
	Prompt   string
}

// Server binds whisper-flow components to MCP tool handlers.
type Server struct {
	transcriber Transcriber
	history     History
	models      Models
	journal     Journal
	defaults    Defaults
	logger      *zap.SugaredLogger
	mcp         *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithJournal enables the list_runs tool.
func WithJournal(j Journal) Option {
	return func(s *Server) { s.journal = j }
}

func WithDefaults(d Defaults) Option {
	return func(s *Server) { s.defaults = d }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server and registers its tools.
func New(t Transcriber, h History, m Models, opts ...Option) *Server {
	s := &Server{
		transcriber: t,
		history:     h,
		models:      m,
		logger:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer("whisper-flow", version.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over the given streams until ctx is cancelled or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger.Desugar()))
	return stdio.Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("transcribe_file",
		mcp.WithDescription("Transcribe an audio or video file with whisper.cpp and return the text."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the media file")),
		mcp.WithString("model", mcp.Description("Model name, e.g. base.en or large-v3-turbo")),
		mcp.WithString("language", mcp.Description("Language code or auto")),
		mcp.WithString("prompt", mcp.Description("Vocabulary hint passed to whisper")),
		mcp.WithBoolean("timestamps", mcp.Description("Return SRT with timestamps instead of plain text")),
	), s.transcribeFile)

	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List past dictation sessions, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of sessions to return")),
	), s.listHistory)

	s.mcp.AddTool(mcp.NewTool("get_transcript",
		mcp.WithDescription("Return the transcript of one session."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Session id, e.g. 2025-01-02_03-04-05")),
	), s.getTranscript)

	s.mcp.AddTool(mcp.NewTool("model_status",
		mcp.WithDescription("Report whether a whisper model is downloaded and valid."),
		mcp.WithString("model", mcp.Description("Model name")),
	), s.modelStatus)

	if s.journal != nil {
		s.mcp.AddTool(mcp.NewTool("list_runs",
			mcp.WithDescription("List recent pipeline runs from the session journal."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return")),
		), s.listRuns)
	}
}

func (s *Server) transcribeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.transcriber.TranscribeFile(ctx, pipeline.FileRequest{
		Path:       path,
		Model:      req.GetString("model", s.defaults.Model),
		Language:   req.GetString("language", s.defaults.Language),
		Prompt:     req.GetString("prompt", s.defaults.Prompt),
		Timestamps: req.GetBool("timestamps", false),
	})
	if err != nil {
		s.logger.Warnf("transcribe_file %s: %v", path, err)
		return mcp.NewToolResultErrorFromErr("transcription failed", err), nil
	}
	return mcp.NewToolResultText(res.Text), nil
}

func (s *Server) listHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.history.List()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("list history", err), nil
	}
	if limit := req.GetInt("limit", defaultListLimit); limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return jsonResult(items)
}

func (s *Server) getTranscript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	item, err := s.history.Read(id)
	switch {
	case errors.Is(err, history.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("no session %q", id)), nil
	case err != nil:
		return mcp.NewToolResultErrorFromErr("read transcript", err), nil
	}
	return mcp.NewToolResultText(item.Text), nil
}

func (s *Server) modelStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.models.Status(req.GetString("model", s.defaults.Model)))
}

type runView struct {
	SessionID       string `json:"sessionId"`
	Mode            string `json:"mode"`
	State           string `json:"state"`
	Error           string `json:"error,omitempty"`
	Model           string `json:"model,omitempty"`
	TextLength      int    `json:"textLength"`
	AudioDurationMs int64  `json:"audioDurationMs"`
	StartedAt       string `json:"startedAt"`
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.journal.RecentRuns(ctx, req.GetInt("limit", defaultListLimit))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("read journal", err), nil
	}
	views := make([]runView, 0, len(runs))
	for _, r := range runs {
		views = append(views, runView{
			SessionID:       r.SessionID,
			Mode:            r.Mode,
			State:           r.State,
			Error:           r.Error,
			Model:           r.Model,
			TextLength:      r.TextLength,
			AudioDurationMs: r.AudioDuration.Milliseconds(),
			StartedAt:       r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return jsonResult(views)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
