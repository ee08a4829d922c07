// Package daemon provides the protocol, client and server for talking to the
// whisper-flow daemon over a Unix socket using NDJSON.
package daemon

import (
	"time"

	"github.com/maxyzli/whisper-flow/internal/diag"
	"github.com/maxyzli/whisper-flow/internal/history"
	"github.com/maxyzli/whisper-flow/internal/models"
)

// Command names.
const (
	CmdStart          = "start"
	CmdStop           = "stop"
	CmdCancel         = "cancel"
	CmdStatus         = "status"
	CmdDevices        = "devices"
	CmdTranscribeFile = "transcribe_file"
	CmdHistory        = "history"
	CmdTranscript     = "transcript"
	CmdDeleteHistory  = "delete_history"
	CmdRuns           = "runs"
	CmdModelStatus    = "model_status"
	CmdDownloadModel  = "download_model"
	CmdSubscribe      = "subscribe"
)

// Event names.
const (
	EvReady            = "ready"
	EvLevel            = "level"
	EvStatus           = "status"
	EvTranscript       = "transcript"
	EvError            = "error"
	EvDownloadProgress = "download_progress"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd        string   `json:"cmd"`
	Device     string   `json:"device,omitempty"`
	Model      string   `json:"model,omitempty"`
	Language   string   `json:"language,omitempty"`
	Prompt     string   `json:"prompt,omitempty"`
	Path       string   `json:"path,omitempty"`
	Timestamps *bool    `json:"timestamps,omitempty"`
	ID         string   `json:"id,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Events     []string `json:"events,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK             bool           `json:"ok"`
	Error          string         `json:"error,omitempty"`
	ErrorKind      string         `json:"errorKind,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
	AlreadyActive  *bool          `json:"alreadyActive,omitempty"`
	Recording      *bool          `json:"recording,omitempty"`
	Device         string         `json:"device,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	Text           string         `json:"text,omitempty"`
	TranscriptPath string         `json:"transcriptPath,omitempty"`
	Empty          *bool          `json:"empty,omitempty"`
	Devices        []diag.Device  `json:"devices,omitempty"`
	History        []history.Item `json:"history,omitempty"`
	Runs           []Run          `json:"runs,omitempty"`
	Model          *models.Status `json:"model,omitempty"`
	Path           string         `json:"path,omitempty"`
}

// Run is a journal row as sent over the wire.
type Run struct {
	SessionID       string    `json:"sessionId"`
	Mode            string    `json:"mode"`
	State           string    `json:"state"`
	Error           string    `json:"error,omitempty"`
	Model           string    `json:"model,omitempty"`
	TextLength      int       `json:"textLength"`
	AudioDurationMs int64     `json:"audioDurationMs"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event      string   `json:"event"`
	SessionID  string   `json:"sessionId,omitempty"`
	Level      *float64 `json:"level,omitempty"`
	State      string   `json:"state,omitempty"`
	Recording  *bool    `json:"recording,omitempty"`
	Text       string   `json:"text,omitempty"`
	Message    string   `json:"message,omitempty"`
	Model      string   `json:"model,omitempty"`
	Percent    *int     `json:"percent,omitempty"`
	TotalBytes *int64   `json:"totalBytes,omitempty"`
}

// BoolPtr returns a pointer to a bool value. Convenience for building commands.
func BoolPtr(b bool) *bool { return &b }
