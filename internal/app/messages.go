package app

import (
	"github.com/maxyzli/whisper-flow/internal/daemon"
	"github.com/maxyzli/whisper-flow/internal/db"
	"github.com/maxyzli/whisper-flow/internal/history"
)

// DaemonConnectedMsg is sent when both daemon connections are established.
type DaemonConnectedMsg struct {
	Client   *daemon.Client // for commands (start, stop, status, devices)
	EvClient *daemon.Client // for event subscription
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonEventMsg wraps a streamed event from the daemon.
type DaemonEventMsg struct {
	Event daemon.Event
}

// DaemonEventErrorMsg is sent when the event stream encounters an error.
type DaemonEventErrorMsg struct {
	Err error
}

// StatusResponseMsg carries the response to a status command.
type StatusResponseMsg struct {
	Response daemon.Response
}

// DevicesResponseMsg carries the response to a devices command.
type DevicesResponseMsg struct {
	Response daemon.Response
}

// StartResponseMsg carries the response to a start command.
type StartResponseMsg struct {
	Response daemon.Response
}

// StopResponseMsg carries the response to a stop command.
type StopResponseMsg struct {
	Response daemon.Response
}

// CancelResponseMsg carries the response to a cancel command.
type CancelResponseMsg struct {
	Response daemon.Response
}

// HistoryLoadedMsg carries past sessions, newest first.
type HistoryLoadedMsg struct {
	Items []history.Item
}

// DeleteResponseMsg carries the response to a delete_history command.
type DeleteResponseMsg struct {
	Response daemon.Response
}

// RunsLoadedMsg carries recent journal rows read from SQLite.
type RunsLoadedMsg struct {
	Runs []db.Run
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}
