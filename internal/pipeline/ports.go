package pipeline

import (
	"context"

	"github.com/maxyzli/whisper-flow/internal/db"
)

// EventType identifies a notification sent to the UI boundary.
type EventType string

const (
	EventReady      EventType = "ready"
	EventLevel      EventType = "level"
	EventState      EventType = "state"
	EventTranscript EventType = "transcript"
)

// Event is a fire-and-forget notification.
type Event struct {
	Type      EventType
	SessionID string
	Level     float64 // EventLevel
	State     State   // EventState
	Text      string  // EventTranscript
	Err       error   // EventState when State is StateFailed
}

// Notifier receives pipeline events. Notify must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}

// Clipboard receives the recognized text.
type Clipboard interface {
	WriteText(text string) error
}

// Cue plays an audible completion signal.
type Cue interface {
	Success() error
	Failure() error
}

// Paster simulates the platform paste keystroke.
type Paster interface {
	Paste() error
}

// ModelResolver maps a model name to its file on disk.
type ModelResolver interface {
	Path(name string) string
}

// Journal records one row per pipeline run.
type Journal interface {
	Record(ctx context.Context, run db.Run) error
}
