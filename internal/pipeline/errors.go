package pipeline

import (
	"errors"
	"fmt"

	"github.com/maxyzli/whisper-flow/internal/session"
)

// Error kinds. Every error returned by the Controller matches exactly one of
// these with errors.Is.
var (
	ErrNoActiveSession   = errors.New("no active recording session")
	ErrInvalidPath       = errors.New("invalid path")
	ErrDirectoryCreate   = session.ErrDirectoryCreate
	ErrArtifactMissing   = errors.New("recording artifact missing")
	ErrRecordingTooShort = errors.New("recording too short")
	ErrSpawn             = errors.New("failed to launch tool")
	ErrConversion        = errors.New("audio conversion failed")
	ErrTranscription     = errors.New("transcription failed")
	ErrPersist           = errors.New("failed to write transcript")
)

// StageError reports a failure at one pipeline stage. Diagnostic holds the
// tool's stderr when there is one.
type StageError struct {
	Stage      State
	Kind       error
	Diagnostic string
	Err        error
}

func (e *StageError) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Diagnostic != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Diagnostic)
	}
	return msg
}

// Is matches the error kind, so callers can test errors.Is(err, ErrConversion).
func (e *StageError) Is(target error) bool {
	return e.Kind == target
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage State, kind error, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
