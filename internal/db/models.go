// Package db provides the SQLite session journal: one row per pipeline run.
package db

import "time"

// Run modes.
const (
	ModeLive = "live"
	ModeFile = "file"
)

// Run records one pass through the transcription pipeline.
type Run struct {
	ID            string
	SessionID     string
	Mode          string
	Device        string
	Source        string // input file in file mode
	Model         string
	Language      string
	State         string
	Error         string
	TextLength    int
	AudioDuration time.Duration
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Failed reports whether the run ended in an error.
func (r *Run) Failed() bool {
	return r.Error != ""
}
