// Package session allocates per-recording directories and holds the single
// active recording.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// IDLayout formats a session id: local time at one-second resolution.
const IDLayout = "2006-01-02_15-04-05"

// File names inside a session directory.
const (
	RawFile        = "input.raw"
	WavFile        = "input_16k.wav"
	TranscriptFile = "transcript.txt"
)

var (
	// ErrDirectoryCreate is returned when a session directory cannot be created.
	ErrDirectoryCreate = errors.New("create session directory")
	// ErrInvalidPath is returned for an empty base directory.
	ErrInvalidPath = errors.New("invalid path")
)

// Paths is the file layout of one session. Every path shares Dir as parent
// and the base name of Dir equals ID.
type Paths struct {
	ID         string
	Dir        string
	Raw        string
	Wav        string
	Transcript string
}

// PathsFor derives the layout of session id under baseDir without touching
// the filesystem.
func PathsFor(baseDir, id string) Paths {
	dir := filepath.Join(baseDir, id)
	return Paths{
		ID:         id,
		Dir:        dir,
		Raw:        filepath.Join(dir, RawFile),
		Wav:        filepath.Join(dir, WavFile),
		Transcript: filepath.Join(dir, TranscriptFile),
	}
}

// IDFor formats t as a session id.
func IDFor(t time.Time) string {
	return t.Local().Format(IDLayout)
}

// ParseID reverses IDFor.
func ParseID(id string) (time.Time, error) {
	return time.ParseInLocation(IDLayout, id, time.Local)
}

// Allocator creates session directories under a base directory.
type Allocator struct {
	baseDir string
	now     func() time.Time
	logger  *zap.SugaredLogger
}

// NewAllocator returns an Allocator rooted at baseDir. A nil clock uses
// time.Now and a nil logger discards output.
func NewAllocator(baseDir string, now func() time.Time, logger *zap.SugaredLogger) *Allocator {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Allocator{baseDir: baseDir, now: now, logger: logger}
}

// BaseDir returns the directory sessions are created in.
func (a *Allocator) BaseDir() string {
	return a.baseDir
}

// Allocate creates a fresh session directory named after the current time.
// Two allocations within the same second share a directory; the second one
// logs a warning and reuses it.
func (a *Allocator) Allocate() (Paths, error) {
	if a.baseDir == "" {
		return Paths{}, ErrInvalidPath
	}
	p := PathsFor(a.baseDir, IDFor(a.now()))

	if _, err := os.Stat(p.Dir); err == nil {
		a.logger.Warnf("session directory %s already exists, reusing", p.Dir)
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("%w %s: %v", ErrDirectoryCreate, p.Dir, err)
	}
	return p, nil
}
