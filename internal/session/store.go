package session

import (
	"sync"
	"time"

	"github.com/maxyzli/whisper-flow/internal/process"
)

// Session is an active recording. It is created by a start request and
// consumed exactly once by a stop request.
type Session struct {
	Paths
	DeviceID  string
	StartedAt time.Time
	Capture   *process.Handle
}

// Status is a read-only view of the store.
type Status struct {
	Active    bool
	ID        string
	DeviceID  string
	StartedAt time.Time
}

// Store holds at most one active Session. The lock is held only for the
// swap, never across process or filesystem work.
type Store struct {
	mu     sync.Mutex
	active *Session
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Begin installs s if the slot is empty. It returns false and leaves the
// current session untouched if one is already active.
func (st *Store) Begin(s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.active != nil {
		return false
	}
	st.active = s
	return true
}

// Take removes and returns the active session, or nil if there is none.
func (st *Store) Take() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.active
	st.active = nil
	return s
}

// Busy reports whether a session is active.
func (st *Store) Busy() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.active != nil
}

func (st *Store) Status() Status {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.active == nil {
		return Status{}
	}
	return Status{
		Active:    true,
		ID:        st.active.ID,
		DeviceID:  st.active.DeviceID,
		StartedAt: st.active.StartedAt,
	}
}
