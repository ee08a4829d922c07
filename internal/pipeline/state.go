package pipeline

// State is a pipeline lifecycle stage.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateValidating
	StateConverting
	StateTranscribing
	StatePersisting
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateRecording:    "recording",
	StateStopping:     "stopping",
	StateValidating:   "validating",
	StateConverting:   "converting",
	StateTranscribing: "transcribing",
	StatePersisting:   "persisting",
	StateCompleted:    "completed",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}
