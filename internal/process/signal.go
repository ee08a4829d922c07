package process

// Signaler delivers termination signals and probes liveness.
type Signaler interface {
	// Interrupt asks the process to exit and flush its output.
	Interrupt(pid int) error
	// Kill terminates the process immediately.
	Kill(pid int) error
	// Alive is a non-blocking liveness probe.
	Alive(pid int) bool
}

// OSSignaler signals real processes.
type OSSignaler struct{}
