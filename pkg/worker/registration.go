package worker

import "sync"

// State is the lifecycle state of the worker registration.
type State int

const (
	StateParsed State = iota
	StateInstalled
	StateActivating
	StateActivated
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	}
	return "unknown"
}

// Registration is the platform-visible handle of the worker. The device
// waits on Active before handing out its push manager.
type Registration struct {
	mu     sync.Mutex
	state  State
	active chan struct{}
}

func newRegistration() *Registration {
	return &Registration{active: make(chan struct{})}
}

// State returns the current lifecycle state.
func (r *Registration) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Active is closed once the worker has activated.
func (r *Registration) Active() <-chan struct{} {
	return r.active
}

func (r *Registration) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateActivated {
		return
	}
	r.state = s
	if s == StateActivated {
		close(r.active)
	}
}
