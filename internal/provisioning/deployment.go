package provisioning

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DeploymentState is a step of the bootstrap state machine.
type DeploymentState string

// Deployment states, in order.
const (
	StateStart               DeploymentState = "Start"
	StateNetworkReady        DeploymentState = "NetworkReady"
	StateManagerCreating     DeploymentState = "ManagerCreating"
	StateManagerInitializing DeploymentState = "ManagerInitializing"
	StateTokenPublished      DeploymentState = "TokenPublished"
	StateWorkersCreating     DeploymentState = "WorkersCreating"
	StateWorkersJoining      DeploymentState = "WorkersJoining"
	StateReady               DeploymentState = "Ready"
	StateFailed              DeploymentState = "Failed"
)

// AllStates lists every state in order.
var AllStates = []DeploymentState{
	StateStart,
	StateNetworkReady,
	StateManagerCreating,
	StateManagerInitializing,
	StateTokenPublished,
	StateWorkersCreating,
	StateWorkersJoining,
	StateReady,
	StateFailed,
}

// Any non-terminal state may also move to StateFailed.
var transitions = map[DeploymentState][]DeploymentState{
	StateStart:               {StateNetworkReady},
	StateNetworkReady:        {StateManagerCreating},
	StateManagerCreating:     {StateManagerInitializing},
	StateManagerInitializing: {StateTokenPublished},
	StateTokenPublished:      {StateWorkersCreating, StateReady},
	StateWorkersCreating:     {StateWorkersJoining},
	StateWorkersJoining:      {StateReady},
}

// ErrIllegalTransition is returned for a transition the state machine does not allow.
var ErrIllegalTransition = errors.New("illegal deployment state transition")

// IsTerminal reports whether no further transition is possible.
func (s DeploymentState) IsTerminal() bool {
	return s == StateReady || s == StateFailed
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to DeploymentState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is one recorded state change.
type Transition struct {
	From DeploymentState
	To   DeploymentState
	At   time.Time
}

// TransitionListener is called after every successful transition.
type TransitionListener func(t Transition)

// Deployment tracks the state of one apply. It is safe for concurrent use.
type Deployment struct {
	mu         sync.Mutex
	state      DeploymentState
	failedFrom DeploymentState
	history    []Transition
	listeners  []TransitionListener
	now        func() time.Time
}

// NewDeployment returns a deployment in StateStart.
func NewDeployment() *Deployment {
	return &Deployment{state: StateStart, now: time.Now}
}

// OnTransition registers a listener.
func (d *Deployment) OnTransition(fn TransitionListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// State returns the current state.
func (d *Deployment) State() DeploymentState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// FailedFrom returns the state the deployment failed in, or "" if it has not failed.
func (d *Deployment) FailedFrom() DeploymentState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failedFrom
}

// History returns every transition so far.
func (d *Deployment) History() []Transition {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Transition(nil), d.history...)
}

// Transition moves the deployment to the given state.
func (d *Deployment) Transition(to DeploymentState) error {
	d.mu.Lock()
	from := d.state
	if !CanTransition(from, to) {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	t := Transition{From: from, To: to, At: d.now()}
	d.state = to
	if to == StateFailed {
		d.failedFrom = from
	}
	d.history = append(d.history, t)
	listeners := append([]TransitionListener(nil), d.listeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	return nil
}

// Fail moves the deployment to StateFailed and returns the state it failed
// in. Failing an already failed deployment keeps the original state.
func (d *Deployment) Fail() DeploymentState {
	if err := d.Transition(StateFailed); err != nil {
		if from := d.FailedFrom(); from != "" {
			return from
		}
		return d.State()
	}
	return d.FailedFrom()
}
