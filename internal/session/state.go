package session

import (
	"fmt"
	"sync"
)

// State describes the lifecycle of one duplex connection.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
)

// transitions lists the legal lifecycle edges. Failed is terminal for the
// automatic machinery; only an explicit reconnect leaves it.
var transitions = map[State][]State{
	StateIdle:       {StateConnecting, StateClosed},
	StateConnecting: {StateOpen, StateFailed, StateClosing, StateClosed},
	StateOpen:       {StateConnecting, StateClosing, StateFailed},
	StateClosing:    {StateClosed},
	StateClosed:     {StateConnecting},
	StateFailed:     {StateConnecting, StateClosing, StateClosed},
}

// Machine is a lightweight deterministic lifecycle state machine.
type Machine struct {
	mu    sync.RWMutex
	state State
}

// NewMachine creates a machine in the idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Is reports whether the machine is currently in state.
func (m *Machine) Is(state State) bool {
	return m.State() == state
}

// To performs a guarded transition. Moving to the current state is a no-op.
func (m *Machine) To(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == next {
		return nil
	}
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid transition: %s -> %s", m.state, next)
}

// Force sets state unconditionally.
func (m *Machine) Force(state State) error {
	switch state {
	case StateIdle, StateConnecting, StateOpen, StateClosing, StateClosed, StateFailed:
		m.mu.Lock()
		m.state = state
		m.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("invalid state: %s", state)
	}
}
