package queue

import (
	"fmt"
	"sync"
)

// StateMachine manages message state transitions.
type StateMachine interface {
	// Transition moves an entry to a new state if allowed.
	Transition(entry *Entry, to State, reason string) error

	// CanTransition checks if a transition is valid.
	CanTransition(from, to State) bool

	// IsTerminal checks if a state has no outgoing transitions.
	IsTerminal(state State) bool
}

// stateMachine implements the StateMachine interface.
type stateMachine struct {
	// transitions defines valid state transitions.
	transitions map[State][]State
	mu          sync.RWMutex
}

// NewStateMachine creates a new state machine with predefined transitions.
// A message never re-enters StateQueued; there is no retry of the whole
// message, only of sub-operations within media delivery.
func NewStateMachine() StateMachine {
	return &stateMachine{
		transitions: map[State][]State{
			StateReceived:        {StateQueued},
			StateQueued:          {StateRateChecked, StateDropped},
			StateRateChecked:     {StateLimited, StateRouted},
			StateRouted:          {StateCommandExecuted, StateMediaDelivered, StateAIResponded, StateDropped},
			StateCommandExecuted: {StateCompleted},
			StateMediaDelivered:  {StateCompleted},
			StateAIResponded:     {StateCompleted},
			StateDropped:         {StateCompleted},
			StateLimited:         {}, // Terminal state
			StateCompleted:       {}, // Terminal state
		},
	}
}

// Transition moves an entry to a new state if the transition is valid.
func (sm *stateMachine) Transition(entry *Entry, to State, reason string) error {
	if entry == nil {
		return fmt.Errorf("cannot transition nil entry")
	}

	currentState := entry.GetState()

	if !sm.CanTransition(currentState, to) {
		return fmt.Errorf("invalid transition from %s to %s", currentState, to)
	}

	entry.setState(to, reason)
	return nil
}

// CanTransition checks if a transition from one state to another is valid.
func (sm *stateMachine) CanTransition(from, to State) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	validStates, exists := sm.transitions[from]
	if !exists {
		return false
	}

	for _, state := range validStates {
		if state == to {
			return true
		}
	}

	return false
}

// IsTerminal checks if a state is terminal (no outgoing transitions).
func (sm *stateMachine) IsTerminal(state State) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	transitions, exists := sm.transitions[state]
	return exists && len(transitions) == 0
}
