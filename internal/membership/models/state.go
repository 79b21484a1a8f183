package models

// State is the lifecycle position of a membership. Transitions only move
// along the edges in allowedTransitions; Terminated and Rejected are
// absorbing.
type State string

const (
	StateDraft      State = "draft"
	StatePending    State = "pending"
	StateApproved   State = "approved"
	StateActive     State = "active"
	StateSuspended  State = "suspended"
	StateTerminated State = "terminated"
	StateRejected   State = "rejected"
)

// allowedTransitions maps each state to the states it may move to.
// Termination is reachable from every non-terminal state.
var allowedTransitions = map[State][]State{
	StateDraft:      {StatePending, StateTerminated},
	StatePending:    {StateApproved, StateRejected, StateTerminated},
	StateApproved:   {StateActive, StateTerminated},
	StateActive:     {StateSuspended, StateTerminated},
	StateSuspended:  {StateActive, StateTerminated},
	StateTerminated: {},
	StateRejected:   {},
}

// CanTransitionTo reports whether the edge from s to target exists.
func (s State) CanTransitionTo(target State) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing edges.
func (s State) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// IsValid reports whether s is a known lifecycle state.
func (s State) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s State) String() string { return string(s) }
