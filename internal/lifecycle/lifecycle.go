// Package lifecycle provides the transition guard shared by the conversation
// and deployment-request state machines.
package lifecycle

// Table maps a state to the set of states it may legally move to.
type Table[T comparable] map[T][]T

// Allowed reports whether from -> to is a legal transition.
func (t Table[T]) Allowed(from, to T) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transitions leave the given state.
func (t Table[T]) Terminal(state T) bool {
	return len(t[state]) == 0
}
