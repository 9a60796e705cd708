// Package statemachine holds the generic transition machinery shared by nodes
// and strategies. A transition table is a pure function from the current state
// and a trigger to the next state plus an ordered list of actions.
package statemachine

import (
	"fmt"

	"github.com/rxtech-lab/argo-graph/pkg/errors"
)

// Result is the outcome of a successful transition.
type Result[S ~string, A any] struct {
	NewState S
	Actions  []A
}

// TransitionFunc maps (state, trigger) to a Result, or an
// *errors.InvalidStateTransitionError for undefined pairs. It must not do I/O.
type TransitionFunc[S ~string, T fmt.Stringer, A any] func(state S, trigger T) (Result[S, A], error)

// Machine holds the current state of one node or strategy.
// Machine is not safe for concurrent use; owners guard it with their own lock.
type Machine[S ~string, T fmt.Stringer, A any] struct {
	name       string
	current    S
	transition TransitionFunc[S, T, A]
	metadata   map[string]string
}

// New creates a Machine starting in initial.
func New[S ~string, T fmt.Stringer, A any](name string, initial S, fn TransitionFunc[S, T, A]) *Machine[S, T, A] {
	return &Machine[S, T, A]{
		name:       name,
		current:    initial,
		transition: fn,
		metadata:   make(map[string]string),
	}
}

// Name returns the machine name used in diagnostics.
func (m *Machine[S, T, A]) Name() string {
	return m.name
}

// Current returns the current state.
func (m *Machine[S, T, A]) Current() S {
	return m.current
}

// Transition applies trigger. On success the state moves to the result's
// NewState; on failure the state is left untouched.
func (m *Machine[S, T, A]) Transition(trigger T) (Result[S, A], error) {
	result, err := m.transition(m.current, trigger)
	if err != nil {
		return Result[S, A]{}, err
	}

	m.current = result.NewState

	return result, nil
}

// SetMetadata attaches a diagnostic key/value pair.
func (m *Machine[S, T, A]) SetMetadata(key, value string) {
	m.metadata[key] = value
}

// Metadata returns a copy of the diagnostic metadata.
func (m *Machine[S, T, A]) Metadata() map[string]string {
	out := make(map[string]string, len(m.metadata))
	for k, v := range m.metadata {
		out[k] = v
	}

	return out
}

// Invalid builds the error every table returns for an undefined pair.
func Invalid[S ~string, T fmt.Stringer](machine string, state S, trigger T) error {
	return errors.NewInvalidStateTransitionError(machine, string(state), trigger.String())
}

// Pair names one defined (state, trigger) entry of a table.
type Pair[S ~string] struct {
	From    S
	Trigger string
}
