package statemachine

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Machine is a thread-safe in-memory state machine.
// Transitions are stored as [from][event][]Transition for O(1) lookups.
type Machine[S, E ~string] struct {
	initial     S
	current     S
	transitions map[S]map[E][]Transition[S, E]
	observers   []Observer[S, E]
	mu          sync.RWMutex
}

func newMachine[S, E ~string](initial S) *Machine[S, E] {
	return &Machine[S, E]{
		initial:     initial,
		current:     initial,
		transitions: make(map[S]map[E][]Transition[S, E]),
	}
}

func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the current state is one of the given states.
func (m *Machine[S, E]) Is(states ...S) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(states, m.current)
}

func (m *Machine[S, E]) AddTransition(t Transition[S, E]) error {
	if t.From == "" || t.To == "" || t.Event == "" {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transitions[t.From]; !ok {
		m.transitions[t.From] = make(map[E][]Transition[S, E])
	}

	// Multiple transitions per from/event are allowed for guard-based branching
	m.transitions[t.From][t.Event] = append(m.transitions[t.From][t.Event], t)
	return nil
}

func (m *Machine[S, E]) Fire(ctx context.Context, event E) error {
	if event == "" {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	from := m.current

	t, err := m.match(ctx, from, event)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	for _, action := range t.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, from, t.To, event); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.current = t.To
	observers := m.observers
	m.mu.Unlock()

	for _, o := range observers {
		o(from, t.To, event)
	}
	return nil
}

func (m *Machine[S, E]) CanFire(ctx context.Context, event E) bool {
	if event == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := m.match(ctx, m.current, event)
	return err == nil
}

// Reset returns the machine to its initial state without notifying observers.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

// match returns the first transition whose guards pass. Must be called with lock held.
func (m *Machine[S, E]) match(ctx context.Context, from S, event E) (*Transition[S, E], error) {
	transitions := m.transitions[from][event]
	if len(transitions) == 0 {
		return nil, NewErrNoTransitionAvailable(string(from), string(event))
	}

	for i, t := range transitions {
		passed := true
		for _, guard := range t.Guards {
			if guard != nil && !guard(ctx, from, event) {
				passed = false
				break
			}
		}
		if passed {
			return &transitions[i], nil
		}
	}

	return nil, NewErrTransitionRejected(string(from), string(event))
}
