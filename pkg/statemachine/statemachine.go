package statemachine

import (
	"context"
)

// Action executes side effects during a transition. Returning an error prevents the transition.
type Action[S, E ~string] func(ctx context.Context, from, to S, event E) error

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard[S, E ~string] func(ctx context.Context, from S, event E) bool

// Observer is notified after a transition has been applied.
// Observers run outside the machine lock, so they may read the machine state.
type Observer[S, E ~string] func(from, to S, event E)

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition[S, E ~string] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // all must pass for the transition to proceed
	Actions []Action[S, E] // executed in order before the state changes
}

// StateMachine defines the finite state machine operations shared by the engine services.
type StateMachine[S, E ~string] interface {
	Current() S
	Is(states ...S) bool
	AddTransition(t Transition[S, E]) error
	Fire(ctx context.Context, event E) error
	CanFire(ctx context.Context, event E) bool
	Reset()
}
