// Package statemachine provides a small generic finite state machine used by the
// consent manager, the ad slots and the identity sequencer.
//
// States and events are string-based types (S, E ~string), so every service keeps
// its own closed set of named constants while sharing one transition engine:
//
//	type phase string
//	type trigger string
//
//	m := statemachine.MustNew[phase, trigger]("idle",
//	    statemachine.WithTransition[phase, trigger]("idle", "loading", "load"),
//	    statemachine.WithObserver(func(from, to phase, ev trigger) {
//	        slog.Debug("transition", "from", from, "to", to, "event", ev)
//	    }),
//	)
//	_ = m.Fire(ctx, "load")
//
// Guards veto a transition; actions run after the guards and before the state
// changes, and an action error aborts the transition. Observers run after the
// state has changed and outside the machine lock.
//
// Fire returns *ErrNoTransitionAvailable when the event is not defined for the
// current state and *ErrTransitionRejected when every candidate was vetoed.
package statemachine
