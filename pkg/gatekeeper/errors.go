package gatekeeper

import "errors"

var (
	ErrNotAttached  = errors.New("gatekeeper: engine is not attached")
	ErrEmptyUserID  = errors.New("gatekeeper: user id is required")
	ErrNoSession    = errors.New("gatekeeper: no user session")
	ErrEngineClosed = errors.New("gatekeeper: engine is detached")
)
