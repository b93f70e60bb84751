package sessions

import "errors"

var (
	// ErrNotFound is returned when a session is absent or expired.
	ErrNotFound = errors.New("session not found")

	// ErrStepOrder is returned when an appended step does not match the
	// session's next required step kind. Concurrent advances on one
	// session surface as this error for the loser.
	ErrStepOrder = errors.New("step does not match the next required step")

	// ErrTerminal is returned when appending to an authenticated or
	// failed session.
	ErrTerminal = errors.New("session is in a terminal state")
)
