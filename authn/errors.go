package authn

import "errors"

var (
	// ErrInvalidTransition is returned when the submitted step kind is
	// not the session's next required kind, or the session is terminal.
	ErrInvalidTransition = errors.New("invalid authentication transition")

	// ErrVerificationFailed is returned when a credential proof is
	// rejected by its verifier. Failures accumulate toward the retry
	// budget lockout.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrSessionLocked is returned when a failure exhausts the retry
	// budget and the session transitions to the failed state.
	ErrSessionLocked = errors.New("session locked after too many failed attempts")

	// ErrUnknownStepKind is returned at construction when the flow
	// names a step kind with no registered verifier.
	ErrUnknownStepKind = errors.New("no verifier registered for step kind")
)
