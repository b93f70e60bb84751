package authn

import (
	"context"
	"fmt"

	"github.com/gatekeeper-id/gatekeeper/sessions"
)

// Proof carries the credential material submitted for one step. The
// contents are opaque to the state machine; only the verifier for the
// step kind interprets them.
type Proof struct {
	// Identifier names the subject claiming the proof (e.g. the login
	// email for a primary credential). May be empty for later steps.
	Identifier string

	// Secret is the credential itself: password, one-time code, device
	// token. Never logged.
	Secret string

	// UserID is the subject already bound to the session, filled in by
	// the state machine for steps after the first success.
	UserID string
}

// Result is what a successful verification yields.
type Result struct {
	// UserID is the subject the proof resolved to. The first step that
	// returns a non-empty UserID binds the session's owning user.
	UserID string
}

// Verifier validates one kind of credential proof. Implementations
// return ErrVerificationFailed (possibly wrapped) for rejected proofs
// and other errors for infrastructure faults.
type Verifier interface {
	Verify(ctx context.Context, proof Proof) (Result, error)
}

// Registry maps step kinds to their verifiers. Registration happens at
// startup; lookups are read-only afterwards.
type Registry struct {
	verifiers map[sessions.StepKind]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[sessions.StepKind]Verifier)}
}

// Register binds a verifier to a step kind, replacing any previous one.
func (r *Registry) Register(kind sessions.StepKind, v Verifier) {
	r.verifiers[kind] = v
}

func (r *Registry) verifier(kind sessions.StepKind) (Verifier, error) {
	v, ok := r.verifiers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStepKind, kind)
	}
	return v, nil
}
