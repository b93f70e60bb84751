// Package authn advances sessions through the configured ordered
// verification steps to a terminal authenticated or failed state.
// It operates purely on sessions.Repo data; proof validation is
// delegated to pluggable verifiers.
package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gatekeeper-id/gatekeeper/sessions"
)

// Authenticator is the authentication state machine.
type Authenticator struct {
	store    sessions.Repo
	flow     sessions.Flow
	registry *Registry
	nowTime  sessions.Clock
}

// Option modifies an Authenticator.
type Option func(*Authenticator)

// WithNowTime sets the time source (primarily for testing).
func WithNowTime(now sessions.Clock) Option {
	return func(a *Authenticator) { a.nowTime = now }
}

// New validates the flow against the registry and returns the state
// machine. Every required step kind must have a registered verifier.
func New(store sessions.Repo, flow sessions.Flow, registry *Registry, options ...Option) (*Authenticator, error) {
	if store == nil {
		return nil, errors.New("[authn.New] session store is required")
	}
	if registry == nil {
		return nil, errors.New("[authn.New] verifier registry is required")
	}
	if err := flow.Validate(); err != nil {
		return nil, fmt.Errorf("[authn.New] invalid flow: %w", err)
	}
	for _, kind := range flow.Required {
		if _, err := registry.verifier(kind); err != nil {
			return nil, fmt.Errorf("[authn.New] %w", err)
		}
	}

	a := &Authenticator{
		store:    store,
		flow:     flow,
		registry: registry,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(a)
	}
	return a, nil
}

// Advance submits a credential proof for one step. It rejects with
// ErrInvalidTransition when kind is not the next required step or the
// session is terminal. On verifier rejection a failed step record is
// appended and ErrVerificationFailed is returned; exhausting the retry
// budget locks the session and returns ErrSessionLocked.
//
// Two concurrent advances on one session never both append: the store
// serializes the read-modify-write per id, and the loser's append is
// rejected against the updated history.
func (a *Authenticator) Advance(ctx context.Context, sessionID string, kind sessions.StepKind, proof Proof) (*sessions.Session, error) {
	sess, err := a.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("[Advance] get session: %w", err)
	}
	if sess.State.Terminal() {
		log.Debug().Str("session_id", sessionID).Str("state", string(sess.State)).
			Msg("advance rejected: session terminal")
		return nil, ErrInvalidTransition
	}
	next, ok := a.flow.NextKind(sess.Steps)
	if !ok || kind != next {
		log.Debug().Str("session_id", sessionID).Str("kind", string(kind)).
			Str("expected", string(next)).Msg("advance rejected: wrong step kind")
		return nil, ErrInvalidTransition
	}

	verifier, err := a.registry.verifier(kind)
	if err != nil {
		return nil, fmt.Errorf("[Advance] %w", err)
	}

	proof.UserID = sess.UserID
	result, verifyErr := verifier.Verify(ctx, proof)
	now := a.nowTime()

	if verifyErr != nil {
		if !errors.Is(verifyErr, ErrVerificationFailed) {
			return nil, fmt.Errorf("[Advance] verifier %q: %w", kind, verifyErr)
		}
		return a.recordFailure(ctx, sessionID, kind, now)
	}

	record := sessions.StepRecord{Kind: kind, Outcome: sessions.OutcomeSuccess, At: now}
	updated, err := a.store.AppendStep(ctx, sessionID, record, result.UserID)
	if err != nil {
		return nil, a.mapAppendErr(err)
	}
	log.Debug().Str("session_id", sessionID).Str("kind", string(kind)).
		Str("state", string(updated.State)).Msg("verification step completed")
	return updated, nil
}

// recordFailure appends the failed attempt; the store's state
// derivation trips the lockout once the trailing failures exceed the
// retry budget.
func (a *Authenticator) recordFailure(ctx context.Context, sessionID string, kind sessions.StepKind, at time.Time) (*sessions.Session, error) {
	record := sessions.StepRecord{Kind: kind, Outcome: sessions.OutcomeFailure, At: at}
	updated, err := a.store.AppendStep(ctx, sessionID, record, "")
	if err != nil {
		return nil, a.mapAppendErr(err)
	}
	if updated.State == sessions.StateFailed {
		log.Debug().Str("session_id", sessionID).Str("kind", string(kind)).
			Msg("session locked after exhausting retry budget")
		return updated, ErrSessionLocked
	}
	return updated, ErrVerificationFailed
}

// mapAppendErr translates store-level append rejections, which signal a
// concurrent advance won the race, into ErrInvalidTransition.
func (a *Authenticator) mapAppendErr(err error) error {
	if errors.Is(err, sessions.ErrStepOrder) || errors.Is(err, sessions.ErrTerminal) {
		return ErrInvalidTransition
	}
	return fmt.Errorf("[Advance] append step: %w", err)
}

// Current returns the session's state tag. Pure read.
func (a *Authenticator) Current(ctx context.Context, sessionID string) (sessions.State, error) {
	sess, err := a.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return sess.State, nil
}
