package sessions

import (
	"fmt"
	"time"
)

// StepKind identifies one verification step in the login flow.
// The set is open: deployments register verifiers for the kinds
// their flow configuration names.
type StepKind string

const (
	StepPrimary     StepKind = "primary"
	StepOTP         StepKind = "otp"
	StepDeviceTrust StepKind = "device"
)

// Outcome is the result of a single verification attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// State is the session's position in the login flow. Intermediate
// states are derived, never stored independently of the step history.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateFailed          State = "failed"
)

// StepCompleteState names the intermediate state after n successful steps.
func StepCompleteState(n int) State {
	return State(fmt.Sprintf("step-%d-complete", n))
}

// Terminal reports whether no further advance is possible.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateFailed
}

// StepRecord is one verification attempt. Records are append-only for
// the lifetime of the session.
type StepRecord struct {
	Kind    StepKind  `json:"kind"`
	Outcome Outcome   `json:"outcome"`
	At      time.Time `json:"at"`
}

// Session tracks one user's in-progress or completed authentication.
// The state tag is always a function of the step history under the
// configured flow; the store recomputes it on every append.
type Session struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId,omitempty"` // empty until the flow resolves a subject
	State     State        `json:"state"`
	Steps     []StepRecord `json:"steps,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	LastSeen  time.Time    `json:"lastSeen"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at the given
// instant. Expired sessions are logically absent even when still on disk.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy so callers never share the store's record.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Steps = make([]StepRecord, len(s.Steps))
	copy(cp.Steps, s.Steps)
	return &cp
}

// Flow is the configured ordered sequence of required step kinds plus
// the per-step retry budget.
type Flow struct {
	Required    []StepKind
	RetryBudget int
}

// Validate checks the flow is usable: at least one step, no duplicate
// kinds, a positive retry budget.
func (f Flow) Validate() error {
	if len(f.Required) == 0 {
		return fmt.Errorf("flow requires at least one step kind")
	}
	seen := make(map[StepKind]struct{}, len(f.Required))
	for _, k := range f.Required {
		if k == "" {
			return fmt.Errorf("flow contains an empty step kind")
		}
		if _, ok := seen[k]; ok {
			return fmt.Errorf("flow repeats step kind %q", k)
		}
		seen[k] = struct{}{}
	}
	if f.RetryBudget < 1 {
		return fmt.Errorf("retry budget must be at least 1, got %d", f.RetryBudget)
	}
	return nil
}

// completedFailures returns the number of successfully completed steps
// and the consecutive failures recorded since the last success. Because
// the store only accepts the next required kind, the trailing failures
// all belong to the step currently being attempted.
func (f Flow) completedFailures(steps []StepRecord) (completed, failures int) {
	for _, rec := range steps {
		if rec.Outcome == OutcomeSuccess {
			completed++
			failures = 0
		} else {
			failures++
		}
	}
	return completed, failures
}

// DeriveState computes the state tag for a step history. The history's
// successful kinds must be a prefix of Required; the store enforces
// that on append.
func (f Flow) DeriveState(steps []StepRecord) State {
	completed, failures := f.completedFailures(steps)
	if completed >= len(f.Required) {
		return StateAuthenticated
	}
	if failures > f.RetryBudget {
		return StateFailed
	}
	if completed == 0 {
		return StateUnauthenticated
	}
	return StepCompleteState(completed)
}

// NextKind returns the step kind the session must complete next. ok is
// false when the history already satisfies the flow or is locked out.
func (f Flow) NextKind(steps []StepRecord) (StepKind, bool) {
	state := f.DeriveState(steps)
	if state.Terminal() {
		return "", false
	}
	completed, _ := f.completedFailures(steps)
	return f.Required[completed], true
}
