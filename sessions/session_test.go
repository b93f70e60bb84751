package sessions_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-id/gatekeeper/sessions"
)

func testFlow() sessions.Flow {
	return sessions.Flow{
		Required:    []sessions.StepKind{sessions.StepPrimary, sessions.StepOTP},
		RetryBudget: 2,
	}
}

func success(kind sessions.StepKind) sessions.StepRecord {
	return sessions.StepRecord{Kind: kind, Outcome: sessions.OutcomeSuccess, At: time.Now()}
}

func failure(kind sessions.StepKind) sessions.StepRecord {
	return sessions.StepRecord{Kind: kind, Outcome: sessions.OutcomeFailure, At: time.Now()}
}

func TestFlowValidate(t *testing.T) {
	require.NoError(t, testFlow().Validate())

	require.Error(t, sessions.Flow{RetryBudget: 1}.Validate(), "empty flow")
	require.Error(t, sessions.Flow{
		Required:    []sessions.StepKind{sessions.StepPrimary, sessions.StepPrimary},
		RetryBudget: 1,
	}.Validate(), "duplicate kinds")
	require.Error(t, sessions.Flow{
		Required: []sessions.StepKind{sessions.StepPrimary},
	}.Validate(), "zero retry budget")
}

func TestDeriveStateIsAFunctionOfTheStepPrefix(t *testing.T) {
	flow := testFlow()

	require.Equal(t, sessions.StateUnauthenticated, flow.DeriveState(nil))

	steps := []sessions.StepRecord{success(sessions.StepPrimary)}
	require.Equal(t, sessions.StepCompleteState(1), flow.DeriveState(steps))

	steps = append(steps, success(sessions.StepOTP))
	require.Equal(t, sessions.StateAuthenticated, flow.DeriveState(steps))
}

func TestDeriveStateFailureCounterResetsOnSuccess(t *testing.T) {
	flow := testFlow()

	// Two failures stay within the budget.
	steps := []sessions.StepRecord{failure(sessions.StepPrimary), failure(sessions.StepPrimary)}
	require.Equal(t, sessions.StateUnauthenticated, flow.DeriveState(steps))

	// A success wipes the counter: later failures start from zero.
	steps = append(steps, success(sessions.StepPrimary))
	steps = append(steps, failure(sessions.StepOTP), failure(sessions.StepOTP))
	require.Equal(t, sessions.StepCompleteState(1), flow.DeriveState(steps))

	// A third consecutive failure exceeds the budget.
	steps = append(steps, failure(sessions.StepOTP))
	require.Equal(t, sessions.StateFailed, flow.DeriveState(steps))
}

func TestNextKind(t *testing.T) {
	flow := testFlow()

	next, ok := flow.NextKind(nil)
	require.True(t, ok)
	require.Equal(t, sessions.StepPrimary, next)

	next, ok = flow.NextKind([]sessions.StepRecord{success(sessions.StepPrimary)})
	require.True(t, ok)
	require.Equal(t, sessions.StepOTP, next)

	_, ok = flow.NextKind([]sessions.StepRecord{
		success(sessions.StepPrimary), success(sessions.StepOTP),
	})
	require.False(t, ok, "authenticated session has no next step")

	_, ok = flow.NextKind([]sessions.StepRecord{
		failure(sessions.StepPrimary), failure(sessions.StepPrimary), failure(sessions.StepPrimary),
	})
	require.False(t, ok, "locked session has no next step")
}

func TestCloneIsDeep(t *testing.T) {
	sess := &sessions.Session{
		ID:    "s1",
		Steps: []sessions.StepRecord{success(sessions.StepPrimary)},
	}
	cp := sess.Clone()
	cp.Steps[0].Kind = sessions.StepOTP
	require.Equal(t, sessions.StepPrimary, sess.Steps[0].Kind)
}
