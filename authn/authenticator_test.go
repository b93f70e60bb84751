package authn_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-id/gatekeeper/authn"
	"github.com/gatekeeper-id/gatekeeper/sessions"
	"github.com/gatekeeper-id/gatekeeper/sessions/filestore"
)

const (
	testUserID   = "user-1"
	testPassword = "valid-password"
	testCode     = "123456"
)

// stubVerifier accepts one fixed secret and resolves to a fixed user.
type stubVerifier struct {
	secret string
	userID string
}

func (v *stubVerifier) Verify(_ context.Context, proof authn.Proof) (authn.Result, error) {
	if proof.Secret != v.secret {
		return authn.Result{}, authn.ErrVerificationFailed
	}
	return authn.Result{UserID: v.userID}, nil
}

type testFixture struct {
	store *filestore.Store
	auth  *authn.Authenticator
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	flow := sessions.Flow{
		Required:    []sessions.StepKind{sessions.StepPrimary, sessions.StepOTP},
		RetryBudget: 2,
	}
	store, err := filestore.Open(t.TempDir(), flow,
		filestore.WithTTL(time.Hour),
		filestore.WithSweepInterval(0),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := authn.NewRegistry()
	registry.Register(sessions.StepPrimary, &stubVerifier{secret: testPassword, userID: testUserID})
	registry.Register(sessions.StepOTP, &stubVerifier{secret: testCode, userID: testUserID})

	authenticator, err := authn.New(store, flow, registry)
	require.NoError(t, err)

	return &testFixture{store: store, auth: authenticator}
}

func (f *testFixture) newSession(t *testing.T) string {
	t.Helper()
	sess, err := f.store.Create(context.Background())
	require.NoError(t, err)
	return sess.ID
}

func TestNewRejectsUnregisteredStepKind(t *testing.T) {
	flow := sessions.Flow{
		Required:    []sessions.StepKind{sessions.StepPrimary, sessions.StepDeviceTrust},
		RetryBudget: 2,
	}
	store, err := filestore.Open(t.TempDir(), flow, filestore.WithSweepInterval(0))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry := authn.NewRegistry()
	registry.Register(sessions.StepPrimary, &stubVerifier{secret: testPassword})

	_, err = authn.New(store, flow, registry)
	require.ErrorIs(t, err, authn.ErrUnknownStepKind)
}

func TestAdvanceHappyPath(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	id := f.newSession(t)

	sess, err := f.auth.Advance(ctx, id, sessions.StepPrimary, authn.Proof{Secret: testPassword})
	require.NoError(t, err)
	require.Equal(t, sessions.StepCompleteState(1), sess.State)
	require.Equal(t, testUserID, sess.UserID)

	sess, err = f.auth.Advance(ctx, id, sessions.StepOTP, authn.Proof{Secret: testCode})
	require.NoError(t, err)
	require.Equal(t, sessions.StateAuthenticated, sess.State)

	state, err := f.auth.Current(ctx, id)
	require.NoError(t, err)
	require.Equal(t, sessions.StateAuthenticated, state)

	// Advancing a terminal session is always an invalid transition.
	_, err = f.auth.Advance(ctx, id, sessions.StepPrimary, authn.Proof{Secret: testPassword})
	require.ErrorIs(t, err, authn.ErrInvalidTransition)
}

func TestAdvanceRejectsOutOfOrderStep(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	id := f.newSession(t)

	_, err := f.auth.Advance(ctx, id, sessions.StepOTP, authn.Proof{Secret: testCode})
	require.ErrorIs(t, err, authn.ErrInvalidTransition)

	// The rejection left no trace in the history.
	sess, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	require.Empty(t, sess.Steps)
}

func TestAdvanceUnknownSession(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.auth.Advance(context.Background(), "missing", sessions.StepPrimary, authn.Proof{Secret: testPassword})
	require.ErrorIs(t, err, sessions.ErrNotFound)
}

func TestVerificationFailureAccumulatesToLockout(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	id := f.newSession(t)

	for range 2 {
		_, err := f.auth.Advance(ctx, id, sessions.StepPrimary, authn.Proof{Secret: "wrong"})
		require.ErrorIs(t, err, authn.ErrVerificationFailed)
	}

	// Third consecutive failure exceeds the budget of 2.
	sess, err := f.auth.Advance(ctx, id, sessions.StepPrimary, authn.Proof{Secret: "wrong"})
	require.ErrorIs(t, err, authn.ErrSessionLocked)
	require.Equal(t, sessions.StateFailed, sess.State)
	require.Len(t, sess.Steps, 3, "every failed attempt is recorded")

	// Locked is terminal, even with the right credential.
	_, err = f.auth.Advance(ctx, id, sessions.StepPrimary, authn.Proof{Secret: testPassword})
	require.ErrorIs(t, err, authn.ErrInvalidTransition)
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	id := f.newSession(t)

	for range 2 {
		_, err := f.auth.Advance(ctx, id, sessions.StepPrimary, authn.Proof{Secret: "wrong"})
		require.ErrorIs(t, err, authn.ErrVerificationFailed)
	}
	_, err := f.auth.Advance(ctx, id, sessions.StepPrimary, authn.Proof{Secret: testPassword})
	require.NoError(t, err)

	// The second factor gets its own full budget.
	for range 2 {
		_, err := f.auth.Advance(ctx, id, sessions.StepOTP, authn.Proof{Secret: "wrong"})
		require.ErrorIs(t, err, authn.ErrVerificationFailed)
	}
	sess, err := f.auth.Advance(ctx, id, sessions.StepOTP, authn.Proof{Secret: testCode})
	require.NoError(t, err)
	require.Equal(t, sessions.StateAuthenticated, sess.State)
}

func TestConcurrentAdvanceExactlyOneWins(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	id := f.newSession(t)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.auth.Advance(ctx, id, sessions.StepPrimary, authn.Proof{Secret: testPassword})
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, authn.ErrInvalidTransition)
		}
	}
	require.Equal(t, 1, wins)

	sess, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, sess.Steps, 1, "no duplicate step in history")
	require.Equal(t, sessions.StepCompleteState(1), sess.State)
}
