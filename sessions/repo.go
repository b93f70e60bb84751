package sessions

import (
	"context"
	"time"
)

// Repo defines the session store contract. Mutations on the same
// session id are serialized by the implementation; a mutation is
// durably persisted before the call returns success.
type Repo interface {
	// Create allocates an unauthenticated session with a fresh id and
	// an expiry of now plus the store's configured TTL.
	Create(ctx context.Context) (*Session, error)

	// Get returns the current record, or ErrNotFound when the id is
	// absent or the session is past expiry.
	Get(ctx context.Context, id string) (*Session, error)

	// AppendStep atomically appends a verification attempt and
	// recomputes the state tag. The record's kind must match the
	// session's next required kind (ErrStepOrder otherwise) and the
	// session must not be terminal (ErrTerminal). A non-empty userID
	// binds the owning user in the same write.
	AppendStep(ctx context.Context, id string, record StepRecord, userID string) (*Session, error)

	// Touch refreshes the last-activity and expiry timestamps.
	Touch(ctx context.Context, id string) error

	// Delete removes a session (logout or revocation). Deleting an
	// absent session is not an error.
	Delete(ctx context.Context, id string) error
}

// Clock is the injectable time source used by stores and services.
type Clock func() time.Time
