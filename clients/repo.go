package clients

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no client matches the lookup.
var ErrNotFound = errors.New("client not found")

// Repo is the read-side contract against the relational collaborator.
type Repo interface {
	Get(ctx context.Context, id string) (*Client, error)

	// ListOwnedBy returns the clients the user created.
	ListOwnedBy(ctx context.Context, userID string) ([]Client, error)

	// ListAuthorizedFor returns the clients the user has granted access.
	ListAuthorizedFor(ctx context.Context, userID string) ([]Client, error)
}
