// Package ledger records client-authorization events: a user granting
// an OAuth client access. Events are append-only; the derived first
// and last timestamps per (client, user) pair back the app listing.
package ledger

import (
	"context"
	"time"
)

// Event is one timestamped authorization grant.
type Event struct {
	ID           string    `json:"id"` // ULID, time-ordered
	ClientID     string    `json:"clientId"`
	UserID       string    `json:"userId"`
	AuthorizedAt time.Time `json:"authorizedAt"`
}

// Repo is the authorization ledger contract.
//
// RecordAuthorization must be safe under concurrent calls for the same
// pair: near-simultaneous duplicates may both be recorded, but the
// derived first timestamp resolves to the minimum ever recorded and
// last is monotonically non-decreasing.
type Repo interface {
	// RecordAuthorization appends an event. The pair's first event also
	// makes the grant visible to the authorized-apps listing.
	RecordAuthorization(ctx context.Context, clientID, userID string, at time.Time) error

	// FirstAuthorizedAt returns the earliest recorded timestamp for the
	// pair; ok is false when the pair has no events.
	FirstAuthorizedAt(ctx context.Context, clientID, userID string) (time.Time, bool, error)

	// LastAuthorizedAt returns the most recent recorded timestamp for
	// the pair; ok is false when the pair has no events.
	LastAuthorizedAt(ctx context.Context, clientID, userID string) (time.Time, bool, error)
}
