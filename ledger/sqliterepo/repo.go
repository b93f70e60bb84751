// Package sqliterepo implements the authorization ledger over the
// relational collaborator's client-authorization tables.
package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gatekeeper-id/gatekeeper/ledger"
)

// Repo persists authorization events in SQLite: an append-only events
// table plus a per-pair aggregate row carrying the running first/last
// timestamps.
type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// RecordAuthorization appends the event and upserts the aggregate in
// one transaction. MIN/MAX update semantics keep first immutable and
// last monotone under concurrent and out-of-order appends; the first
// event for a pair also inserts the grant join row so the pair shows
// up in the authorized-apps listing.
func (r *Repo) RecordAuthorization(ctx context.Context, clientID, userID string, at time.Time) error {
	if clientID == "" || userID == "" {
		return fmt.Errorf("[RecordAuthorization] client id and user id are required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("[RecordAuthorization] begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ms := toMillis(at)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO oauth_client_authorizations (id, client_id, user_id, authorized_at)
		 VALUES (?, ?, ?, ?)`,
		ulid.Make().String(), clientID, userID, ms,
	); err != nil {
		return fmt.Errorf("[RecordAuthorization] insert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO client_authorization_summary (client_id, user_id, first_authorized_at, last_authorized_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (client_id, user_id) DO UPDATE SET
		     first_authorized_at = MIN(first_authorized_at, excluded.first_authorized_at),
		     last_authorized_at = MAX(last_authorized_at, excluded.last_authorized_at)`,
		clientID, userID, ms, ms,
	); err != nil {
		return fmt.Errorf("[RecordAuthorization] upsert summary: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_authorized_clients (user_id, client_id) VALUES (?, ?)`,
		userID, clientID,
	); err != nil {
		return fmt.Errorf("[RecordAuthorization] mark authorized: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("[RecordAuthorization] commit: %w", err)
	}
	return nil
}

// FirstAuthorizedAt reads the aggregate row. Equivalent to
// ORDER BY authorized_at ASC LIMIT 1 over the event table without the
// scan.
func (r *Repo) FirstAuthorizedAt(ctx context.Context, clientID, userID string) (time.Time, bool, error) {
	return r.summaryColumn(ctx, "first_authorized_at", clientID, userID)
}

// LastAuthorizedAt reads the aggregate row.
func (r *Repo) LastAuthorizedAt(ctx context.Context, clientID, userID string) (time.Time, bool, error) {
	return r.summaryColumn(ctx, "last_authorized_at", clientID, userID)
}

func (r *Repo) summaryColumn(ctx context.Context, column, clientID, userID string) (time.Time, bool, error) {
	var ms int64
	err := r.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM client_authorization_summary WHERE client_id = ? AND user_id = ?`,
		clientID, userID,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("[ledger] query %s: %w", column, err)
	}
	return fromMillis(ms), true, nil
}

var _ ledger.Repo = (*Repo)(nil)
