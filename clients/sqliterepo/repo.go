// Package sqliterepo reads OAuth client data from the relational
// collaborator.
package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gatekeeper-id/gatekeeper/clients"
)

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const clientColumns = `id, owner_id, name, description, logo_url, secret, created_at`

func (r *Repo) Get(ctx context.Context, id string) (*clients.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE id = ?`, id)
	c, err := scanClient(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, clients.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[clients] get client: %w", err)
	}
	return c, nil
}

func (r *Repo) ListOwnedBy(ctx context.Context, userID string) ([]clients.Client, error) {
	return r.list(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE owner_id = ? ORDER BY created_at`, userID)
}

func (r *Repo) ListAuthorizedFor(ctx context.Context, userID string) ([]clients.Client, error) {
	return r.list(ctx,
		`SELECT c.id, c.owner_id, c.name, c.description, c.logo_url, c.secret, c.created_at
		 FROM oauth_clients c
		 JOIN user_authorized_clients a ON a.client_id = c.id
		 WHERE a.user_id = ?
		 ORDER BY c.created_at`, userID)
}

func (r *Repo) list(ctx context.Context, query string, args ...any) ([]clients.Client, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("[clients] list clients: %w", err)
	}
	defer rows.Close()

	var result []clients.Client
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("[clients] scan client: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("[clients] iterate clients: %w", err)
	}
	return result, nil
}

func scanClient(scan func(...any) error) (*clients.Client, error) {
	var c clients.Client
	var createdAt int64
	if err := scan(&c.ID, &c.OwnerID, &c.Name, &c.Description, &c.LogoURL, &c.Secret, &createdAt); err != nil {
		return nil, err
	}
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &c, nil
}

var _ clients.Repo = (*Repo)(nil)
