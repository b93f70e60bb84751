// Package sqliterepo reads user identity data from the relational
// collaborator.
package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gatekeeper-id/gatekeeper/users"
)

type Repo struct {
	db *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

const userColumns = `id, username, email, name, password_hash, created_at`

func (r *Repo) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.queryOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByLogin resolves a username or email to a user.
func (r *Repo) GetByLogin(ctx context.Context, login string) (*users.User, error) {
	return r.queryOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? OR email = ?`, login, login)
}

func (r *Repo) queryOne(ctx context.Context, query string, args ...any) (*users.User, error) {
	var u users.User
	var createdAt int64
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&u.ID, &u.Username, &u.Email, &u.Name, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[users] query user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &u, nil
}

var _ users.Repo = (*Repo)(nil)
