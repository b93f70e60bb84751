// Package verifiers provides the built-in credential verifiers wired
// into the step registry at startup.
package verifiers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gatekeeper-id/gatekeeper/authn"
	"github.com/gatekeeper-id/gatekeeper/users"
)

// Password verifies a primary credential: it resolves the subject by
// login identifier and checks the bcrypt hash.
type Password struct {
	users users.Repo
}

func NewPassword(userRepo users.Repo) *Password {
	return &Password{users: userRepo}
}

// Verify resolves proof.Identifier to a user and compares the secret
// against the stored hash. An unknown identifier is reported the same
// as a wrong password so login probing learns nothing.
func (p *Password) Verify(ctx context.Context, proof authn.Proof) (authn.Result, error) {
	user, err := p.users.GetByLogin(ctx, proof.Identifier)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return authn.Result{}, authn.ErrVerificationFailed
		}
		return authn.Result{}, fmt.Errorf("[Password.Verify] lookup user: %w", err)
	}
	if !users.CheckPasswordHash(proof.Secret, user.PasswordHash) {
		return authn.Result{}, authn.ErrVerificationFailed
	}
	return authn.Result{UserID: user.ID}, nil
}

var _ authn.Verifier = (*Password)(nil)
