package verifiers

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/gatekeeper-id/gatekeeper/authn"
)

// CodeIssuer supplies the one-time code currently expected for a user.
// Implementations deliver the code out of band (email, SMS,
// authenticator app); this package only compares.
type CodeIssuer interface {
	Code(ctx context.Context, userID string) (string, error)
}

// Code verifies a second-factor one-time code in constant time.
type Code struct {
	issuer CodeIssuer
}

func NewCode(issuer CodeIssuer) *Code {
	return &Code{issuer: issuer}
}

func (c *Code) Verify(ctx context.Context, proof authn.Proof) (authn.Result, error) {
	if proof.UserID == "" {
		// Second factor before a bound subject means the flow is
		// misconfigured, not that the proof is wrong.
		return authn.Result{}, fmt.Errorf("[Code.Verify] no user bound to session")
	}
	expected, err := c.issuer.Code(ctx, proof.UserID)
	if err != nil {
		return authn.Result{}, fmt.Errorf("[Code.Verify] fetch expected code: %w", err)
	}
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(proof.Secret)) != 1 {
		return authn.Result{}, authn.ErrVerificationFailed
	}
	return authn.Result{UserID: proof.UserID}, nil
}

var _ authn.Verifier = (*Code)(nil)
