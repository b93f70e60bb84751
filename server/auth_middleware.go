package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gatekeeper-id/gatekeeper/sessions"
)

// SessionCookieName carries the session id for browser clients; API
// clients may send it as a bearer token instead.
const SessionCookieName = "gatekeeper_session"

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext returns the session resolved by
// RequireAuthenticatedSession.
func SessionFromContext(ctx context.Context) (*sessions.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(*sessions.Session)
	return sess, ok
}

// sessionID extracts the session id from the Authorization header or
// the session cookie.
func sessionID(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuthenticatedSession resolves the request's session, rejects
// anything short of the authenticated state, refreshes the session's
// activity window, and stores the record in the request context.
func (s *Server) RequireAuthenticatedSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := sessionID(r)
			if id == "" {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			sess, err := s.repos.Sessions.Get(r.Context(), id)
			if err != nil {
				if errors.Is(err, sessions.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "session_not_found", "session absent or expired, authenticate again")
					return
				}
				writeStorageError(w, err)
				return
			}
			if sess.State != sessions.StateAuthenticated {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "session is not authenticated")
				return
			}
			if err := s.repos.Sessions.Touch(r.Context(), sess.ID); err != nil && !errors.Is(err, sessions.ErrNotFound) {
				writeStorageError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			next(w, r.WithContext(ctx))
		}
	}
}
