package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gatekeeper-id/gatekeeper/authn"
	"github.com/gatekeeper-id/gatekeeper/clients"
	"github.com/gatekeeper-id/gatekeeper/sessions"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeStorageError surfaces backend faults as server errors so the
// caller retries; they are never swallowed.
func writeStorageError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("storage failure")
	writeError(w, http.StatusInternalServerError, "storage_unavailable", "storage backend failure, retry later")
}

type sessionResponse struct {
	ID        string         `json:"id"`
	State     sessions.State `json:"state"`
	UserID    string         `json:"userId,omitempty"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

func toSessionResponse(sess *sessions.Session) sessionResponse {
	return sessionResponse{
		ID:        sess.ID,
		State:     sess.State,
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
	}
}

// SessionCreateHandler allocates a fresh unauthenticated session and
// sets the session cookie.
func (s *Server) SessionCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.repos.Sessions.Create(r.Context())
		if err != nil {
			writeStorageError(w, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookieName,
			Value:    sess.ID,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, http.StatusCreated, toSessionResponse(sess))
	}
}

// SessionGetHandler reports the session's current state.
func (s *Server) SessionGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.repos.Sessions.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			if errors.Is(err, sessions.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "session_not_found", "session absent or expired, authenticate again")
				return
			}
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

type advanceRequest struct {
	Kind       sessions.StepKind `json:"kind"`
	Identifier string            `json:"identifier,omitempty"`
	Secret     string            `json:"secret"`
}

// SessionAdvanceHandler submits a credential proof for the session's
// next verification step.
func (s *Server) SessionAdvanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req advanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
			return
		}
		if req.Kind == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "step kind is required")
			return
		}

		proof := authn.Proof{Identifier: req.Identifier, Secret: req.Secret}
		sess, err := s.authn.Advance(r.Context(), r.PathValue("id"), req.Kind, proof)
		switch {
		case err == nil:
			observeAuthStep(req.Kind, "success")
			writeJSON(w, http.StatusOK, toSessionResponse(sess))
		case errors.Is(err, sessions.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "session_not_found", "session absent or expired, authenticate again")
		case errors.Is(err, authn.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid_transition", "step is not the session's next required step")
		case errors.Is(err, authn.ErrSessionLocked):
			observeAuthStep(req.Kind, "locked")
			writeError(w, http.StatusForbidden, "session_locked", "too many failed attempts, session locked")
		case errors.Is(err, authn.ErrVerificationFailed):
			observeAuthStep(req.Kind, "failure")
			writeError(w, http.StatusUnauthorized, "verification_failed", "credential proof rejected")
		default:
			writeStorageError(w, err)
		}
	}
}

// SessionDeleteHandler removes a session (logout).
func (s *Server) SessionDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.repos.Sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
			writeStorageError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type recordAuthorizationRequest struct {
	ClientID string `json:"clientId"`
}

// AuthorizationRecordHandler records a grant event for the session's
// user against a client.
func (s *Server) AuthorizationRecordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		var req recordAuthorizationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "clientId is required")
			return
		}
		if _, err := s.repos.Clients.Get(r.Context(), req.ClientID); err != nil {
			if errors.Is(err, clients.ErrNotFound) {
				writeError(w, http.StatusNotFound, "client_not_found", "no such client")
				return
			}
			writeStorageError(w, err)
			return
		}
		if err := s.repos.Ledger.RecordAuthorization(r.Context(), req.ClientID, sess.UserID, time.Now()); err != nil {
			writeStorageError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AppListHandler returns the user's created and authorized apps, the
// latter enriched with first/last authorization timestamps.
func (s *Server) AppListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		userID := r.PathValue("id")
		if userID != sess.UserID {
			writeError(w, http.StatusForbidden, "forbidden", "session does not belong to the requested user")
			return
		}
		listing, err := s.apps.ListApps(r.Context(), userID)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listing)
	}
}

// HealthzHandler is a liveness probe.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "app": s.config.AppName})
	}
}
