package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/learnhub/authgate/allowlist"
)

// AllowedUsersListHandler returns every allow-list entry, including
// soft-deleted ones, so administrators can see history.
func (s *Server) AllowedUsersListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.allowed.List()
		if err != nil {
			s.log.Error().Err(err).Msg("failed to list allow-list entries")
			writeJSONError(w, http.StatusInternalServerError, "internal", "Could not list allowed users")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"allowed_users": entries})
	}
}

type addAllowedUserRequest struct {
	Email     string     `json:"email"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Note      string     `json:"note,omitempty"`
}

// AllowedUsersAddHandler adds or reactivates an allow-list entry.
func (s *Server) AllowedUsersAddHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addAllowedUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
			return
		}
		if allowlist.NormalizeEmail(req.Email) == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "email is required")
			return
		}

		entry, err := s.allowed.AddOrReactivate(req.Email, req.ExpiresAt, req.Note)
		if err != nil {
			s.log.Error().Err(err).Str("email", req.Email).Msg("failed to add allow-list entry")
			writeJSONError(w, http.StatusInternalServerError, "internal", "Could not add allowed user")
			return
		}

		principal, _ := PrincipalFromContext(r.Context())
		s.log.Info().Str("email", entry.Email).Str("by", principal.Email).Msg("allow-list entry added or reactivated")
		writeJSON(w, http.StatusOK, entry)
	}
}

// AllowedUsersRemoveHandler soft-deletes an allow-list entry. Idempotent:
// removing an absent or already-removed entry still succeeds.
func (s *Server) AllowedUsersRemoveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.PathValue("email")
		if allowlist.NormalizeEmail(email) == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "email is required")
			return
		}

		removed := s.allowed.Remove(email)

		principal, _ := PrincipalFromContext(r.Context())
		s.log.Info().Str("email", email).Bool("existed", removed).Str("by", principal.Email).Msg("allow-list entry removed")
		writeJSON(w, http.StatusOK, map[string]any{
			"email":   allowlist.NormalizeEmail(email),
			"removed": removed,
		})
	}
}

// SessionStatsHandler reports stored session counts and sweeps expired ones
// on demand.
func (s *Server) SessionStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cleaned := 0
		if r.URL.Query().Get("cleanup") == "true" {
			cleaned = s.sessions.CleanupExpired()
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stored_sessions": s.sessions.Count(),
			"cleaned_up":      cleaned,
		})
	}
}
