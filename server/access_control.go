package server

import (
	"net/http"

	"github.com/learnhub/authgate/policy"
)

// RequireAuthenticated rejects requests the gateway could not attach a
// principal to.
func (s *Server) RequireAuthenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.IsAuthenticated() {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}
		next(w, r)
	}
}

// RequireAdministrator admits organizational-domain members only.
func (s *Server) RequireAdministrator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.IsAuthenticated() {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}
		if p.Tier != policy.TierAdministrator {
			writeJSONError(w, http.StatusForbidden, "forbidden", "Administrator access required")
			return
		}
		next(w, r)
	}
}

// RequireAdministratorOrAllowed admits administrators and allow-listed
// limited users.
func (s *Server) RequireAdministratorOrAllowed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}
		if p.Tier != policy.TierAdministrator && p.Tier != policy.TierLimitedUser {
			writeJSONError(w, http.StatusForbidden, "forbidden", "Access restricted to members and invited users")
			return
		}
		next(w, r)
	}
}

// OptionalPrincipal never fails: handlers downstream always find a
// principal in context, anonymous when nothing authenticated the request.
func (s *Server) OptionalPrincipal(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			r = r.WithContext(withPrincipal(r.Context(), Anonymous))
		}
		next(w, r)
	}
}
