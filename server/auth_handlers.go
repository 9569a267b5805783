package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/learnhub/authgate/authstate"
	"github.com/learnhub/authgate/oauthclient"
	"github.com/learnhub/authgate/policy"
	"github.com/learnhub/authgate/session"
)

// LoginHandler starts the OAuth flow: a fresh CSRF state bound to the
// requested return path, then a redirect to the provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.oauth == nil {
			s.log.Error().Msg("login requested but no OAuth client is configured")
			writeJSONError(w, http.StatusInternalServerError, "misconfigured", "Login is not available")
			return
		}

		returnPath := safeReturnPath(r.URL.Query().Get("rd"))
		authURL, err := s.oauth.BeginLogin(returnPath)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to begin login")
			writeJSONError(w, http.StatusInternalServerError, "misconfigured", "Login is not available")
			return
		}

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes the OAuth flow. Status mapping: state failure
// 400, provider failure 502, policy rejection 403 with no session created.
// Provider error detail stays in the server log.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.oauth == nil {
			writeJSONError(w, http.StatusInternalServerError, "misconfigured", "Login is not available")
			return
		}

		// FormValue covers both GET query params and form_post bodies
		code := r.FormValue("code")
		state := r.FormValue("state")
		if errParam := r.FormValue("error"); errParam != "" {
			s.log.Warn().Str("error", errParam).Str("description", r.FormValue("error_description")).Msg("provider returned an authorization error")
			writeJSONError(w, http.StatusBadGateway, "provider_error", "Login failed, please try again")
			return
		}
		if code == "" || state == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Missing code or state parameter")
			return
		}

		result, err := s.oauth.CompleteLogin(r.Context(), code, state)
		if err != nil {
			switch {
			case errors.Is(err, authstate.ErrInvalidState):
				writeJSONError(w, http.StatusBadRequest, "invalid_state", "Login request expired or invalid, please try again")
			case errors.Is(err, oauthclient.ErrTokenExchangeFailed), errors.Is(err, oauthclient.ErrProfileFetchFailed):
				writeJSONError(w, http.StatusBadGateway, "provider_error", "Login failed, please try again")
			default:
				s.log.Error().Err(err).Msg("unexpected error completing login")
				writeJSONError(w, http.StatusBadGateway, "provider_error", "Login failed, please try again")
			}
			return
		}

		// Admission decision happens before any session exists
		tier := s.policy.Classify(result.Identity.Email)
		if tier == policy.TierAnonymous {
			s.log.Info().Str("email", result.Identity.Email).Msg("login rejected by authorization policy")
			writeJSONError(w, http.StatusForbidden, "unauthorized", "Your account is not authorized for this service")
			return
		}

		sess, err := s.sessions.Create(result.Identity, result.Tokens, session.Metadata{
			UserAgent:  r.UserAgent(),
			RemoteAddr: remoteIPString(r),
		})
		if err != nil {
			s.log.Error().Err(err).Msg("failed to create session")
			writeJSONError(w, http.StatusInternalServerError, "internal", "Login failed, please try again")
			return
		}

		maxAge := int(time.Until(sess.ExpiresAt).Seconds())
		s.SetSessionCookie(w, r, sess.ID, maxAge)

		s.log.Info().Str("email", result.Identity.Email).Str("tier", string(tier)).Msg("login completed")
		http.Redirect(w, r, safeReturnPath(result.ReturnURL), http.StatusFound)
	}
}

// LogoutHandler invalidates the session and clears the cookie. It sits on
// the public-path list and is idempotent, so a broken or expired cookie can
// never block a logout. Provider-side revocation is best effort.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(s.config.GetSessionCookieName()); err == nil && cookie.Value != "" {
			if valid, identity, tokens := s.sessions.Validate(cookie.Value); valid && s.oauth != nil {
				token := tokens.RefreshToken
				if token == "" {
					token = tokens.AccessToken
				}
				if !s.oauth.Revoke(r.Context(), token) {
					s.log.Debug().Str("email", identity.Email).Msg("provider-side revocation skipped or failed")
				}
			}
			s.sessions.Invalidate(cookie.Value)
		}

		s.ClearSessionCookie(w, r)

		if wantsHTML(r) {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	}
}

// MeHandler returns the current principal.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.IsAuthenticated() {
			writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// HealthzHandler reports liveness; public-path listed.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"env":    s.env,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an error response without leaking internal detail
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
