package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/learnhub/authgate/internal/config"
	"github.com/learnhub/authgate/policy"
	"github.com/learnhub/authgate/session"
)

// PrincipalResolver turns an inbound request into a principal. The gateway
// tries resolvers in order until one succeeds; the configured auth mode just
// selects which resolvers are in the list.
type PrincipalResolver interface {
	Resolve(r *http.Request) (Principal, bool)
}

func (s *Server) buildResolvers() []PrincipalResolver {
	switch s.config.GetAuthMode() {
	case config.ModeProxy:
		return []PrincipalResolver{&proxyHeaderResolver{s}}
	case config.ModeDual:
		// Session first: a valid session cookie always wins over the
		// proxy header during a migration between the two strategies.
		return []PrincipalResolver{&sessionResolver{s}, &proxyHeaderResolver{s}}
	default:
		return []PrincipalResolver{&sessionResolver{s}}
	}
}

// AuthGateway is the per-request gate in front of every route. Public paths
// pass through without a principal; everything else needs one resolver to
// succeed or the request is turned away.
func (s *Server) AuthGateway(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.AuthEnabled() {
			next(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next(w, r)
			return
		}

		principal, ok, panicked := s.resolvePrincipal(r)
		if panicked {
			// Authentication sits in front of every route; an internal
			// failure here becomes a fresh login, never a 500.
			s.redirectToLogin(w, r)
			return
		}
		if !ok {
			s.denyUnauthenticated(w, r)
			return
		}

		next(w, r.WithContext(withPrincipal(r.Context(), principal)))
	}
}

func (s *Server) resolvePrincipal(r *http.Request) (principal Principal, ok bool, panicked bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("panic during authentication")
			ok = false
			panicked = true
		}
	}()

	for _, resolver := range s.resolvers {
		if p, resolved := resolver.Resolve(r); resolved {
			return p, true, false
		}
	}
	return Principal{}, false, false
}

func (s *Server) denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		s.redirectToLogin(w, r)
		return
	}
	writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Authentication required")
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := RouteAuthLogin
	if rd := safeReturnPath(r.URL.RequestURI()); rd != "" && rd != "/" {
		target += "?rd=" + url.QueryEscape(rd)
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func isPublicPath(path string) bool {
	for _, prefix := range publicPathPrefixes {
		if strings.HasSuffix(prefix, "/") {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// sessionResolver resolves the session cookie through the session store and
// re-evaluates the authorization policy on every request.
type sessionResolver struct {
	s *Server
}

func (sr *sessionResolver) Resolve(r *http.Request) (Principal, bool) {
	s := sr.s

	cookie, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil || cookie.Value == "" {
		return Principal{}, false
	}

	valid, identity, tokens := s.sessions.Validate(cookie.Value)
	if !valid {
		return Principal{}, false
	}

	// Refresh an expired access token in place. A rejected refresh means
	// provider-side access is gone, so the session goes with it.
	if tokens.Expired(s.sessions.Now()) && tokens.RefreshToken != "" && s.oauth != nil {
		refreshed, err := s.oauth.Refresh(r.Context(), *tokens)
		if err != nil {
			s.log.Info().Str("email", identity.Email).Msg("token refresh rejected, invalidating session")
			s.sessions.Invalidate(cookie.Value)
			return Principal{}, false
		}
		if err := s.sessions.Refresh(cookie.Value, refreshed); err != nil {
			return Principal{}, false
		}
	}

	tier := s.policy.Classify(identity.Email)
	if tier == policy.TierAnonymous {
		// Admission was revoked after login; the session no longer grants access
		return Principal{}, false
	}

	s.sessions.Touch(cookie.Value, session.Metadata{
		UserAgent:  r.UserAgent(),
		RemoteAddr: remoteIPString(r),
	})

	return Principal{
		Email:   identity.Email,
		Domain:  emailDomain(identity.Email),
		Tier:    tier,
		Name:    identity.Name,
		Picture: identity.Picture,
		Source:  "session",
	}, true
}

// proxyHeaderResolver trusts an identity asserted by an upstream perimeter
// proxy. The header is believed only when the peer is inside a trusted proxy
// network or the proxy presents a signed assertion; with neither configured
// it falls back to presence-only trust, which is the legacy perimeter
// behavior and is logged as such at startup.
type proxyHeaderResolver struct {
	s *Server
}

func (pr *proxyHeaderResolver) Resolve(r *http.Request) (Principal, bool) {
	s := pr.s

	email, ok := pr.assertedEmail(r)
	if !ok {
		return Principal{}, false
	}

	tier := s.policy.Classify(email)
	if tier == policy.TierAnonymous {
		return Principal{}, false
	}

	return Principal{
		Email:  email,
		Domain: emailDomain(email),
		Tier:   tier,
		Source: "proxy",
	}, true
}

func (pr *proxyHeaderResolver) assertedEmail(r *http.Request) (string, bool) {
	s := pr.s

	// A signed assertion is trusted from any peer
	if header := s.config.GetProxyAssertionHeader(); header != "" && s.config.GetProxyAssertionSecret() != "" {
		if raw := r.Header.Get(header); raw != "" {
			if email, err := verifyProxyAssertion(raw, s.config.GetProxyAssertionSecret()); err == nil {
				return email, true
			} else {
				s.log.Warn().Err(err).Msg("proxy assertion rejected")
			}
		}
	}

	email := r.Header.Get(s.config.GetProxyUserHeader())
	if email == "" {
		return "", false
	}

	if len(s.trustedProxies) > 0 {
		if !peerInNetworks(r, s.trustedProxies) {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("proxy identity header from untrusted peer ignored")
			return "", false
		}
		return email, true
	}

	if s.config.GetProxyAssertionSecret() != "" {
		// Assertion verification is configured but this request had no
		// valid assertion; do not fall back to a bare header.
		return "", false
	}

	// Presence-only trust: no boundary check configured
	return email, true
}

func verifyProxyAssertion(raw, secret string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	email, _ := claims["email"].(string)
	if email == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return email, nil
}

func peerInNetworks(r *http.Request, networks []*net.IPNet) bool {
	ip := remoteIP(r)
	if ip == nil {
		return false
	}
	for _, network := range networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(host)
}

func remoteIPString(r *http.Request) string {
	if ip := remoteIP(r); ip != nil {
		return ip.String()
	}
	return r.RemoteAddr
}
