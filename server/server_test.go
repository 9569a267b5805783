package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/authgate/allowlist"
	"github.com/learnhub/authgate/authstate"
	"github.com/learnhub/authgate/internal/config"
	"github.com/learnhub/authgate/oauthclient"
	"github.com/learnhub/authgate/policy"
	"github.com/learnhub/authgate/server"
	"github.com/learnhub/authgate/session"
	"github.com/learnhub/authgate/tokencrypt"
)

const (
	testOrgDomain  = "org.eu"
	testAdminEmail = "alice@org.eu"
	testGuestEmail = "guest@external.com"
	testCookieName = "authgate_session"
	testSecret     = "unit-test-session-secret"
)

// testConfig is a static config.Config implementation for tests.
type testConfig struct {
	authEnabled     bool
	mode            config.AuthMode
	proxyUserHeader string
	assertionHeader string
	assertionSecret string
	trustedCIDRs    []string
}

func (testConfig) GetPort() string                  { return ":0" }
func (testConfig) GetAppName() string               { return "AuthGate" }
func (testConfig) GetBaseURL() string               { return "http://localhost:8080" }
func (testConfig) GetDataFolder() string            { return "" }
func (testConfig) GetEnv() string                   { return "DEV" }
func (c testConfig) AuthEnabled() bool              { return c.authEnabled }
func (c testConfig) GetAuthMode() config.AuthMode   { return c.mode }
func (testConfig) GetOrgDomain() string             { return testOrgDomain }
func (testConfig) GetOAuthIssuerURL() string        { return "" }
func (testConfig) GetOAuthClientID() string         { return "authgate-client" }
func (testConfig) GetOAuthClientSecret() string     { return "authgate-secret" }
func (testConfig) GetOAuthRedirectURL() string      { return "http://localhost:8080/auth/callback" }
func (testConfig) GetSessionSecret() string         { return testSecret }
func (testConfig) GetSessionCookieName() string     { return testCookieName }
func (testConfig) GetSessionLifetimeDays() int      { return 7 }
func (testConfig) CookieSecure() bool               { return false }
func (c testConfig) GetProxyUserHeader() string     { return c.proxyUserHeader }
func (c testConfig) GetProxyAssertionHeader() string { return c.assertionHeader }
func (c testConfig) GetProxyAssertionSecret() string { return c.assertionSecret }
func (c testConfig) GetTrustedProxyCIDRs() []string { return c.trustedCIDRs }

func defaultTestConfig() testConfig {
	return testConfig{
		authEnabled:     true,
		mode:            config.ModeDelegate,
		proxyUserHeader: "X-Forwarded-Email",
	}
}

// fakeIdP is a minimal OIDC provider for full-flow handler tests.
type fakeIdP struct {
	srv *httptest.Server

	mu             sync.Mutex
	email          string
	rejectExchange bool
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	p := &fakeIdP{email: testAdminEmail}
	mux := http.NewServeMux()
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)

	mux.HandleFunc("GET /.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"issuer":                 p.srv.URL,
			"authorization_endpoint": p.srv.URL + "/authorize",
			"token_endpoint":         p.srv.URL + "/token",
			"userinfo_endpoint":      p.srv.URL + "/userinfo",
			"revocation_endpoint":    p.srv.URL + "/revoke",
			"jwks_uri":               p.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		p.mu.Lock()
		reject := p.rejectExchange
		p.mu.Unlock()
		if reject || r.FormValue("code") != "valid-code" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, map[string]any{
			"access_token":  "provider-access-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "provider-refresh-token",
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		email := p.email
		p.mu.Unlock()
		writeJSON(w, map[string]any{
			"sub":   "idp-subject-42",
			"email": email,
			"name":  "Test User",
		})
	})
	mux.HandleFunc("POST /revoke", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return p
}

func (p *fakeIdP) setEmail(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.email = email
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// fixture bundles a Server with direct access to its stores.
type fixture struct {
	server   *server.Server
	sessions *session.Store
	allowed  *allowlist.Store
	idp      *fakeIdP
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	cfg     config.Config
	withIdP bool
}

func withConfig(cfg config.Config) fixtureOption {
	return func(fc *fixtureConfig) { fc.cfg = cfg }
}

func withIdP() fixtureOption {
	return func(fc *fixtureConfig) { fc.withIdP = true }
}

func newFixture(t *testing.T, options ...fixtureOption) *fixture {
	t.Helper()

	fc := &fixtureConfig{cfg: defaultTestConfig()}
	for _, opt := range options {
		opt(fc)
	}

	cipher, err := tokencrypt.New(testSecret)
	require.NoError(t, err)

	sessions, err := session.NewStore(session.NewInMemoryRepo(), cipher, zerolog.Nop())
	require.NoError(t, err)

	allowed, err := allowlist.NewStore(allowlist.NewInMemoryRepo())
	require.NoError(t, err)

	pol, err := policy.New(testOrgDomain, allowed)
	require.NoError(t, err)

	states, err := authstate.NewRegistry(authstate.NewInMemoryRepo())
	require.NoError(t, err)

	f := &fixture{sessions: sessions, allowed: allowed}

	var oauth *oauthclient.Client
	if fc.withIdP {
		f.idp = newFakeIdP(t)
		oauth, err = oauthclient.New(context.Background(), oauthclient.Config{
			IssuerURL:     f.idp.srv.URL,
			ClientID:      fc.cfg.GetOAuthClientID(),
			ClientSecret:  fc.cfg.GetOAuthClientSecret(),
			RedirectURL:   fc.cfg.GetOAuthRedirectURL(),
			OfflineAccess: true,
		}, states, zerolog.Nop())
		require.NoError(t, err)
	}

	srv, err := server.New(fc.cfg, server.Deps{
		OAuth:    oauth,
		Sessions: sessions,
		Allowed:  allowed,
		Policy:   pol,
		States:   states,
	}, zerolog.Nop())
	require.NoError(t, err)

	f.server = srv
	return f
}

// loggedInCookie creates a session directly in the store and returns its cookie.
func (f *fixture) loggedInCookie(t *testing.T, email string) *http.Cookie {
	t.Helper()

	sess, err := f.sessions.Create(
		oauthclient.Identity{Subject: "idp-subject-42", Email: email, Name: "Test User"},
		oauthclient.TokenBundle{
			AccessToken:  "provider-access-token",
			RefreshToken: "provider-refresh-token",
			TokenType:    "Bearer",
			Expiry:       time.Now().Add(time.Hour),
		},
		session.Metadata{},
	)
	require.NoError(t, err)
	return &http.Cookie{Name: testCookieName, Value: sess.ID}
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, r)
	return w
}
