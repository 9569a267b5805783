// Package server wires the authentication core into HTTP: the login
// endpoints, the per-request authentication gateway, and the access-control
// middleware consumed by downstream route handlers.
package server

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/learnhub/authgate/allowlist"
	"github.com/learnhub/authgate/authstate"
	"github.com/learnhub/authgate/internal/config"
	"github.com/learnhub/authgate/oauthclient"
	"github.com/learnhub/authgate/policy"
	"github.com/learnhub/authgate/session"
	"github.com/learnhub/authgate/tokencrypt"
)

// Deps holds the core components the server routes requests through.
type Deps struct {
	OAuth    *oauthclient.Client // may be nil when AUTH_MODE is proxy-only
	Sessions *session.Store
	Allowed  *allowlist.Store
	Policy   *policy.Policy
	States   *authstate.Registry
}

type Server struct {
	env     string
	mux     *http.ServeMux
	handler http.Handler // mux wrapped in the global middleware chain
	routes  []string
	config  config.Config
	log     zerolog.Logger

	oauth    *oauthclient.Client
	sessions *session.Store
	allowed  *allowlist.Store
	policy   *policy.Policy
	states   *authstate.Registry

	resolvers      []PrincipalResolver
	trustedProxies []*net.IPNet
}

// New assembles a Server from pre-built components.
func New(cfg config.Config, deps Deps, log zerolog.Logger) (*Server, error) {
	if deps.Sessions == nil {
		return nil, pkgerrors.New("[server.New] session store is required")
	}
	if deps.Allowed == nil {
		return nil, pkgerrors.New("[server.New] allow-list store is required")
	}
	if deps.Policy == nil {
		return nil, pkgerrors.New("[server.New] policy is required")
	}

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		config:   cfg,
		log:      log,
		oauth:    deps.OAuth,
		sessions: deps.Sessions,
		allowed:  deps.Allowed,
		policy:   deps.Policy,
		states:   deps.States,
	}

	trusted, err := parseCIDRs(cfg.GetTrustedProxyCIDRs())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[server.New] trusted proxy CIDRs")
	}
	s.trustedProxies = trusted
	s.resolvers = s.buildResolvers()

	s.initRoutes()
	s.handler = ChainMiddleware(s.mux.ServeHTTP, s.LoggingMiddleware, s.RecoverMiddleware, s.AuthGateway)
	return s, nil
}

// Bootstrap builds every component from configuration: file-backed repos in
// the data folder, the token cipher, the CSRF registry, the OAuth client
// (skipped in proxy-only mode), and finally the Server.
func Bootstrap(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	if cfg.GetOrgDomain() == "" {
		return nil, pkgerrors.New("[server.Bootstrap] ORG_DOMAIN is required")
	}
	if cfg.GetSessionSecret() == "" {
		return nil, pkgerrors.New("[server.Bootstrap] SESSION_SECRET is required")
	}

	cipher, err := tokencrypt.New(cfg.GetSessionSecret())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[server.Bootstrap] tokencrypt.New")
	}

	dataFolder := cfg.GetDataFolder()

	allowRepo, err := allowlist.NewFileRepo(filepath.Join(dataFolder, "allowlist.json"))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[server.Bootstrap] allowlist.NewFileRepo")
	}
	allowed, err := allowlist.NewStore(allowRepo)
	if err != nil {
		return nil, err
	}

	sessionRepo, err := session.NewFileRepo(filepath.Join(dataFolder, "sessions.json"))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[server.Bootstrap] session.NewFileRepo")
	}
	lifetime := time.Duration(cfg.GetSessionLifetimeDays()) * 24 * time.Hour
	sessions, err := session.NewStore(sessionRepo, cipher, log, session.WithLifetime(lifetime))
	if err != nil {
		return nil, err
	}

	pol, err := policy.New(cfg.GetOrgDomain(), allowed)
	if err != nil {
		return nil, err
	}

	states, err := authstate.NewRegistry(authstate.NewInMemoryRepo())
	if err != nil {
		return nil, err
	}

	var oauth *oauthclient.Client
	if cfg.GetAuthMode() != config.ModeProxy {
		oauth, err = oauthclient.New(ctx, oauthclient.Config{
			IssuerURL:     cfg.GetOAuthIssuerURL(),
			ClientID:      cfg.GetOAuthClientID(),
			ClientSecret:  cfg.GetOAuthClientSecret(),
			RedirectURL:   cfg.GetOAuthRedirectURL(),
			OfflineAccess: true,
		}, states, log)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[server.Bootstrap] oauthclient.New")
		}
	}

	return New(cfg, Deps{
		OAuth:    oauth,
		Sessions: sessions,
		Allowed:  allowed,
		Policy:   pol,
		States:   states,
	}, log)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func parseCIDRs(cidrs []string) ([]*net.IPNet, error) {
	parsed := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "invalid CIDR %q", cidr)
		}
		parsed = append(parsed, network)
	}
	return parsed, nil
}

// getScheme determines http/https for cookie security decisions
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
