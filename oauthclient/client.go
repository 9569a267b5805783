// Package oauthclient talks to the external OIDC identity provider: it builds
// authorization URLs, exchanges callback codes for tokens, fetches profiles,
// and refreshes or revokes tokens. CSRF state handling is delegated to the
// authstate registry.
package oauthclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/learnhub/authgate/authstate"
)

// Provider-interaction failures. Detail is logged server-side; users only
// ever see a generic "login failed" message.
var (
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrProfileFetchFailed  = errors.New("profile fetch failed")
	ErrRefreshFailed       = errors.New("token refresh failed")
)

const providerTimeout = 15 * time.Second

// Config carries the provider settings for a Client.
type Config struct {
	IssuerURL     string
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	OfflineAccess bool // request a refresh token
}

// LoginResult is the outcome of a successful CompleteLogin.
type LoginResult struct {
	Identity  Identity
	Tokens    TokenBundle
	ReturnURL string
}

// Client is a confidential OAuth 2.0 client against one OIDC provider.
// Safe for concurrent use; no lock is held across provider I/O.
type Client struct {
	provider   *oidc.Provider
	oauth      *oauth2.Config
	states     *authstate.Registry
	httpClient *http.Client
	log        zerolog.Logger

	// from provider discovery, empty when the provider has none
	revocationEndpoint string
}

// New discovers the provider's endpoints and returns a ready Client.
func New(ctx context.Context, cfg Config, states *authstate.Registry, log zerolog.Logger) (*Client, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, pkgerrors.New("[oauthclient.New] issuer URL and client ID are required")
	}
	if states == nil {
		return nil, pkgerrors.New("[oauthclient.New] state registry is required")
	}

	httpClient := &http.Client{Timeout: providerTimeout}
	ctx = oidc.ClientContext(ctx, httpClient)

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[oauthclient.New] oidc.NewProvider")
	}

	scopes := []string{oidc.ScopeOpenID, "profile", "email"}
	if cfg.OfflineAccess {
		scopes = append(scopes, oidc.ScopeOfflineAccess)
	}

	var discovered struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	_ = provider.Claims(&discovered)

	return &Client{
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		states:             states,
		httpClient:         httpClient,
		log:                log,
		revocationEndpoint: discovered.RevocationEndpoint,
	}, nil
}

// BeginLogin registers a fresh CSRF state bound to returnURL and returns the
// provider authorization URL to redirect the browser to.
func (c *Client) BeginLogin(returnURL string) (string, error) {
	state, err := c.states.Issue(returnURL)
	if err != nil {
		return "", pkgerrors.Wrap(err, "[Client.BeginLogin] states.Issue")
	}
	return c.oauth.AuthCodeURL(state), nil
}

// CompleteLogin validates the presented state, exchanges the authorization
// code, and fetches the user profile. State consumption happens first and is
// single-use, so an abandoned or replayed callback leaves no session behind.
func (c *Client) CompleteLogin(ctx context.Context, code, state string) (*LoginResult, error) {
	entry, err := c.states.Consume(state)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(oidc.ClientContext(ctx, c.httpClient), providerTimeout)
	defer cancel()

	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		c.log.Warn().Err(err).Msg("authorization code exchange rejected by provider")
		return nil, ErrTokenExchangeFailed
	}

	identity, err := c.fetchProfile(ctx, token)
	if err != nil {
		c.log.Warn().Err(err).Msg("userinfo fetch failed")
		return nil, ErrProfileFetchFailed
	}

	return &LoginResult{
		Identity:  identity,
		Tokens:    c.bundleFromToken(token),
		ReturnURL: entry.ReturnURL,
	}, nil
}

// Refresh exchanges the bundle's refresh token for a fresh access token. The
// caller must force a re-login on ErrRefreshFailed.
func (c *Client) Refresh(ctx context.Context, bundle TokenBundle) (TokenBundle, error) {
	if bundle.RefreshToken == "" {
		return TokenBundle{}, ErrRefreshFailed
	}

	ctx, cancel := context.WithTimeout(oidc.ClientContext(ctx, c.httpClient), providerTimeout)
	defer cancel()

	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: bundle.RefreshToken}).Token()
	if err != nil {
		c.log.Warn().Err(err).Msg("refresh token rejected by provider")
		return TokenBundle{}, ErrRefreshFailed
	}

	refreshed := c.bundleFromToken(token)
	if refreshed.RefreshToken == "" {
		// Providers may omit the refresh token on rotation-free grants
		refreshed.RefreshToken = bundle.RefreshToken
	}
	return refreshed, nil
}

// Revoke asks the provider to revoke a token. Best effort: logout must
// succeed locally whatever the provider says, so failures are logged and
// reported as false, never escalated.
func (c *Client) Revoke(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if c.revocationEndpoint == "" {
		c.log.Debug().Msg("provider exposes no revocation endpoint, skipping revoke")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	form := url.Values{
		"token":         {token},
		"client_id":     {c.oauth.ClientID},
		"client_secret": {c.oauth.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revocationEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		c.log.Warn().Err(err).Msg("building revocation request failed")
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("token revocation request failed")
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Warn().Int("status", resp.StatusCode).Msg("provider rejected token revocation")
		return false
	}
	return true
}

func (c *Client) fetchProfile(ctx context.Context, token *oauth2.Token) (Identity, error) {
	userInfo, err := c.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return Identity{}, err
	}

	var claims struct {
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	_ = userInfo.Claims(&claims)

	if userInfo.Subject == "" || userInfo.Email == "" {
		return Identity{}, pkgerrors.New("userinfo response missing subject or email")
	}

	return Identity{
		Subject: userInfo.Subject,
		Email:   userInfo.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

func (c *Client) bundleFromToken(token *oauth2.Token) TokenBundle {
	return TokenBundle{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		Scopes:       c.oauth.Scopes,
	}
}
