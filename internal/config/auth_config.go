package config

import (
	"strconv"
	"strings"
)

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) AuthEnabled() bool {
	return GetEnv("AUTH_ENABLED", "true") != "false"
}

func (Auth) GetAuthMode() AuthMode {
	switch AuthMode(GetEnv("AUTH_MODE", string(ModeDelegate))) {
	case ModeProxy:
		return ModeProxy
	case ModeDual:
		return ModeDual
	default:
		return ModeDelegate
	}
}

// GetOrgDomain returns the organizational email domain whose members are
// administrators.
func (Auth) GetOrgDomain() string {
	return GetEnv("ORG_DOMAIN", "")
}

func (Auth) GetOAuthIssuerURL() string {
	return GetEnv("OAUTH_ISSUER_URL", "https://accounts.google.com")
}

func (Auth) GetOAuthClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (Auth) GetOAuthClientSecret() string {
	return GetEnv("OAUTH_CLIENT_SECRET", "")
}

func (a Auth) GetOAuthRedirectURL() string {
	if v := GetEnv("OAUTH_REDIRECT_URL", ""); v != "" {
		return v
	}
	return EnvVars{}.GetBaseURL() + "/auth/callback"
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionSecret returns the value the token-encryption key is derived
// from. The raw secret is never used as a key.
func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", "")
}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "authgate_session")
}

func (Session) GetSessionLifetimeDays() int {
	days, err := strconv.Atoi(GetEnv("SESSION_LIFETIME_DAYS", "7"))
	if err != nil || days <= 0 {
		return 7
	}
	return days
}

// CookieSecure reports whether session cookies carry the Secure flag.
// Defaults to true outside development.
func (Session) CookieSecure() bool {
	v := GetEnv("COOKIE_SECURE", "")
	if v != "" {
		return v != "false"
	}
	return EnvVars{}.GetEnv() != "DEV"
}

type Proxy struct{}

var _ ProxyConfig = Proxy{}

// GetProxyUserHeader is the perimeter-proxy header carrying the
// authenticated email, e.g. X-Forwarded-Email from oauth2-proxy.
func (Proxy) GetProxyUserHeader() string {
	return GetEnv("PROXY_USER_HEADER", "X-Forwarded-Email")
}

// GetProxyAssertionHeader optionally names a header carrying a signed HS256
// assertion of the proxied identity.
func (Proxy) GetProxyAssertionHeader() string {
	return GetEnv("PROXY_ASSERTION_HEADER", "")
}

func (Proxy) GetProxyAssertionSecret() string {
	return GetEnv("PROXY_ASSERTION_SECRET", "")
}

// GetTrustedProxyCIDRs lists networks whose peers may assert proxy identity
// headers. Empty means no network is trusted with a plain header.
func (Proxy) GetTrustedProxyCIDRs() []string {
	raw := GetEnv("TRUSTED_PROXY_CIDRS", "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	cidrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cidrs = append(cidrs, p)
		}
	}
	return cidrs
}
