package config

// AuthMode selects how the gateway resolves a principal from a request.
type AuthMode string

const (
	// ModeDelegate resolves principals from the session cookie only.
	ModeDelegate AuthMode = "delegate"
	// ModeProxy trusts the perimeter-proxy identity header only.
	ModeProxy AuthMode = "proxy"
	// ModeDual tries the session cookie first and falls back to the
	// perimeter-proxy header, for no-downtime migrations between the two.
	ModeDual AuthMode = "dual"
)

type Config interface {
	EnvConfig
	AuthConfig
	SessionConfig
	ProxyConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetDataFolder() string
	GetEnv() string
}

type AuthConfig interface {
	AuthEnabled() bool
	GetAuthMode() AuthMode
	GetOrgDomain() string
	GetOAuthIssuerURL() string
	GetOAuthClientID() string
	GetOAuthClientSecret() string
	GetOAuthRedirectURL() string
}

type SessionConfig interface {
	GetSessionSecret() string
	GetSessionCookieName() string
	GetSessionLifetimeDays() int
	CookieSecure() bool
}

type ProxyConfig interface {
	GetProxyUserHeader() string
	GetProxyAssertionHeader() string
	GetProxyAssertionSecret() string
	GetTrustedProxyCIDRs() []string
}

type mainConfig struct {
	EnvVars
	Auth
	Session
	Proxy
}

func New() Config {
	return mainConfig{}
}
