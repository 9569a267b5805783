package oauthclient

import "time"

// Identity is the profile returned by the identity provider for a completed
// login. Immutable per login; embedded into a session, never persisted alone.
type Identity struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// TokenBundle holds the provider-issued tokens for a login. Sensitive: the
// session store encrypts it before it ever touches disk.
type TokenBundle struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// Expired reports whether the access token is past its expiry. A zero expiry
// means the provider did not bound the token.
func (b TokenBundle) Expired(now time.Time) bool {
	return !b.Expiry.IsZero() && !b.Expiry.After(now)
}
