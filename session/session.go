// Package session creates, validates, and destroys the server-side login
// sessions issued after a successful identity-provider login. Each session
// carries an encrypted copy of the OAuth token bundle; the session store is
// the only component that persists session state.
package session

import "time"

// Session is one persisted login session. The ID doubles as the cookie
// value, so it is server-generated from a CSPRNG and never reused.
type Session struct {
	ID string `json:"id"`

	// Owning identity
	Subject string `json:"subject"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`

	// Token bundle sealed by tokencrypt; never stored in the clear
	EncryptedTokens []byte `json:"encrypted_tokens"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Last-seen metadata
	LastSeenAt time.Time `json:"last_seen_at"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// Metadata is the request context recorded on a session at creation and on
// last-seen updates.
type Metadata struct {
	UserAgent  string
	RemoteAddr string
}
