package server

import (
	"context"
	"strings"

	"github.com/learnhub/authgate/policy"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyPrincipal stores the authenticated principal for the request
const ContextKeyPrincipal ContextKey = "principal"

// Principal is the request-scoped view of an authenticated identity plus its
// authorization tier. Never persisted; recomputed from the policy on every
// request so allow-list revocation takes effect immediately.
type Principal struct {
	Email   string      `json:"email"`
	Domain  string      `json:"domain"`
	Tier    policy.Tier `json:"tier"`
	Name    string      `json:"name,omitempty"`
	Picture string      `json:"picture,omitempty"`
	Source  string      `json:"source"` // "session" or "proxy"
}

// Anonymous is the sentinel principal attached when no authentication is
// present but the handler opted into OptionalPrincipal.
var Anonymous = Principal{Tier: policy.TierAnonymous, Source: "none"}

// IsAuthenticated reports whether the principal represents a real login.
func (p Principal) IsAuthenticated() bool {
	return p.Tier == policy.TierAdministrator || p.Tier == policy.TierLimitedUser
}

// PrincipalFromContext returns the principal attached by the gateway.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(Principal)
	return p, ok
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
