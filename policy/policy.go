// Package policy decides the authorization tier for an authenticated email:
// organizational-domain members are administrators, allow-listed externals
// are limited users, everyone else is unauthorized.
package policy

import (
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/learnhub/authgate/allowlist"
)

// Tier is the authorization level attached to a principal.
type Tier string

const (
	TierAdministrator Tier = "administrator"
	TierLimitedUser   Tier = "limited_user"
	TierAnonymous     Tier = "anonymous"
)

// Policy classifies emails. The domain check takes precedence and is
// independent of allow-list state, so removing an organizational member from
// the allow-list never demotes them.
type Policy struct {
	orgDomain string
	allowed   *allowlist.Store
}

// New creates a Policy for the given organizational domain.
func New(orgDomain string, allowed *allowlist.Store) (*Policy, error) {
	orgDomain = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(orgDomain, "@")))
	if orgDomain == "" {
		return nil, pkgerrors.New("[policy.New] organizational domain is required")
	}
	if allowed == nil {
		return nil, pkgerrors.New("[policy.New] allow-list store is required")
	}
	return &Policy{orgDomain: orgDomain, allowed: allowed}, nil
}

// Classify returns the tier for email. Called at login to decide whether a
// session may be created at all, and re-evaluated per request so allow-list
// revocation takes effect without waiting for session expiry.
func (p *Policy) Classify(email string) Tier {
	domain := emailDomain(email)
	if domain == "" {
		return TierAnonymous
	}
	if domain == p.orgDomain {
		return TierAdministrator
	}
	if p.allowed.IsCurrentlyAllowed(email) {
		return TierLimitedUser
	}
	return TierAnonymous
}

func emailDomain(email string) string {
	email = allowlist.NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
