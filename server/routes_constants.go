package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes
	RouteAuthLogin    = "/auth/login"
	RouteAuthCallback = "/auth/callback"
	RouteAuthLogout   = "/auth/logout"
	RouteAuthMe       = "/auth/me"

	// Operational Routes
	RouteHealthz = "/healthz"

	// Admin API Routes
	RouteAdminAllowedUsers     = "/api/admin/allowed-users"
	RouteAdminAllowedUserItem  = "/api/admin/allowed-users/{email}"
	RouteAdminSessionStats     = "/api/admin/sessions/stats"
)

// publicPathPrefixes lists paths the gateway bypasses entirely. Logout is
// here so an expired or tampered cookie can never lock a user out of logging
// out; static assets, docs, and legal pages need no principal.
var publicPathPrefixes = []string{
	RouteAuthLogin,
	RouteAuthCallback,
	RouteAuthLogout,
	RouteHealthz,
	"/static/",
	"/docs",
	"/legal/",
}
