package server

func (s *Server) initRoutes() {
	// Auth endpoints (public-path listed; the gateway passes them through)
	s.RegisterRouteFunc("GET "+RouteAuthLogin, s.LoginHandler())
	s.RegisterRouteFunc("GET "+RouteAuthCallback, s.CallbackHandler())
	s.RegisterRouteFunc("POST "+RouteAuthCallback, s.CallbackHandler()) // form_post response mode
	s.RegisterRouteFunc("GET "+RouteAuthLogout, s.LogoutHandler())
	s.RegisterRouteFunc("POST "+RouteAuthLogout, s.LogoutHandler())

	// Principal endpoint (behind the gateway)
	s.RegisterRouteFunc("GET "+RouteAuthMe, s.MeHandler())

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())

	// Admin API: allow-list management and session stats
	s.RegisterRouteFunc("GET "+RouteAdminAllowedUsers, ChainMiddleware(s.AllowedUsersListHandler(), s.RequireAdministrator))
	s.RegisterRouteFunc("POST "+RouteAdminAllowedUsers, ChainMiddleware(s.AllowedUsersAddHandler(), s.RequireAdministrator))
	s.RegisterRouteFunc("DELETE "+RouteAdminAllowedUserItem, ChainMiddleware(s.AllowedUsersRemoveHandler(), s.RequireAdministrator))
	s.RegisterRouteFunc("GET "+RouteAdminSessionStats, ChainMiddleware(s.SessionStatsHandler(), s.RequireAdministrator))
}
