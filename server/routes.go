package server

const (
	RouteSessions       = "/v1/sessions"
	RouteSession        = "/v1/sessions/{id}"
	RouteSessionAdvance = "/v1/sessions/{id}/advance"
	RouteAuthorizations = "/v1/authorizations"
	RouteUserApps       = "/v1/users/{id}/apps"
	RouteHealthz        = "/healthz"
	RouteMetrics        = "/metrics"
)

func (s *Server) initRoutes() {
	// Authentication flow
	s.RegisterRouteHandler("POST "+RouteSessions, ChainMiddleware(s.SessionCreateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionGetHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteSessionAdvance, ChainMiddleware(s.SessionAdvanceHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteSession, ChainMiddleware(s.SessionDeleteHandler(), s.APIMiddleware()...))

	// Authorization ledger + app inventory (authenticated)
	s.RegisterRouteHandler("POST "+RouteAuthorizations,
		ChainMiddleware(s.AuthorizationRecordHandler(), s.APIMiddleware(s.RequireAuthenticatedSession())...))
	s.RegisterRouteHandler("GET "+RouteUserApps,
		ChainMiddleware(s.AppListHandler(), s.APIMiddleware(s.RequireAuthenticatedSession())...))

	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, MetricsHandler())
}
