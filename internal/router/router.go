package router // route registration for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/unfoldmono/realza/internal/handler"
	"github.com/unfoldmono/realza/internal/middleware"
	"github.com/unfoldmono/realza/internal/model"
)

// RegisterRoutes registers routes that need no authentication at all.
// Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the auth endpoints.  Register, login, refresh and
// logout live under /v1/auth without middleware; /v1/me requires a
// valid access token with a known role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes either a bearer token or a refresh_token body, so it
	// stays outside the JWT middleware.
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleSeller, model.RoleAgent))
	auth.GET("/me", a.Me)
}

// RegisterPublic wires the guest endpoints: the listing feed, listing
// detail and the legacy buyer showing request.  The cache middleware,
// when enabled, is applied in main to the feed routes only.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/listings", p.ListListings, cache)
	e.GET("/v1/listings/:id", p.GetListing, cache)
	e.POST("/v1/showings/buyer-request", p.BuyerRequestShowing)
}

// RegisterAgent wires the agent-only endpoints under /v1/agent.
func RegisterAgent(e *echo.Echo, a *handler.AgentHandler, jwtSecret string) {
	g := e.Group("/v1/agent")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAgent))

	g.POST("/showings", a.RequestShowing)
	g.GET("/showings", a.ListMine)
	g.POST("/showings/:id/bids", a.Bid)
	g.POST("/showings/:id/claim", a.Claim)
	g.GET("/showings/:id/lock-code", a.LockCode)
	g.POST("/showings/:id/complete", a.Complete)
	g.GET("/claimable", a.Claimable)
	g.PUT("/service-area", a.UpdateServiceArea)
}

// RegisterSeller wires the seller-only endpoints under /v1/seller.
func RegisterSeller(e *echo.Echo, s *handler.SellerHandler, l *handler.SellerListingHandler, jwtSecret string) {
	g := e.Group("/v1/seller")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleSeller))

	g.POST("/listings", l.Create)
	g.GET("/listings", l.ListMine)
	g.PATCH("/listings/:id/status", l.UpdateStatus)

	g.GET("/showings", s.Dashboard)
	g.POST("/bids/:id/accept", s.AcceptBid)
	g.POST("/bids/:id/reject", s.RejectBid)
}
