package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/flashsale/inventory-core/internal/config"     // rate-limit/cache tunables
	"github.com/flashsale/inventory-core/internal/handler"    // import the handlers that implement business logic
	"github.com/flashsale/inventory-core/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Create a route group under the /v1/auth prefix for operations that do
	// not require an existing session (register, login, refresh).  Each of
	// these handlers is responsible for generating or exchanging tokens.
	g := e.Group("/v1/auth")
	// Register a POST endpoint to handle user registration at /v1/auth/register.
	g.POST("/register", a.Register)
	// Register a POST endpoint to handle user login at /v1/auth/login.
	g.POST("/login", a.Login)
	// Register a POST endpoint to refresh access tokens at /v1/auth/refresh. This rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Register a POST endpoint to issue a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Register a POST endpoint to log out using a refresh token.  Logout does
	// not require JWT authentication: the handler accepts a JSON body
	// containing a `refresh_token` and will invalidate that token, or falls
	// back to revoking all sessions when a valid bearer token is presented.
	g.POST("/logout", a.Logout)

	// Create another group for routes that require a valid access token.  All
	// handlers registered on this group will execute the JWTAuth middleware
	// before being invoked.  Protected endpoints live under /v1.
	auth := e.Group("/v1")
	// Apply the JWTAuth middleware to the protected group using the provided secret.
	auth.Use(middleware.JWTAuth(jwtSecret))
	// Apply the RequireRole middleware for any authenticated endpoint.  Both
	// ADMIN and USER roles may reach the protected group; handlers that are
	// admin-only (inventory initialize) apply a tighter RequireRole of their own.
	auth.Use(middleware.RequireRole("ADMIN", "USER"))
	// Register a GET endpoint at /v1/me that returns the authenticated user's information.
	auth.GET("/me", a.Me)

	// Additionally map POST /v1/logout to the same handler.  This route lives
	// at the top level (outside of the protected group) so it does not
	// require a JWT.
	e.POST("/v1/logout", a.Logout)
}

// RegisterInventory registers the reservation core's HTTP surface: inventory
// admin/status, reserve, and checkout confirm/cancel/order-lookup.  All
// routes require a valid access token; the initialize route additionally
// requires the ADMIN role. The reserve hot path sits behind the token-bucket
// rate gate and the status read sits behind the response cache, the same two
// middlewares the teacher built for its seat-availability endpoints.
func RegisterInventory(e *echo.Echo, inv *handler.InventoryHandler, checkout *handler.CheckoutHandler, jwtSecret string, rdb *redis.Client, rlCfg config.RateLimitConfig, cacheCfg config.CacheConfig) {
	protected := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	admin := protected.Group("", middleware.RequireRole("ADMIN"))
	admin.POST("/inventory/:sku/initialize", inv.Initialize)

	protected.Use(middleware.RequireRole("ADMIN", "USER"))
	protected.GET("/inventory/:sku", inv.Status, middleware.NewRedisCache(cacheCfg, rdb))
	protected.POST("/inventory/reserve", inv.Reserve, middleware.NewTokenBucket(rlCfg, rdb))

	protected.POST("/checkout/confirm", checkout.Confirm)
	protected.POST("/checkout/cancel", checkout.Cancel)
	protected.GET("/checkout/orders/:order_id", checkout.GetOrder)
}
