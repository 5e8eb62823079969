package router // registers the HTTP routes of the reservation API

import (
	"github.com/labstack/echo/v4"

	"github.com/drivoro/vehicle-rental/internal/handler"
	"github.com/drivoro/vehicle-rental/internal/middleware"
	"github.com/drivoro/vehicle-rental/internal/model"
)

// RegisterRoutes registers routes that require no authentication.
func RegisterRoutes(e *echo.Echo) {
	// Health probe for load balancers and monitoring.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Register,
// login and refresh live under /v1/auth and need no session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
}

// RegisterBookings wires the reservation endpoints.  Customer routes
// live under /v1/bookings, the partner/admin decision routes under
// /v1/partner/bookings.  Every route requires a valid access token;
// the role middleware narrows who gets through, and the engine's own
// guards enforce per-vehicle ownership.
func RegisterBookings(e *echo.Echo, b *handler.BookingHandler, p *handler.PartnerBookingHandler, v *handler.VehicleHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	vehicles := e.Group("/v1/vehicles")
	vehicles.Use(middleware.JWTAuth(jwtSecret))
	vehicles.GET("/:id", v.Get)

	customer := e.Group("/v1/bookings")
	customer.Use(middleware.JWTAuth(jwtSecret))
	if limit != nil {
		customer.Use(limit)
	}
	customer.Use(middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	customer.POST("", b.Create)
	customer.GET("", b.List)
	customer.GET("/:id", b.Get)
	customer.POST("/:id/cancel", b.Cancel)

	partner := e.Group("/v1/partner/bookings")
	partner.Use(middleware.JWTAuth(jwtSecret))
	partner.Use(middleware.RequireRole(model.RolePartner, model.RoleAdmin))
	partner.GET("", p.List)
	partner.POST("/:id/confirm", p.Confirm)
	partner.POST("/:id/reject", p.Reject)
	partner.POST("/:id/cancel", p.Cancel)
	partner.POST("/:id/start", p.Start)
	partner.POST("/:id/complete", p.Complete)
}

// RegisterPayments wires the payment-gateway callback.  The gateway
// authenticates with a shared secret header, not a JWT.
func RegisterPayments(e *echo.Echo, h *handler.PaymentHandler) {
	e.POST("/v1/payments/notify", h.Notify)
}
