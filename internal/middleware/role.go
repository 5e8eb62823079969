package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/drivoro/vehicle-rental/internal/model"
)

// RequireRole aborts with 403 unless the authenticated actor holds
// one of the given roles.  It assumes JWTAuth ran earlier in the
// chain.  Roles are compared as the closed model.Role type, so there
// is exactly one canonical comparison and no case-sensitivity traps.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok || !allowed[actor.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
