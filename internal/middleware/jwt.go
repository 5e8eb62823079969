package middleware // reusable HTTP middleware for the API

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/drivoro/vehicle-rental/internal/model"
)

const actorKey = "actor"

// JWTAuth validates a Bearer access token and stores the resolved
// actor (user id + canonical role) in the request context.  The
// engine trusts the role the identity layer resolves here; wrap every
// protected route with this middleware.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			sub, ok := claims["sub"].(float64)
			if !ok || sub < 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject"})
			}
			roleStr, _ := claims["role"].(string)
			role, ok := model.ParseRole(roleStr)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid role"})
			}

			c.Set(actorKey, model.Actor{ID: uint64(sub), Role: role})
			return next(c)
		}
	}
}

// ActorFrom returns the actor stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(actorKey).(model.Actor)
	return a, ok
}
