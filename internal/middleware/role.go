package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unfoldmono/realza/internal/model"
)

// RequireRole aborts with 403 unless the authenticated user holds one
// of the given marketplace roles.  It expects JWTAuth to have stored
// the "role" claim in context earlier in the chain.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[string(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
