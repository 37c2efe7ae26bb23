package middleware

// identity.go holds helpers shared by the middleware files for naming
// the caller in cache and rate-limit keys.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID renders the authenticated caller's ID for use inside a
// Redis key, or "anon" on public routes.  JWTAuth stores the sub claim
// as whatever type MapClaims decoded, usually float64.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return "anon"
}
