package handler // handler exposes the HTTP surface of the marketplace

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/unfoldmono/realza/internal/allocation"
	"github.com/unfoldmono/realza/internal/model"
)

// getUserID extracts the user_id stored by JWTAuth and converts it to
// uint64.  MapClaims decodes JSON numbers as float64, so that case is
// the common one.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// actorFrom builds the allocation actor for the authenticated caller.
func actorFrom(c echo.Context) (allocation.Actor, error) {
	uid, err := getUserID(c)
	if err != nil {
		return allocation.Actor{}, err
	}
	role, _ := c.Get("role").(string)
	return allocation.Actor{ID: uid, Role: model.Role(role)}, nil
}

// allocError translates the engine's sentinel errors into JSON error
// responses.  Unknown errors become a generic 500 so internals never
// leak to clients.
func allocError(c echo.Context, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, allocation.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
	case errors.Is(err, allocation.ErrForbidden), errors.Is(err, allocation.ErrTooEarly):
		return c.JSON(http.StatusForbidden, echo.Map{"error": msg})
	case errors.Is(err, allocation.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
	case errors.Is(err, allocation.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	case errors.Is(err, allocation.ErrInvalidState), errors.Is(err, allocation.ErrAlreadyClaimed):
		return c.JSON(http.StatusConflict, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// parseID reads a numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
