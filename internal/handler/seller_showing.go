package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unfoldmono/realza/internal/allocation"
	"github.com/unfoldmono/realza/internal/repository"
)

// SellerHandler covers the seller's side of allocation: deciding on
// bids and watching showings across their listings.
type SellerHandler struct {
	Engine   *allocation.Engine
	Listings *repository.ListingRepo
	Showings *repository.ShowingRepo
}

func NewSellerHandler(eng *allocation.Engine, l *repository.ListingRepo, s *repository.ShowingRepo) *SellerHandler {
	if eng == nil || l == nil || s == nil {
		panic("nil dependency passed to NewSellerHandler")
	}
	return &SellerHandler{Engine: eng, Listings: l, Showings: s}
}

// AcceptBid assigns the showing to the chosen bid's agent.  Ownership
// is checked inside the engine; a showing that got claimed in the
// meantime comes back as a 409.
func (h *SellerHandler) AcceptBid(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bidID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	asg, err := h.Engine.AcceptBid(ctx, actor, bidID)
	if err != nil {
		return allocError(c, err)
	}
	publishAssigned(h.Listings, h.Showings, asg)
	return c.JSON(http.StatusOK, asg)
}

// RejectBid declines one bid; when it was the last pending bid the
// showing is cancelled.
func (h *SellerHandler) RejectBid(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bidID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.RejectBid(ctx, actor, bidID); err != nil {
		return allocError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Dashboard lists every showing on the seller's listings with the
// pending bids competing for each.
func (h *SellerHandler) Dashboard(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Showings.ListForSeller(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"showings": rows})
}
