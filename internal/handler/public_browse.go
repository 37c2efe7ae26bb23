// Public browsing endpoints.  Unauthenticated buyers can browse active
// listings and request a showing the legacy way.  Lock codes and seller
// identities never appear in these responses.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unfoldmono/realza/internal/allocation"
	"github.com/unfoldmono/realza/internal/model"
	"github.com/unfoldmono/realza/internal/repository"
)

// PublicHandler serves guest traffic: the listing feed, listing detail
// and the buyer showing request.
type PublicHandler struct {
	Listings *repository.ListingRepo
	Engine   *allocation.Engine
}

func NewPublicHandler(l *repository.ListingRepo, eng *allocation.Engine) *PublicHandler {
	return &PublicHandler{Listings: l, Engine: eng}
}

// PublicListing is a listing as exposed to guests: no seller ID, no
// lock code.
type PublicListing struct {
	ID         uint64 `json:"id"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
	PriceCents uint64 `json:"price_cents"`
	Status     string `json:"status"`
}

func toPublicListing(l model.Listing) PublicListing {
	return PublicListing{
		ID:         l.ID,
		Address:    l.Address,
		City:       l.City,
		State:      l.State,
		Zip:        l.Zip,
		PriceCents: l.PriceCents,
		Status:     string(l.Status),
	}
}

// ListListings returns active listings, optionally narrowed with
// ?zip= &city= &state= query parameters.  This route sits behind the
// Redis response cache.
func (h *PublicHandler) ListListings(c echo.Context) error {
	area := repository.AreaFilter{
		Zip:   c.QueryParam("zip"),
		City:  c.QueryParam("city"),
		State: c.QueryParam("state"),
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Listings.ListActive(ctx, area)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]PublicListing, 0, len(rows))
	for _, l := range rows {
		out = append(out, toPublicListing(l))
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": out})
}

// GetListing returns one listing by ID.  Non-active listings are
// hidden from guests.
func (h *PublicHandler) GetListing(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	l, err := h.Listings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrListingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if l.Status != model.ListingActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
	}
	return c.JSON(http.StatusOK, toPublicListing(*l))
}

type buyerRequestReq struct {
	ListingID     uint64  `json:"listing_id"`
	BuyerName     string  `json:"buyer_name"`
	BuyerEmail    string  `json:"buyer_email"`
	BuyerPhone    *string `json:"buyer_phone"`
	RequestedDate string  `json:"requested_date"` // "2006-01-02"
	RequestedTime string  `json:"requested_time"` // "15:04"
}

// BuyerRequestShowing is the legacy buyer flow: an unauthenticated
// buyer asks for a showing, which opens in BIDDING and is claimable by
// any agent.
func (h *PublicHandler) BuyerRequestShowing(c echo.Context) error {
	var req buyerRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	showing, err := h.Engine.RequestBuyerShowing(ctx, allocation.BuyerRequest{
		ListingID:     req.ListingID,
		BuyerName:     req.BuyerName,
		BuyerEmail:    req.BuyerEmail,
		BuyerPhone:    req.BuyerPhone,
		RequestedDate: req.RequestedDate,
		RequestedTime: req.RequestedTime,
	})
	if err != nil {
		return allocError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"showing_id":     showing.ID,
		"listing_id":     showing.ListingID,
		"requested_date": showing.RequestedDate,
		"requested_time": showing.RequestedTime,
		"status":         string(showing.Status),
	})
}
