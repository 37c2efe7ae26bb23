package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unfoldmono/realza/internal/model"
	"github.com/unfoldmono/realza/internal/repository"
)

// SellerListingHandler manages a seller's own listings.
type SellerListingHandler struct {
	Listings *repository.ListingRepo
}

func NewSellerListingHandler(l *repository.ListingRepo) *SellerListingHandler {
	if l == nil {
		panic("nil repository passed to NewSellerListingHandler")
	}
	return &SellerListingHandler{Listings: l}
}

type createListingReq struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
	PriceCents uint64 `json:"price_cents"`
	LockCode   string `json:"lock_code"`
	Status     string `json:"status"` // optional, defaults to draft
}

// sellerListing is a listing in seller responses.  The lock code is
// echoed back only here, to its owner.
type sellerListing struct {
	ID         uint64 `json:"id"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Zip        string `json:"zip"`
	PriceCents uint64 `json:"price_cents"`
	Status     string `json:"status"`
	LockCode   string `json:"lock_code,omitempty"`
}

// Create registers a new listing under the authenticated seller.
func (h *SellerListingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createListingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Address = strings.TrimSpace(req.Address)
	req.City = strings.TrimSpace(req.City)
	req.State = strings.TrimSpace(req.State)
	req.Zip = strings.TrimSpace(req.Zip)
	if req.Address == "" || req.City == "" || req.State == "" || req.Zip == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "address, city, state and zip required"})
	}
	if req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents required"})
	}
	status := model.ListingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if req.Status != "" && !status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown listing status"})
	}

	l := &model.Listing{
		SellerID:   uid,
		Address:    req.Address,
		City:       req.City,
		State:      req.State,
		Zip:        req.Zip,
		PriceCents: req.PriceCents,
		LockCode:   strings.TrimSpace(req.LockCode),
		Status:     status, // repo defaults empty to draft
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Listings.Create(ctx, l); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create listing failed"})
	}
	return c.JSON(http.StatusCreated, sellerListing{
		ID:         l.ID,
		Address:    l.Address,
		City:       l.City,
		State:      l.State,
		Zip:        l.Zip,
		PriceCents: l.PriceCents,
		Status:     string(l.Status),
		LockCode:   l.LockCode,
	})
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus moves a listing through its lifecycle.  Only the owner
// may change it.
func (h *SellerListingHandler) UpdateStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := model.ListingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown listing status"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Listings.UpdateStatus(ctx, id, uid, status); err != nil {
		switch err {
		case repository.ErrListingNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		case repository.ErrForbidden:
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your listing"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMine returns all of the seller's listings, newest first.
func (h *SellerListingHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Listings.ListBySeller(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]sellerListing, 0, len(rows))
	for _, l := range rows {
		out = append(out, sellerListing{
			ID:         l.ID,
			Address:    l.Address,
			City:       l.City,
			State:      l.State,
			Zip:        l.Zip,
			PriceCents: l.PriceCents,
			Status:     string(l.Status),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"listings": out})
}
