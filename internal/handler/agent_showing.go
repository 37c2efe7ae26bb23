package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/unfoldmono/realza/internal/allocation"
	"github.com/unfoldmono/realza/internal/model"
	"github.com/unfoldmono/realza/internal/repository"
)

// AgentHandler serves everything an agent does: requesting and bidding
// on showings, claiming, lock codes, completion, the claimable feed and
// the service-area preference.
type AgentHandler struct {
	Engine   *allocation.Engine
	Users    *repository.UserRepo
	Listings *repository.ListingRepo
	Showings *repository.ShowingRepo
	Bids     *repository.ShowingBidRepo
}

func NewAgentHandler(eng *allocation.Engine, u *repository.UserRepo, l *repository.ListingRepo,
	s *repository.ShowingRepo, b *repository.ShowingBidRepo) *AgentHandler {
	if eng == nil || u == nil || l == nil || s == nil || b == nil {
		panic("nil dependency passed to NewAgentHandler")
	}
	return &AgentHandler{Engine: eng, Users: u, Listings: l, Showings: s, Bids: b}
}

type requestShowingReq struct {
	ListingID   uint64 `json:"listing_id"`
	RequestedAt string `json:"requested_at"` // "2006-01-02T15:04"
	BidCents    uint32 `json:"bid_cents"`
}

// RequestShowing opens a new seller-approval showing with the agent's
// opening bid.
func (h *AgentHandler) RequestShowing(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req requestShowingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	showing, bid, err := h.Engine.RequestShowing(ctx, actor, req.ListingID, req.RequestedAt, req.BidCents)
	if err != nil {
		return allocError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"showing_id":     showing.ID,
		"listing_id":     showing.ListingID,
		"requested_date": showing.RequestedDate,
		"requested_time": showing.RequestedTime,
		"status":         string(showing.Status),
		"bid_id":         bid.ID,
		"bid_cents":      bid.BidCents,
	})
}

type bidReq struct {
	BidCents uint32  `json:"bid_cents"`
	Message  *string `json:"message"`
}

// Bid places a competing bid on an existing showing.
func (h *AgentHandler) Bid(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	var req bidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	bid, err := h.Engine.BidOnShowing(ctx, actor, showingID, req.BidCents, req.Message)
	if err != nil {
		return allocError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"bid_id":     bid.ID,
		"showing_id": bid.ShowingID,
		"bid_cents":  bid.BidCents,
		"status":     string(bid.Status),
	})
}

// Claim races for a first-claim showing.  On a win it returns the
// assignment and publishes a showing.assigned event; a lost race is a
// 409.
func (h *AgentHandler) Claim(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	var req bidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	asg, err := h.Engine.ClaimShowing(ctx, actor, showingID, req.BidCents, req.Message)
	if err != nil {
		return allocError(c, err)
	}
	publishAssigned(h.Listings, h.Showings, asg)
	return c.JSON(http.StatusOK, asg)
}

// LockCode discloses the lock code to the assigned agent inside the
// availability window.
func (h *AgentHandler) LockCode(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	code, err := h.Engine.GetLockCode(ctx, actor, showingID)
	if err != nil {
		return allocError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"lock_code": code})
}

type completeReq struct {
	Feedback *string `json:"feedback"`
	Rating   *uint8  `json:"rating"`
}

// Complete marks an assigned showing as done, with optional feedback
// and a 1-5 rating.
func (h *AgentHandler) Complete(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showingID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showing id"})
	}
	var req completeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 1 and 5"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Engine.CompleteShowing(ctx, actor, showingID, req.Feedback, req.Rating); err != nil {
		return allocError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListMine is the agent dashboard: held and completed showings plus
// the agent's open bids.
func (h *AgentHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	showings, err := h.Showings.ListForAgent(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	bids, err := h.Bids.ListPendingByAgent(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"showings":     showings,
		"pending_bids": bids,
	})
}

// Claimable lists first-claim showings the agent can take right now.
// Query parameters zip/city/state override the agent's saved service
// area; with neither, the feed is marketwide.
func (h *AgentHandler) Claimable(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	area := repository.AreaFilter{
		Zip:   c.QueryParam("zip"),
		City:  c.QueryParam("city"),
		State: c.QueryParam("state"),
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if area.Zip == "" && area.City == "" && area.State == "" {
		u, err := h.Users.GetByID(ctx, uid)
		if err != nil && err != sql.ErrNoRows {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		if err == nil {
			if u.ServiceZip != nil {
				area.Zip = *u.ServiceZip
			}
			if u.ServiceCity != nil {
				area.City = *u.ServiceCity
			}
			if u.ServiceState != nil {
				area.State = *u.ServiceState
			}
		}
	}

	today := h.Engine.Now().In(h.Engine.Loc).Format(model.DateLayout)
	rows, err := h.Showings.ListClaimable(ctx, area, today)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"showings": rows})
}

type serviceAreaReq struct {
	Zip   *string `json:"zip"`
	City  *string `json:"city"`
	State *string `json:"state"`
}

// UpdateServiceArea saves the agent's default feed filter.  Explicit
// nulls clear the saved values.
func (h *AgentHandler) UpdateServiceArea(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req serviceAreaReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	normalize := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		if v == "" {
			return nil
		}
		return &v
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdateServiceArea(ctx, uid, normalize(req.Zip), normalize(req.City), normalize(req.State)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
