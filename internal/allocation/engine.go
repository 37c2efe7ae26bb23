package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unfoldmono/realza/internal/model"
	"github.com/unfoldmono/realza/internal/repository"
)

const (
	// MinBidCents is the marketplace floor for a showing bid: $75.
	MinBidCents uint32 = 7500

	// LockCodeLead is how far before the showing's start time the lock
	// code becomes available on the claim path.  The seller-approval
	// path has no time gate; the approval itself is the trust signal.
	LockCodeLead = time.Hour

	// RequestedAtLayout is the wire format for a combined date and
	// time-of-day, matching an HTML datetime-local value.
	RequestedAtLayout = "2006-01-02T15:04"
)

// Actor is the authenticated caller of an engine operation.  A zero
// Actor means no identity; operations then fail ErrUnauthenticated.
type Actor struct {
	ID   uint64
	Role model.Role
}

// Store is the persistence surface the engine runs against.  The
// production implementation is repository.AllocationStore over MySQL.
// Two contracts matter beyond plain CRUD: AssignIfUnassigned (and the
// assignment embedded in AcceptBidAndAssign) must be atomic relative to
// concurrent writers, succeeding for exactly one of them; and
// CreateClaim must reject a second claim by the same agent with
// repository.ErrDuplicateClaim.
type Store interface {
	GetListing(ctx context.Context, id uint64) (*model.Listing, error)
	GetShowing(ctx context.Context, id uint64) (*model.Showing, error)
	GetBid(ctx context.Context, id uint64) (*model.ShowingBid, error)
	CreateShowingWithBid(ctx context.Context, s *model.Showing, b *model.ShowingBid) error
	CreateShowing(ctx context.Context, s *model.Showing) error
	CreateBid(ctx context.Context, b *model.ShowingBid) error
	AcceptBidAndAssign(ctx context.Context, bid *model.ShowingBid) (bool, error)
	RejectBid(ctx context.Context, bidID uint64) error
	CountPendingBids(ctx context.Context, showingID uint64) (int, error)
	CancelIfPending(ctx context.Context, showingID uint64) error
	CreateClaim(ctx context.Context, req *model.ShowingRequest) error
	AssignIfUnassigned(ctx context.Context, showingID, agentID uint64, payoutCents uint32) (bool, error)
	RejectClaim(ctx context.Context, showingID, agentID uint64) error
	MarkLockCodeRevealed(ctx context.Context, showingID uint64) error
	CompleteShowing(ctx context.Context, showingID, agentID uint64, feedback *string, rating *uint8) (bool, error)
}

// Assignment describes a successful allocation, for responses and for
// the showing.assigned event.
type Assignment struct {
	ShowingID   uint64 `json:"showing_id"`
	ListingID   uint64 `json:"listing_id"`
	AgentID     uint64 `json:"agent_id"`
	PayoutCents uint32 `json:"payout_cents"`
	Path        string `json:"path"` // "accepted" or "claimed"
}

// Engine enforces the showing allocation rules.  Now and Loc exist so
// the lock-code time gate can be driven by tests; both default to the
// obvious values.
type Engine struct {
	store Store
	Now   func() time.Time
	Loc   *time.Location
}

// New returns an Engine over the given store.
func New(store Store) *Engine {
	return &Engine{store: store, Now: time.Now, Loc: time.Local}
}

// splitRequestedAt parses a datetime-local string into the stored date
// and time-of-day parts.
func splitRequestedAt(requestedAt string) (date, tod string, err error) {
	t, err := time.Parse(RequestedAtLayout, requestedAt)
	if err != nil {
		return "", "", fmt.Errorf("%w: requested_at must look like %s", ErrValidation, RequestedAtLayout)
	}
	return t.Format(model.DateLayout), t.Format(model.TimeLayout), nil
}

func (e *Engine) requireAgent(actor Actor) error {
	if actor.ID == 0 {
		return ErrUnauthenticated
	}
	if actor.Role != model.RoleAgent {
		return fmt.Errorf("%w: agent role required", ErrForbidden)
	}
	return nil
}

// RequestShowing creates a new seller-approval showing on an active
// listing together with the requesting agent's opening bid.
func (e *Engine) RequestShowing(ctx context.Context, actor Actor, listingID uint64, requestedAt string, bidCents uint32) (*model.Showing, *model.ShowingBid, error) {
	if err := e.requireAgent(actor); err != nil {
		return nil, nil, err
	}
	if bidCents < MinBidCents {
		return nil, nil, fmt.Errorf("%w: bid must be at least $75", ErrValidation)
	}
	listing, err := e.store.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, nil, fmt.Errorf("%w: listing %d", ErrNotFound, listingID)
		}
		return nil, nil, err
	}
	if listing.Status != model.ListingActive {
		return nil, nil, fmt.Errorf("%w: listing is not active", ErrInvalidState)
	}
	date, tod, err := splitRequestedAt(requestedAt)
	if err != nil {
		return nil, nil, err
	}
	mode := model.ClaimSellerApproves
	showing := &model.Showing{
		ListingID:     listingID,
		RequestedDate: date,
		RequestedTime: tod,
		Status:        model.ShowingPending,
		ClaimMode:     &mode,
	}
	bid := &model.ShowingBid{
		AgentID:  actor.ID,
		BidCents: bidCents,
		Status:   model.BidPending,
	}
	if err := e.store.CreateShowingWithBid(ctx, showing, bid); err != nil {
		return nil, nil, err
	}
	return showing, bid, nil
}

// BuyerRequest is the legacy buyer-initiated showing input.  Buyer
// contact fields are written once at creation and never updated.
type BuyerRequest struct {
	ListingID     uint64
	BuyerName     string
	BuyerEmail    string
	BuyerPhone    *string
	RequestedDate string
	RequestedTime string
}

// RequestBuyerShowing creates a legacy buyer-requested showing that
// starts in BIDDING and is open to first-claim by any agent.
func (e *Engine) RequestBuyerShowing(ctx context.Context, in BuyerRequest) (*model.Showing, error) {
	if in.BuyerName == "" || in.BuyerEmail == "" {
		return nil, fmt.Errorf("%w: buyer name and email are required", ErrValidation)
	}
	if _, err := time.Parse(model.DateLayout, in.RequestedDate); err != nil {
		return nil, fmt.Errorf("%w: requested_date must look like %s", ErrValidation, model.DateLayout)
	}
	if _, err := time.Parse(model.TimeLayout, in.RequestedTime); err != nil {
		return nil, fmt.Errorf("%w: requested_time must look like %s", ErrValidation, model.TimeLayout)
	}
	if _, err := e.store.GetListing(ctx, in.ListingID); err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, fmt.Errorf("%w: listing %d", ErrNotFound, in.ListingID)
		}
		return nil, err
	}
	mode := model.ClaimFirstClaim
	showing := &model.Showing{
		ListingID:     in.ListingID,
		BuyerName:     &in.BuyerName,
		BuyerEmail:    &in.BuyerEmail,
		BuyerPhone:    in.BuyerPhone,
		RequestedDate: in.RequestedDate,
		RequestedTime: in.RequestedTime,
		Status:        model.ShowingBidding,
		ClaimMode:     &mode,
	}
	if err := e.store.CreateShowing(ctx, showing); err != nil {
		return nil, err
	}
	return showing, nil
}

// BidOnShowing records an additional competing bid on a showing.  It
// deliberately does not inspect the showing's state: agents may pile
// on bids while the showing remains undecided, and a bid on a decided
// showing is simply never accepted.
func (e *Engine) BidOnShowing(ctx context.Context, actor Actor, showingID uint64, bidCents uint32, message *string) (*model.ShowingBid, error) {
	if err := e.requireAgent(actor); err != nil {
		return nil, err
	}
	bid := &model.ShowingBid{
		ShowingID: showingID,
		AgentID:   actor.ID,
		BidCents:  bidCents,
		Message:   message,
		Status:    model.BidPending,
	}
	if err := e.store.CreateBid(ctx, bid); err != nil {
		return nil, err
	}
	return bid, nil
}

// ownedBid loads a bid and verifies the actor owns the listing behind
// the bid's showing.  This is an ownership check, not a role check.
func (e *Engine) ownedBid(ctx context.Context, actor Actor, bidID uint64) (*model.ShowingBid, *model.Showing, error) {
	if actor.ID == 0 {
		return nil, nil, ErrUnauthenticated
	}
	bid, err := e.store.GetBid(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, nil, fmt.Errorf("%w: bid %d", ErrNotFound, bidID)
		}
		return nil, nil, err
	}
	showing, err := e.store.GetShowing(ctx, bid.ShowingID)
	if err != nil {
		return nil, nil, err
	}
	listing, err := e.store.GetListing(ctx, showing.ListingID)
	if err != nil {
		return nil, nil, err
	}
	if listing.SellerID != actor.ID {
		return nil, nil, fmt.Errorf("%w: you do not own this listing", ErrForbidden)
	}
	return bid, showing, nil
}

// AcceptBid assigns the showing to the bid's agent at the bid amount,
// reveals the lock code, and rejects all sibling bids, atomically.
// Only a bid still pending can be accepted; a rejected bid must not
// resurrect a cancelled showing.  The assignment is conditional on the
// showing still being unassigned and open at write time, so a
// concurrent first-claim can never be overwritten.
func (e *Engine) AcceptBid(ctx context.Context, actor Actor, bidID uint64) (*Assignment, error) {
	bid, showing, err := e.ownedBid(ctx, actor, bidID)
	if err != nil {
		return nil, err
	}
	if bid.Status != model.BidPending {
		return nil, fmt.Errorf("%w: bid is %s", ErrInvalidState, bid.Status)
	}
	assigned, err := e.store.AcceptBidAndAssign(ctx, bid)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, fmt.Errorf("%w: showing is no longer open for assignment", ErrInvalidState)
	}
	return &Assignment{
		ShowingID:   showing.ID,
		ListingID:   showing.ListingID,
		AgentID:     bid.AgentID,
		PayoutCents: bid.BidCents,
		Path:        "accepted",
	}, nil
}

// RejectBid marks the bid rejected and, when no pending bids remain on
// the showing, cancels it.  The bids-exhausted condition is re-derived
// from the store on every rejection, and the cancel itself only lands
// while the showing is still pending.
func (e *Engine) RejectBid(ctx context.Context, actor Actor, bidID uint64) error {
	bid, showing, err := e.ownedBid(ctx, actor, bidID)
	if err != nil {
		return err
	}
	if err := e.store.RejectBid(ctx, bid.ID); err != nil {
		return err
	}
	remaining, err := e.store.CountPendingBids(ctx, showing.ID)
	if err != nil {
		return err
	}
	if remaining == 0 {
		return e.store.CancelIfPending(ctx, showing.ID)
	}
	return nil
}

// ClaimShowing is the first-claim path.  The claim row is recorded
// first, then the conditional assignment runs; when the assignment
// touches zero rows another agent won the race, the claim rolls back to
// rejected and the caller gets ErrAlreadyClaimed.  Exactly one of N
// concurrent callers can succeed because the store's conditional
// update is atomic.
func (e *Engine) ClaimShowing(ctx context.Context, actor Actor, showingID uint64, bidCents uint32, message *string) (*Assignment, error) {
	if err := e.requireAgent(actor); err != nil {
		return nil, err
	}
	if bidCents < MinBidCents {
		return nil, fmt.Errorf("%w: bid must be at least $75", ErrValidation)
	}
	showing, err := e.store.GetShowing(ctx, showingID)
	if err != nil {
		if errors.Is(err, repository.ErrShowingNotFound) {
			return nil, fmt.Errorf("%w: showing %d", ErrNotFound, showingID)
		}
		return nil, err
	}
	if showing.AssignedAgentID != nil {
		return nil, fmt.Errorf("%w: showing is already assigned", ErrInvalidState)
	}
	if showing.Status != model.ShowingPending && showing.Status != model.ShowingBidding {
		return nil, fmt.Errorf("%w: showing is not open", ErrInvalidState)
	}
	if !showing.Claimable() {
		return nil, fmt.Errorf("%w: showing requires seller approval and cannot be claimed", ErrInvalidState)
	}
	claim := &model.ShowingRequest{
		ShowingID: showingID,
		AgentID:   actor.ID,
		BidCents:  bidCents,
		Message:   message,
		Status:    model.RequestClaimed,
	}
	if err := e.store.CreateClaim(ctx, claim); err != nil {
		if errors.Is(err, repository.ErrDuplicateClaim) {
			return nil, fmt.Errorf("%w: you have already claimed this showing", ErrAlreadyClaimed)
		}
		return nil, err
	}
	won, err := e.store.AssignIfUnassigned(ctx, showingID, actor.ID, bidCents)
	if err != nil {
		return nil, err
	}
	if !won {
		if rbErr := e.store.RejectClaim(ctx, showingID, actor.ID); rbErr != nil {
			return nil, rbErr
		}
		return nil, fmt.Errorf("%w: this showing was claimed by someone else", ErrAlreadyClaimed)
	}
	return &Assignment{
		ShowingID:   showingID,
		ListingID:   showing.ListingID,
		AgentID:     actor.ID,
		PayoutCents: bidCents,
		Path:        "claimed",
	}, nil
}

// GetLockCode discloses the listing's lock code to the assigned agent,
// but only within LockCodeLead of the showing's start.  The reveal flag
// is monotonic: a successful call sets it and repeats are idempotent;
// a TooEarly call reveals nothing and flips nothing.
func (e *Engine) GetLockCode(ctx context.Context, actor Actor, showingID uint64) (string, error) {
	if actor.ID == 0 {
		return "", ErrUnauthenticated
	}
	showing, err := e.store.GetShowing(ctx, showingID)
	if err != nil {
		if errors.Is(err, repository.ErrShowingNotFound) {
			return "", fmt.Errorf("%w: showing %d", ErrNotFound, showingID)
		}
		return "", err
	}
	if showing.AssignedAgentID == nil || *showing.AssignedAgentID != actor.ID || showing.Status != model.ShowingAssigned {
		return "", fmt.Errorf("%w: you are not the assigned agent", ErrForbidden)
	}
	startsAt := showing.StartsAt(e.Loc)
	if startsAt.IsZero() {
		return "", fmt.Errorf("%w: showing has no valid schedule", ErrValidation)
	}
	if startsAt.Sub(e.Now()) > LockCodeLead {
		return "", fmt.Errorf("%w: lock code available 1 hour before the showing", ErrTooEarly)
	}
	if err := e.store.MarkLockCodeRevealed(ctx, showingID); err != nil {
		return "", err
	}
	listing, err := e.store.GetListing(ctx, showing.ListingID)
	if err != nil {
		return "", err
	}
	return listing.LockCode, nil
}

// CompleteShowing moves an assigned showing to completed.  Only the
// assigned agent may complete it; feedback and rating are stored
// verbatim.
func (e *Engine) CompleteShowing(ctx context.Context, actor Actor, showingID uint64, feedback *string, rating *uint8) error {
	if actor.ID == 0 {
		return ErrUnauthenticated
	}
	showing, err := e.store.GetShowing(ctx, showingID)
	if err != nil {
		if errors.Is(err, repository.ErrShowingNotFound) {
			return fmt.Errorf("%w: showing %d", ErrNotFound, showingID)
		}
		return err
	}
	if showing.AssignedAgentID == nil || *showing.AssignedAgentID != actor.ID {
		return fmt.Errorf("%w: you are not the assigned agent", ErrForbidden)
	}
	if showing.Status != model.ShowingAssigned {
		return fmt.Errorf("%w: showing is not assigned", ErrInvalidState)
	}
	done, err := e.store.CompleteShowing(ctx, showingID, actor.ID, feedback, rating)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("%w: showing changed concurrently", ErrInvalidState)
	}
	return nil
}
