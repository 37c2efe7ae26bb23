package repository

import (
	"context"
	"database/sql"

	"github.com/unfoldmono/realza/internal/model"
)

// AllocationStore composes the per-table repositories into the store
// surface the allocation engine needs, owning the transactions that
// span more than one table.  Reads delegate straight through; the two
// multi-statement writes (create-showing-with-bid and accept-and-
// assign) run inside a single transaction so callers never observe a
// partially applied allocation.
type AllocationStore struct {
	db       *sql.DB
	Showings *ShowingRepo
	Bids     *ShowingBidRepo
	Requests *ShowingRequestRepo
	Listings *ListingRepo
}

// NewAllocationStore wires an AllocationStore over one database handle.
func NewAllocationStore(db *sql.DB) *AllocationStore {
	return &AllocationStore{
		db:       db,
		Showings: NewShowingRepo(db),
		Bids:     NewShowingBidRepo(db),
		Requests: NewShowingRequestRepo(db),
		Listings: NewListingRepo(db),
	}
}

func (s *AllocationStore) GetListing(ctx context.Context, id uint64) (*model.Listing, error) {
	return s.Listings.GetByID(ctx, id)
}

func (s *AllocationStore) GetShowing(ctx context.Context, id uint64) (*model.Showing, error) {
	return s.Showings.GetByID(ctx, id)
}

func (s *AllocationStore) GetBid(ctx context.Context, id uint64) (*model.ShowingBid, error) {
	return s.Bids.GetByID(ctx, id)
}

// CreateShowingWithBid inserts a showing and the requesting agent's
// initial bid atomically.
func (s *AllocationStore) CreateShowingWithBid(ctx context.Context, sh *model.Showing, b *model.ShowingBid) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := s.Showings.CreateTx(ctx, tx, sh); err != nil {
		return err
	}
	b.ShowingID = sh.ID
	if err := s.Bids.CreateTx(ctx, tx, b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *AllocationStore) CreateShowing(ctx context.Context, sh *model.Showing) error {
	return s.Showings.Create(ctx, sh)
}

func (s *AllocationStore) CreateBid(ctx context.Context, b *model.ShowingBid) error {
	return s.Bids.Create(ctx, b)
}

// AcceptBidAndAssign performs the whole accept sequence in one
// transaction: conditionally assign the showing to the bid's agent,
// mark the bid accepted, and reject every sibling still pending.  It
// reports false without committing anything when the showing was
// already assigned, which closes the race between a seller approval
// and a concurrent first-claim.
func (s *AllocationStore) AcceptBidAndAssign(ctx context.Context, bid *model.ShowingBid) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	assigned, err := s.Showings.AssignIfUnassignedTx(ctx, tx, bid.ShowingID, bid.AgentID, bid.BidCents)
	if err != nil {
		return false, err
	}
	if !assigned {
		return false, nil
	}
	if err := s.Bids.AcceptTx(ctx, tx, bid.ID); err != nil {
		return false, err
	}
	if err := s.Bids.RejectSiblingsTx(ctx, tx, bid.ShowingID, bid.ID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

func (s *AllocationStore) RejectBid(ctx context.Context, bidID uint64) error {
	return s.Bids.Reject(ctx, bidID)
}

func (s *AllocationStore) CountPendingBids(ctx context.Context, showingID uint64) (int, error) {
	return s.Bids.CountPending(ctx, showingID)
}

func (s *AllocationStore) CancelIfPending(ctx context.Context, showingID uint64) error {
	return s.Showings.CancelIfPending(ctx, showingID)
}

func (s *AllocationStore) CreateClaim(ctx context.Context, req *model.ShowingRequest) error {
	return s.Requests.Create(ctx, req)
}

func (s *AllocationStore) AssignIfUnassigned(ctx context.Context, showingID, agentID uint64, payoutCents uint32) (bool, error) {
	return s.Showings.AssignIfUnassigned(ctx, showingID, agentID, payoutCents)
}

func (s *AllocationStore) RejectClaim(ctx context.Context, showingID, agentID uint64) error {
	return s.Requests.MarkRejected(ctx, showingID, agentID)
}

func (s *AllocationStore) MarkLockCodeRevealed(ctx context.Context, showingID uint64) error {
	return s.Showings.MarkLockCodeRevealed(ctx, showingID)
}

func (s *AllocationStore) CompleteShowing(ctx context.Context, showingID, agentID uint64, feedback *string, rating *uint8) (bool, error) {
	return s.Showings.Complete(ctx, showingID, agentID, feedback, rating)
}
