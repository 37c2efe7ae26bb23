package allocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unfoldmono/realza/internal/model"
)

var (
	seller = Actor{ID: 1, Role: model.RoleSeller}
	agentA = Actor{ID: 10, Role: model.RoleAgent}
	agentB = Actor{ID: 11, Role: model.RoleAgent}
	agentC = Actor{ID: 12, Role: model.RoleAgent}
)

func newTestEngine() (*Engine, *memStore) {
	store := newMemStore()
	e := New(store)
	e.Loc = time.UTC
	return e, store
}

func activeListing(store *memStore) *model.Listing {
	return store.addListing(model.Listing{
		SellerID: seller.ID,
		Address:  "12 Elm St",
		City:     "Springfield",
		State:    "IL",
		Zip:      "62704",
		Status:   model.ListingActive,
		LockCode: "4417",
	})
}

func sellerApprovesShowing(store *memStore, listingID uint64) *model.Showing {
	mode := model.ClaimSellerApproves
	return store.addShowing(model.Showing{
		ListingID:     listingID,
		RequestedDate: "2030-06-01",
		RequestedTime: "10:00",
		Status:        model.ShowingPending,
		ClaimMode:     &mode,
	})
}

func biddingShowing(store *memStore, listingID uint64) *model.Showing {
	mode := model.ClaimFirstClaim
	return store.addShowing(model.Showing{
		ListingID:     listingID,
		RequestedDate: "2030-06-01",
		RequestedTime: "10:00",
		Status:        model.ShowingBidding,
		ClaimMode:     &mode,
	})
}

func TestRequestShowingValidation(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	draft := store.addListing(model.Listing{SellerID: seller.ID, Status: model.ListingDraft})

	tests := []struct {
		name        string
		actor       Actor
		listingID   uint64
		requestedAt string
		bidCents    uint32
		wantErr     error
	}{
		{"no actor", Actor{}, listing.ID, "2030-06-01T10:00", 10000, ErrUnauthenticated},
		{"seller cannot request", seller, listing.ID, "2030-06-01T10:00", 10000, ErrForbidden},
		{"bid below minimum", agentA, listing.ID, "2030-06-01T10:00", 7499, ErrValidation},
		{"unknown listing", agentA, 9999, "2030-06-01T10:00", 10000, ErrNotFound},
		{"inactive listing", agentA, draft.ID, "2030-06-01T10:00", 10000, ErrInvalidState},
		{"malformed datetime", agentA, listing.ID, "next tuesday", 10000, ErrValidation},
		{"date without time", agentA, listing.ID, "2030-06-01", 10000, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.RequestShowing(ctx, tt.actor, tt.listingID, tt.requestedAt, tt.bidCents)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRequestShowingMinimumBidBoundary(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)

	_, _, err := e.RequestShowing(ctx, agentA, listing.ID, "2030-06-01T10:00", MinBidCents-1)
	require.ErrorIs(t, err, ErrValidation)

	showing, bid, err := e.RequestShowing(ctx, agentA, listing.ID, "2030-06-01T10:00", MinBidCents)
	require.NoError(t, err)
	assert.Equal(t, model.ShowingPending, showing.Status)
	require.NotNil(t, showing.ClaimMode)
	assert.Equal(t, model.ClaimSellerApproves, *showing.ClaimMode)
	assert.False(t, showing.LockCodeRevealed)
	assert.Equal(t, "2030-06-01", showing.RequestedDate)
	assert.Equal(t, "10:00", showing.RequestedTime)
	assert.Equal(t, model.BidPending, bid.Status)
	assert.Equal(t, agentA.ID, bid.AgentID)
	assert.Equal(t, MinBidCents, bid.BidCents)
	assert.Equal(t, showing.ID, bid.ShowingID)
}

func TestAcceptBidAssignsAndRejectsSiblings(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)

	showing, bidA, err := e.RequestShowing(ctx, agentA, listing.ID, "2030-06-01T10:00", 10000)
	require.NoError(t, err)
	bidB, err := e.BidOnShowing(ctx, agentB, showing.ID, 9000, nil)
	require.NoError(t, err)

	asg, err := e.AcceptBid(ctx, seller, bidA.ID)
	require.NoError(t, err)
	assert.Equal(t, "accepted", asg.Path)
	assert.Equal(t, agentA.ID, asg.AgentID)
	assert.Equal(t, uint32(10000), asg.PayoutCents)

	got := store.showing(showing.ID)
	require.NotNil(t, got.AssignedAgentID)
	assert.Equal(t, agentA.ID, *got.AssignedAgentID)
	assert.Equal(t, model.ShowingAssigned, got.Status)
	require.NotNil(t, got.PayoutCents)
	assert.Equal(t, uint32(10000), *got.PayoutCents)
	// seller approval reveals the code immediately, no time gate
	assert.True(t, got.LockCodeRevealed)

	assert.Equal(t, model.BidAccepted, store.bid(bidA.ID).Status)
	assert.Equal(t, model.BidRejected, store.bid(bidB.ID).Status)
	n, err := store.CountPendingBids(ctx, showing.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAcceptBidOwnershipAndExistence(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	_, bid, err := e.RequestShowing(ctx, agentA, listing.ID, "2030-06-01T10:00", 10000)
	require.NoError(t, err)

	_, err = e.AcceptBid(ctx, Actor{}, bid.ID)
	require.ErrorIs(t, err, ErrUnauthenticated)

	otherSeller := Actor{ID: 2, Role: model.RoleSeller}
	_, err = e.AcceptBid(ctx, otherSeller, bid.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = e.AcceptBid(ctx, seller, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAcceptBidLosesToConcurrentClaim(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing := biddingShowing(store, listing.ID)

	bid, err := e.BidOnShowing(ctx, agentA, showing.ID, 10000, nil)
	require.NoError(t, err)

	// agent B claims before the seller accepts agent A's bid
	_, err = e.ClaimShowing(ctx, agentB, showing.ID, 9000, nil)
	require.NoError(t, err)

	_, err = e.AcceptBid(ctx, seller, bid.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	got := store.showing(showing.ID)
	require.NotNil(t, got.AssignedAgentID)
	assert.Equal(t, agentB.ID, *got.AssignedAgentID)
	// the losing accept must not have touched the bid
	assert.Equal(t, model.BidPending, store.bid(bid.ID).Status)
}

func TestRejectBidKeepsShowingWhileBidsRemain(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing, bidA, err := e.RequestShowing(ctx, agentA, listing.ID, "2030-06-01T10:00", 10000)
	require.NoError(t, err)
	bidB, err := e.BidOnShowing(ctx, agentB, showing.ID, 9500, nil)
	require.NoError(t, err)

	require.NoError(t, e.RejectBid(ctx, seller, bidA.ID))
	assert.Equal(t, model.ShowingPending, store.showing(showing.ID).Status)

	require.NoError(t, e.RejectBid(ctx, seller, bidB.ID))
	assert.Equal(t, model.ShowingCancelled, store.showing(showing.ID).Status)
}

func TestAcceptBidCannotResurrectCancelledShowing(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)

	showing, bid, err := e.RequestShowing(ctx, agentA, listing.ID, "2030-06-01T10:00", 10000)
	require.NoError(t, err)

	// rejecting the only bid cancels the showing, which is terminal
	require.NoError(t, e.RejectBid(ctx, seller, bid.ID))
	require.Equal(t, model.ShowingCancelled, store.showing(showing.ID).Status)

	_, err = e.AcceptBid(ctx, seller, bid.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	got := store.showing(showing.ID)
	assert.Equal(t, model.ShowingCancelled, got.Status)
	assert.Nil(t, got.AssignedAgentID)
	assert.Equal(t, model.BidRejected, store.bid(bid.ID).Status)
}

func TestAcceptBidOnCancelledShowingWithPendingBid(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	mode := model.ClaimSellerApproves
	showing := store.addShowing(model.Showing{
		ListingID:     listing.ID,
		RequestedDate: "2030-06-01",
		RequestedTime: "10:00",
		Status:        model.ShowingCancelled,
		ClaimMode:     &mode,
	})

	// a bid left pending on a cancelled showing still must not assign it
	bid, err := e.BidOnShowing(ctx, agentA, showing.ID, 10000, nil)
	require.NoError(t, err)

	_, err = e.AcceptBid(ctx, seller, bid.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	got := store.showing(showing.ID)
	assert.Equal(t, model.ShowingCancelled, got.Status)
	assert.Nil(t, got.AssignedAgentID)
}

func TestRejectBidDoesNotCancelAssignedShowing(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing := biddingShowing(store, listing.ID)

	bid, err := e.BidOnShowing(ctx, agentA, showing.ID, 10000, nil)
	require.NoError(t, err)
	_, err = e.ClaimShowing(ctx, agentB, showing.ID, 9000, nil)
	require.NoError(t, err)

	// rejecting the stale bid empties the pending set, but the showing
	// is assigned and must stay assigned
	require.NoError(t, e.RejectBid(ctx, seller, bid.ID))
	assert.Equal(t, model.ShowingAssigned, store.showing(showing.ID).Status)
}

func TestClaimShowingRules(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	approval := sellerApprovesShowing(store, listing.ID)
	open := biddingShowing(store, listing.ID)

	tests := []struct {
		name      string
		actor     Actor
		showingID uint64
		bidCents  uint32
		wantErr   error
	}{
		{"no actor", Actor{}, open.ID, 10000, ErrUnauthenticated},
		{"seller cannot claim", seller, open.ID, 10000, ErrForbidden},
		{"bid below minimum", agentA, open.ID, 7499, ErrValidation},
		{"unknown showing", agentA, 9999, 10000, ErrNotFound},
		{"seller approval path is never claimable", agentA, approval.ID, 50000, ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.ClaimShowing(ctx, tt.actor, tt.showingID, tt.bidCents, nil)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClaimShowingFirstClaimPendingIsClaimable(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	mode := model.ClaimFirstClaim
	showing := store.addShowing(model.Showing{
		ListingID:     listing.ID,
		RequestedDate: "2030-06-01",
		RequestedTime: "10:00",
		Status:        model.ShowingPending,
		ClaimMode:     &mode,
	})

	asg, err := e.ClaimShowing(ctx, agentA, showing.ID, 8000, nil)
	require.NoError(t, err)
	assert.Equal(t, "claimed", asg.Path)
	got := store.showing(showing.ID)
	assert.Equal(t, model.ShowingAssigned, got.Status)
	assert.True(t, got.LockCodeRevealed)
	assert.Equal(t, model.RequestClaimed, store.claimStatus(showing.ID, agentA.ID))
}

func TestClaimShowingAlreadyAssigned(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing := biddingShowing(store, listing.ID)

	_, err := e.ClaimShowing(ctx, agentA, showing.ID, 8000, nil)
	require.NoError(t, err)

	_, err = e.ClaimShowing(ctx, agentB, showing.ID, 9000, nil)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestClaimShowingDuplicateBySameAgent(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing := biddingShowing(store, listing.ID)

	// write the claim row directly so the showing itself stays open
	require.NoError(t, store.CreateClaim(ctx, &model.ShowingRequest{
		ShowingID: showing.ID, AgentID: agentA.ID, BidCents: 8000, Status: model.RequestClaimed,
	}))

	_, err := e.ClaimShowing(ctx, agentA, showing.ID, 8000, nil)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestClaimShowingConcurrentOnlyOneWins(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing := biddingShowing(store, listing.ID)

	const agents = 16
	var wg sync.WaitGroup
	results := make([]error, agents)
	winners := make([]*Assignment, agents)
	for i := 0; i < agents; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actor := Actor{ID: uint64(100 + i), Role: model.RoleAgent}
			asg, err := e.ClaimShowing(ctx, actor, showing.ID, 8000+uint32(i), nil)
			results[i] = err
			winners[i] = asg
		}(i)
	}
	wg.Wait()

	won := 0
	var winner *Assignment
	for i := 0; i < agents; i++ {
		if results[i] == nil {
			won++
			winner = winners[i]
		} else {
			require.ErrorIs(t, results[i], ErrAlreadyClaimed)
		}
	}
	require.Equal(t, 1, won, "exactly one concurrent claim must succeed")

	got := store.showing(showing.ID)
	require.NotNil(t, got.AssignedAgentID)
	assert.Equal(t, winner.AgentID, *got.AssignedAgentID)
	assert.Equal(t, winner.PayoutCents, *got.PayoutCents)
	assert.Equal(t, model.ShowingAssigned, got.Status)

	// every loser's claim row ends rejected, the winner's stays claimed
	for i := 0; i < agents; i++ {
		agentID := uint64(100 + i)
		st := store.claimStatus(showing.ID, agentID)
		if agentID == winner.AgentID {
			assert.Equal(t, model.RequestClaimed, st)
		} else {
			assert.Equal(t, model.RequestRejected, st)
		}
	}
}

func TestLegacyBuyerShowingRace(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing, err := e.RequestBuyerShowing(ctx, BuyerRequest{
		ListingID:     listing.ID,
		BuyerName:     "Pat Doe",
		BuyerEmail:    "pat@example.com",
		RequestedDate: "2030-06-01",
		RequestedTime: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ShowingBidding, showing.Status)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	actors := []Actor{agentB, agentC}
	amounts := []uint32{8000, 9000}
	for i := range actors {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.ClaimShowing(ctx, actors[i], showing.ID, amounts[i], nil)
		}(i)
	}
	wg.Wait()

	got := store.showing(showing.ID)
	require.NotNil(t, got.AssignedAgentID)
	for i := range actors {
		if errs[i] != nil {
			require.ErrorIs(t, errs[i], ErrAlreadyClaimed)
			assert.Equal(t, model.RequestRejected, store.claimStatus(showing.ID, actors[i].ID))
		} else {
			assert.Equal(t, actors[i].ID, *got.AssignedAgentID)
		}
	}
}

func TestRequestBuyerShowingValidation(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)

	_, err := e.RequestBuyerShowing(ctx, BuyerRequest{ListingID: listing.ID, BuyerEmail: "x@y.z", RequestedDate: "2030-06-01", RequestedTime: "10:00"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = e.RequestBuyerShowing(ctx, BuyerRequest{ListingID: listing.ID, BuyerName: "Pat", BuyerEmail: "x@y.z", RequestedDate: "06/01/2030", RequestedTime: "10:00"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = e.RequestBuyerShowing(ctx, BuyerRequest{ListingID: 9999, BuyerName: "Pat", BuyerEmail: "x@y.z", RequestedDate: "2030-06-01", RequestedTime: "10:00"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetLockCodeTimeGate(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	agentID := agentA.ID
	payout := uint32(10000)
	showing := store.addShowing(model.Showing{
		ListingID:       listing.ID,
		RequestedDate:   "2030-06-01",
		RequestedTime:   "10:00",
		Status:          model.ShowingAssigned,
		AssignedAgentID: &agentID,
		PayoutCents:     &payout,
	})

	// two hours out: gated, and the reveal flag must not flip
	e.Now = func() time.Time { return time.Date(2030, 6, 1, 8, 0, 0, 0, time.UTC) }
	_, err := e.GetLockCode(ctx, agentA, showing.ID)
	require.ErrorIs(t, err, ErrTooEarly)
	assert.False(t, store.showing(showing.ID).LockCodeRevealed)

	// 30 minutes out: revealed
	e.Now = func() time.Time { return time.Date(2030, 6, 1, 9, 30, 0, 0, time.UTC) }
	code, err := e.GetLockCode(ctx, agentA, showing.ID)
	require.NoError(t, err)
	assert.Equal(t, "4417", code)
	assert.True(t, store.showing(showing.ID).LockCodeRevealed)

	// idempotent on repeat
	code, err = e.GetLockCode(ctx, agentA, showing.ID)
	require.NoError(t, err)
	assert.Equal(t, "4417", code)
	assert.True(t, store.showing(showing.ID).LockCodeRevealed)
}

func TestGetLockCodeAuthorization(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	agentID := agentA.ID
	assigned := store.addShowing(model.Showing{
		ListingID:       listing.ID,
		RequestedDate:   "2030-06-01",
		RequestedTime:   "10:00",
		Status:          model.ShowingAssigned,
		AssignedAgentID: &agentID,
	})
	unassigned := sellerApprovesShowing(store, listing.ID)

	_, err := e.GetLockCode(ctx, Actor{}, assigned.ID)
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = e.GetLockCode(ctx, agentB, assigned.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = e.GetLockCode(ctx, agentA, unassigned.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = e.GetLockCode(ctx, agentA, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteShowing(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing := biddingShowing(store, listing.ID)
	_, err := e.ClaimShowing(ctx, agentA, showing.ID, 8000, nil)
	require.NoError(t, err)

	err = e.CompleteShowing(ctx, agentB, showing.ID, nil, nil)
	require.ErrorIs(t, err, ErrForbidden)

	feedback := "buyers loved the kitchen"
	rating := uint8(5)
	require.NoError(t, e.CompleteShowing(ctx, agentA, showing.ID, &feedback, &rating))

	got := store.showing(showing.ID)
	assert.Equal(t, model.ShowingCompleted, got.Status)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, feedback, *got.Feedback)
	require.NotNil(t, got.Rating)
	assert.Equal(t, rating, *got.Rating)

	// terminal: completing twice is an invalid transition
	err = e.CompleteShowing(ctx, agentA, showing.ID, nil, nil)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestBidOnShowingSkipsStateValidation(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	listing := activeListing(store)
	showing := biddingShowing(store, listing.ID)
	_, err := e.ClaimShowing(ctx, agentA, showing.ID, 8000, nil)
	require.NoError(t, err)

	// bids on a decided showing are allowed to land; they just never win
	bid, err := e.BidOnShowing(ctx, agentB, showing.ID, 9000, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BidPending, bid.Status)

	_, err = e.BidOnShowing(ctx, seller, showing.ID, 9000, nil)
	require.ErrorIs(t, err, ErrForbidden)
}
