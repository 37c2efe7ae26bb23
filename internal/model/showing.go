package model

import "time"

// ShowingStatus enumerates the states of the showing state machine.
// A showing starts as PENDING (agent-requested, seller approval flow)
// or BIDDING (legacy buyer-requested, open to claims).  It reaches
// ASSIGNED through exactly one allocation path and never leaves
// ASSIGNED except to COMPLETED.  COMPLETED and CANCELLED are terminal.
type ShowingStatus string

const (
    ShowingPending   ShowingStatus = "pending"
    ShowingBidding   ShowingStatus = "bidding"
    ShowingAssigned  ShowingStatus = "assigned"
    ShowingCompleted ShowingStatus = "completed"
    ShowingCancelled ShowingStatus = "cancelled"
)

// Valid reports whether s is a known showing status.
func (s ShowingStatus) Valid() bool {
    switch s {
    case ShowingPending, ShowingBidding, ShowingAssigned, ShowingCompleted, ShowingCancelled:
        return true
    }
    return false
}

// ClaimMode is the allocation strategy chosen when a showing is
// created.  Under ClaimSellerApproves a seller must accept one of the
// competing bids; under ClaimFirstClaim the first agent to win the
// conditional assignment gets the showing.
type ClaimMode string

const (
    ClaimSellerApproves ClaimMode = "seller_approves"
    ClaimFirstClaim     ClaimMode = "first_claim"
)

// DateLayout and TimeLayout are the storage layouts for a showing's
// requested calendar date and local time-of-day.
const (
    DateLayout = "2006-01-02"
    TimeLayout = "15:04"
)

// Showing is the central entity of the allocation engine: a scheduled
// appointment for an agent to open a listing for a buyer.
//
// AssignedAgentID is set exactly once for the lifetime of a showing;
// the repository enforces this with a conditional update that only
// succeeds while the column is still NULL.  LockCodeRevealed never
// reverts to false once set.
//
// Buyer contact fields are present only on legacy buyer-initiated
// showings and are immutable once set.
type Showing struct {
    ID               uint64        // showings.id
    ListingID        uint64        // showings.listing_id
    BuyerName        *string       // showings.buyer_name (nullable, legacy flow)
    BuyerEmail       *string       // showings.buyer_email (nullable, legacy flow)
    BuyerPhone       *string       // showings.buyer_phone (nullable, legacy flow)
    RequestedDate    string        // showings.requested_date ("2006-01-02")
    RequestedTime    string        // showings.requested_time ("15:04")
    Status           ShowingStatus // showings.status
    ClaimMode        *ClaimMode    // showings.claim_mode (nullable on old rows)
    AssignedAgentID  *uint64       // showings.assigned_agent_id (nullable; set at most once)
    PayoutCents      *uint32       // showings.payout_cents (set on assignment)
    LockCodeRevealed bool          // showings.lock_code_revealed (monotonic)
    Feedback         *string       // showings.feedback (set on completion)
    Rating           *uint8        // showings.rating (set on completion)
    CreatedAt        time.Time     // showings.created_at
    UpdatedAt        time.Time     // showings.updated_at
}

// Claimable reports whether the showing may be taken through the
// first-claim path.  Legacy buyer showings are open to claims by virtue
// of their BIDDING status; new-flow showings only when created with
// ClaimFirstClaim.  A PENDING seller_approves showing is never
// claimable and must go through seller approval.
func (s *Showing) Claimable() bool {
    if s.Status == ShowingBidding {
        return true
    }
    return s.ClaimMode != nil && *s.ClaimMode == ClaimFirstClaim
}

// StartsAt combines the requested date and time-of-day into a single
// timestamp in the given location.  It returns the zero time when
// either component does not parse.
func (s *Showing) StartsAt(loc *time.Location) time.Time {
    t, err := time.ParseInLocation(DateLayout+"T"+TimeLayout, s.RequestedDate+"T"+s.RequestedTime, loc)
    if err != nil {
        return time.Time{}
    }
    return t
}
