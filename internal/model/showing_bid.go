package model

import "time"

// BidStatus enumerates the states of a bid under the seller-approval
// path.  At most one bid per showing ever reaches ACCEPTED; accepting
// one forces every sibling bid to REJECTED.
type BidStatus string

const (
    BidPending  BidStatus = "pending"
    BidAccepted BidStatus = "accepted"
    BidRejected BidStatus = "rejected"
)

// ShowingBid is one agent's offer to conduct a showing at a stated
// price, awaiting the seller's decision.
type ShowingBid struct {
    ID        uint64    // showing_bids.id
    ShowingID uint64    // showing_bids.showing_id
    AgentID   uint64    // showing_bids.agent_id
    BidCents  uint32    // showing_bids.bid_cents
    Message   *string   // showing_bids.message (nullable)
    Status    BidStatus // showing_bids.status
    CreatedAt time.Time // showing_bids.created_at
    UpdatedAt time.Time // showing_bids.updated_at
}
