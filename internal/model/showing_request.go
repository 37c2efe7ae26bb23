package model

import "time"

// RequestStatus enumerates the states of a first-claim attempt.  The
// row is written as CLAIMED before the conditional assignment runs; a
// claim that loses the race is rolled back to REJECTED.  At most one
// request per showing stays CLAIMED.
type RequestStatus string

const (
    RequestPending   RequestStatus = "pending"
    RequestClaimed   RequestStatus = "claimed"
    RequestWithdrawn RequestStatus = "withdrawn"
    RequestRejected  RequestStatus = "rejected"
)

// ShowingRequest records an agent's claim attempt on a claimable
// showing.  A uniqueness constraint on (showing_id, agent_id) prevents
// the same agent from claiming twice; the conditional update on the
// showing row is the true arbiter of first-wins under concurrency.
type ShowingRequest struct {
    ID        uint64        // showing_requests.id
    ShowingID uint64        // showing_requests.showing_id
    AgentID   uint64        // showing_requests.agent_id
    BidCents  uint32        // showing_requests.bid_cents
    Message   *string       // showing_requests.message (nullable)
    Status    RequestStatus // showing_requests.status
    CreatedAt time.Time     // showing_requests.created_at
    UpdatedAt time.Time     // showing_requests.updated_at
}
