// Package queue defines message payloads exchanged over the message broker.
package queue

// ShowingAssignedEvent is published when a showing gets its agent,
// whether by seller approval or by first-claim.  It carries enough for
// downstream consumers to notify and log without querying MySQL.
type ShowingAssignedEvent struct {
	ShowingID     uint64 `json:"showing_id"`
	ListingID     uint64 `json:"listing_id"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	AgentID       uint64 `json:"agent_id"`
	PayoutCents   uint32 `json:"payout_cents"`
	Path          string `json:"path"` // "accepted" or "claimed"
	RequestedDate string `json:"requested_date"`
	RequestedTime string `json:"requested_time"`
	AssignedAt    string `json:"assigned_at"`
}
