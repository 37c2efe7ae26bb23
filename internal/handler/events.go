package handler

import (
	"context"
	"log"
	"time"

	"github.com/unfoldmono/realza/internal/allocation"
	"github.com/unfoldmono/realza/internal/queue"
	"github.com/unfoldmono/realza/internal/repository"
	queue_publisher "github.com/unfoldmono/realza/internal/service"
)

// publishAssigned emits a showing.assigned event for a fresh
// assignment.  Runs in its own goroutine with its own deadline so a
// slow broker cannot hold the HTTP response, and failures are logged
// rather than surfaced: the assignment is already durable in MySQL.
func publishAssigned(listings *repository.ListingRepo, showings *repository.ShowingRepo, asg *allocation.Assignment) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ev := queue.ShowingAssignedEvent{
			ShowingID:   asg.ShowingID,
			ListingID:   asg.ListingID,
			AgentID:     asg.AgentID,
			PayoutCents: asg.PayoutCents,
			Path:        asg.Path,
			AssignedAt:  time.Now().UTC().Format(time.RFC3339),
		}
		if l, err := listings.GetByID(ctx, asg.ListingID); err == nil {
			ev.Address = l.Address
			ev.City = l.City
			ev.State = l.State
		}
		if s, err := showings.GetByID(ctx, asg.ShowingID); err == nil {
			ev.RequestedDate = s.RequestedDate
			ev.RequestedTime = s.RequestedTime
		}
		if err := queue_publisher.PublishShowingAssigned(ctx, ev); err != nil {
			log.Printf("publish showing.assigned failed for showing %d: %v", asg.ShowingID, err)
		}
	}()
}
