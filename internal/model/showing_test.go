package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShowingClaimable(t *testing.T) {
	approves := ClaimSellerApproves
	first := ClaimFirstClaim

	tests := []struct {
		name string
		s    Showing
		want bool
	}{
		{"bidding status is claimable regardless of mode", Showing{Status: ShowingBidding}, true},
		{"bidding with seller_approves mode still claimable", Showing{Status: ShowingBidding, ClaimMode: &approves}, true},
		{"pending first_claim is claimable", Showing{Status: ShowingPending, ClaimMode: &first}, true},
		{"pending seller_approves is not", Showing{Status: ShowingPending, ClaimMode: &approves}, false},
		{"pending with no mode is not", Showing{Status: ShowingPending}, false},
		{"assigned first_claim still reports claim mode", Showing{Status: ShowingAssigned, ClaimMode: &first}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Claimable())
		})
	}
}

func TestShowingStartsAt(t *testing.T) {
	s := Showing{RequestedDate: "2030-06-01", RequestedTime: "09:30"}
	got := s.StartsAt(time.UTC)
	assert.Equal(t, time.Date(2030, 6, 1, 9, 30, 0, 0, time.UTC), got)

	bad := Showing{RequestedDate: "June 1st", RequestedTime: "morning"}
	assert.True(t, bad.StartsAt(time.UTC).IsZero())
}

func TestStatusValidity(t *testing.T) {
	assert.True(t, ShowingPending.Valid())
	assert.True(t, ShowingCancelled.Valid())
	assert.False(t, ShowingStatus("open").Valid())

	assert.True(t, ListingActive.Valid())
	assert.False(t, ListingStatus("live").Valid())

	assert.True(t, RoleAgent.Valid())
	assert.False(t, Role("BUYER").Valid())
}
