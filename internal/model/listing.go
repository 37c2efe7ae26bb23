package model

import "time"

// ListingStatus enumerates the lifecycle states of a listing.  Only
// ACTIVE listings accept new showing requests.
type ListingStatus string

const (
    ListingDraft     ListingStatus = "draft"
    ListingPending   ListingStatus = "pending"
    ListingActive    ListingStatus = "active"
    ListingSold      ListingStatus = "sold"
    ListingCancelled ListingStatus = "cancelled"
)

// Valid reports whether s is a known listing status.
func (s ListingStatus) Valid() bool {
    switch s {
    case ListingDraft, ListingPending, ListingActive, ListingSold, ListingCancelled:
        return true
    }
    return false
}

// Listing represents a property offered on the marketplace.  The lock
// code is the shared secret enabling physical entry; it must never be
// included in public responses and is disclosed only through the
// allocation engine's lock-code operation.
//
// Fields:
//  ID         – primary key identifier.
//  SellerID   – user who owns the listing.
//  Address    – street address of the property.
//  City       – city part of the address.
//  State      – state part of the address.
//  Zip        – postal code.
//  PriceCents – asking price in cents.
//  Status     – lifecycle state (draft/pending/active/sold/cancelled).
//  LockCode   – lockbox code for agent entry (secret).
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Listing struct {
    ID         uint64        // listings.id
    SellerID   uint64        // listings.seller_id
    Address    string        // listings.address
    City       string        // listings.city
    State      string        // listings.state
    Zip        string        // listings.zip
    PriceCents uint64        // listings.price_cents
    Status     ListingStatus // listings.status
    LockCode   string        // listings.lock_code (secret)
    CreatedAt  time.Time     // listings.created_at
    UpdatedAt  time.Time     // listings.updated_at
}
