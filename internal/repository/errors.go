// Package repository contains the data access layer.  This file defines
// sentinel errors shared across repositories so that higher layers can
// distinguish failure scenarios without string matching.  Handlers and
// the allocation engine translate these into their own error taxonomy.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by someone else.  Handlers translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state.  Handlers translate this into 409.
var ErrConflict = errors.New("conflict")

// ErrListingNotFound indicates the referenced listing does not exist.
var ErrListingNotFound = errors.New("listing not found")

// ErrShowingNotFound indicates the referenced showing does not exist.
var ErrShowingNotFound = errors.New("showing not found")

// ErrBidNotFound indicates the referenced bid does not exist.
var ErrBidNotFound = errors.New("bid not found")

// ErrDuplicateClaim indicates the agent already has a claim row for the
// showing; the (showing_id, agent_id) unique key rejected the insert.
var ErrDuplicateClaim = errors.New("duplicate claim")
