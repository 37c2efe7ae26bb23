// Package allocation implements the showing allocation engine: the
// state machine that moves a showing from requested to assigned to
// completed, enforcing that at most one agent ever holds a showing and
// that the listing's lock code is disclosed only to that agent.
package allocation

import "errors"

// The engine reports expected business failures as one of these
// sentinel kinds, wrapped with a human-readable message.  Callers match
// with errors.Is and render the kind; anything outside this set is an
// unexpected fault (for example the store being unavailable) and
// propagates as-is.
var (
	// ErrUnauthenticated means no actor identity was supplied.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrForbidden means the actor lacks the required role or does not
	// own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation means the input was malformed: a bid below the
	// minimum or an unparseable date/time.
	ErrValidation = errors.New("invalid input")

	// ErrInvalidState means the entity is not in a state that permits
	// the requested transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyClaimed means the actor lost a claim race; another
	// agent holds the showing.  Callers should re-poll for other open
	// showings rather than retry the same claim.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrTooEarly means the lock code was requested outside the
	// allowed window before the showing.
	ErrTooEarly = errors.New("too early")
)
