package store

import "errors"

var (
	// ErrNotFound means no conversation exists with the given id.
	ErrNotFound = errors.New("conversation not found")

	// ErrNotOwner means a write carried the wrong owner token. One relay
	// session owns each conversation; anything else is rejected.
	ErrNotOwner = errors.New("not the owning session for this conversation")

	// ErrFinalized means the conversation has already been closed. A second
	// finalize is reported with this so callers can treat it as a no-op.
	ErrFinalized = errors.New("conversation already finalized")

	// ErrInvalidRating means a feedback rating was outside 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)
