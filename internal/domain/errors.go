package domain

import "errors"

var (
	// ErrNotFound signals a missing recall record.
	ErrNotFound = errors.New("recall not found")
	// ErrInvalidQuery signals malformed or contradictory search criteria.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidCursor signals an undecodable or tampered pagination cursor.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrCursorExpired signals a well-formed cursor past its embedded expiry.
	ErrCursorExpired = errors.New("cursor expired")
	// ErrCursorFilterMismatch signals a cursor minted for a different query.
	ErrCursorFilterMismatch = errors.New("cursor filter mismatch")
	// ErrStoreUnavailable signals a transient record store failure.
	ErrStoreUnavailable = errors.New("record store unavailable")
)
