// Package cursor implements the signed, stateless pagination token.
//
// A cursor carries everything needed to resume a ranked scan: the filter
// fingerprint it was minted for, the snapshot timestamp every page of the
// session observes, the page size, and the sort key of the last item served.
// The server holds no per-cursor state.
package cursor

import (
	"fmt"
	"time"
)

// Version is the current cursor wire-format version.
const Version = 1

// Key is the (score, date, id) sort key of the last item on a page.
// Ordering is score DESC, date DESC, id ASC; the immutable ID tie-break
// makes the order total, which keyset continuation depends on.
type Key struct {
	Score float64
	Date  time.Time
	ID    string
}

// Less reports whether k sorts strictly before other.
func (k Key) Less(other Key) bool {
	if k.Score != other.Score {
		return k.Score > other.Score
	}
	if !k.Date.Equal(other.Date) {
		return k.Date.After(other.Date)
	}
	return k.ID < other.ID
}

// State is the decoded cursor payload.
type State struct {
	Version     int
	Fingerprint string
	AsOf        time.Time
	PageSize    int
	After       *Key
	ExpiresAt   time.Time
}

// NewState creates a first-page or continuation cursor state.
func NewState(fingerprint string, asOf time.Time, pageSize int, after *Key, expiresAt time.Time) (State, error) {
	if fingerprint == "" {
		return State{}, fmt.Errorf("fingerprint is required")
	}
	if pageSize <= 0 {
		return State{}, fmt.Errorf("page size must be positive")
	}
	return State{
		Version:     Version,
		Fingerprint: fingerprint,
		AsOf:        asOf.UTC(),
		PageSize:    pageSize,
		After:       after,
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}
