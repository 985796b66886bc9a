package secretstore

import (
	"errors"
	"fmt"
)

// ErrNotText is returned when a binary payload is read as text.
var ErrNotText = errors.New("secret payload is binary, not text")

// NotFoundError indicates that a secret does not exist in the store.
type NotFoundError struct {
	Store string
	ID    string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return "secret not found: " + e.ID + " in " + e.Store
}

// AuthError indicates that the store rejected the caller's credentials or
// permissions.
type AuthError struct {
	Store   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e AuthError) Error() string {
	return "authentication failed for " + e.Store + ": " + e.Message
}

func (e AuthError) Unwrap() error {
	return e.Err
}

// ListingError reports a failed or malformed list operation. It aborts the
// whole listing.
type ListingError struct {
	Store string
	// Page is the zero-based index of the page that failed.
	Page int
	Err  error
}

// Error implements the error interface.
func (e *ListingError) Error() string {
	return fmt.Sprintf("listing secrets from %s failed on page %d: %v", e.Store, e.Page, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// ErrRepeatedPageToken marks a store that handed back a page token it had
// already returned, which would otherwise loop forever.
var ErrRepeatedPageToken = errors.New("store returned a page token it already used")
