// Package steamgifts implements the authenticated scraping client for
// SteamGifts.com: listing discovery, giveaway entry, win/entered history,
// game hiding, commenting, and trap detection. It is the only channel through
// which the application mutates state on the external site.
//
// This file centralizes the client's error taxonomy. Callers are expected to
// branch with errors.Is / errors.As:
//
//   - ErrNotConfigured: no session cookie is set; nothing will work.
//   - ErrSessionExpired: the page structure expected from an authenticated
//     session is missing (no XSRF token, no points element). This is the most
//     consequential failure mode, since every mutating call depends on a
//     valid session; surface it prominently rather than retrying.
//   - ErrNotFound: a 404 on a giveaway detail page.
//   - *SiteError: any other non-200 response or transport failure; carries
//     the HTTP status when one was received.
//
// The client never retries on its own: most of its calls are mutating, and a
// retry risks double-submission. Callers decide.
package steamgifts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the common failure classes.
var (
	// ErrNotConfigured indicates no session cookie has been provided.
	ErrNotConfigured = errors.New("steamgifts: session not configured")

	// ErrSessionExpired indicates the session cookie is no longer valid:
	// an authenticated page element (XSRF token, points counter) could not
	// be located.
	ErrSessionExpired = errors.New("steamgifts: session expired or invalid")

	// ErrNotFound indicates the requested giveaway does not exist.
	ErrNotFound = errors.New("steamgifts: not found")
)

// SiteError wraps an unexpected response or transport failure from
// SteamGifts. Status is zero when no HTTP response was received.
type SiteError struct {
	Op     string
	Status int
	Err    error
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("steamgifts: %s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("steamgifts: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error, if any.
func (e *SiteError) Unwrap() error { return e.Err }

// siteErr builds a *SiteError for an unexpected HTTP status.
func siteErr(op string, status int) error {
	return &SiteError{Op: op, Status: status}
}

// wrapErr builds a *SiteError around a transport-level failure.
func wrapErr(op string, err error) error {
	return &SiteError{Op: op, Err: err}
}
