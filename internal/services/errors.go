// Package services defines the business logic for giveaways, entries, game
// metadata, settings, and automation scheduling. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrGiveawayNotFound indicates that the requested giveaway does not
	// exist locally.
	ErrGiveawayNotFound = errors.New("giveaway not found")

	// ErrEntryNotFound indicates that the giveaway has no recorded entry.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrGameNotFound indicates that Steam has no data for the app id.
	ErrGameNotFound = errors.New("game not found")

	// ErrNotAuthenticated is returned when an operation needs a SteamGifts
	// session and none is configured.
	ErrNotAuthenticated = errors.New("steamgifts session not configured")

	// ErrGiveawayEnded is returned when attempting to enter a giveaway whose
	// end time has already passed.
	ErrGiveawayEnded = errors.New("giveaway already ended")

	// ErrInvalidSettings is returned (wrapped, with detail) when a settings
	// update fails validation.
	ErrInvalidSettings = errors.New("invalid settings")
)
