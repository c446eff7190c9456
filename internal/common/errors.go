// Package common defines shared constants and sentinel errors used across
// the peerlink data layer. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository/store-level errors.
	ErrorNotFound = errors.New("not found")

	// Domain validation errors, surfaced to the UI as typed outcomes.
	ErrorUsernameTaken  = errors.New("username already taken")
	ErrorUnauthorized   = errors.New("unauthorized")
	ErrorRequestResolved = errors.New("friend request already resolved")

	// ErrorStaleCredential means a locally cached credential no longer
	// matches the current user record; a fresh login is required.
	ErrorStaleCredential = errors.New("cached credential is stale")

	// Backend-selection errors. These never escape the sync facade: they
	// are absorbed by the failover controller.
	ErrorRemoteUnavailable = errors.New("remote store unavailable")
	ErrorConfigAbsent      = errors.New("remote store not configured")

	// Subscription lifecycle.
	ErrorSubscriptionClosed = errors.New("subscription closed")
)
