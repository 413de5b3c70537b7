// Package common defines shared constants and sentinel errors used across
// the guard, its stores and the admin console. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrNetwork marks a failed remote read, write or subscription. Poll
	// failures carrying it are logged and dropped; user-initiated writes
	// surface it with a retry affordance.
	ErrNetwork = errors.New("network error")

	// ErrValidation marks bad user input (wrong PIN, unknown event kind).
	ErrValidation = errors.New("validation error")

	// ErrStateConflict is returned when the remote state changed underneath a
	// pending local action, e.g. the account was restricted while a PIN was
	// being checked.
	ErrStateConflict = errors.New("state conflict")

	// ErrStorage means the local session store is unusable. Sessions cannot
	// be tracked at all and every load is treated as logged out.
	ErrStorage = errors.New("session storage unavailable")

	// ErrRestricted is returned once the account has been restricted, either
	// by the backend flag or by too many wrong PINs.
	ErrRestricted = errors.New("account restricted")

	// Guard flow control.
	ErrPINPending    = errors.New("pin verification already in progress")
	ErrActionPending = errors.New("action already in progress")
	ErrNotAllowed    = errors.New("action not allowed in current state")
	ErrGuardStopped  = errors.New("guard stopped")
)
