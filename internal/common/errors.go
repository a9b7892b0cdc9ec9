// Package common defines shared sentinel errors used across the client
// engine and the store-of-record server. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Local storage errors. Fatal to the current operation and always
	// surfaced to the caller, never silently swallowed for writes.
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// Remote store unreachable. An expected offline condition: the sync
	// engine absorbs it and reports zero progress instead of failing.
	ErrUnreachable = errors.New("remote store unreachable")

	// Restore attempted for a tenant without an archived snapshot.
	ErrArchiveNotFound = errors.New("archive not found")

	// Resolution is total over (version, updatedAt) pairs, so this error
	// indicates a defect, not a runtime condition.
	ErrConflictUnresolved = errors.New("conflict unresolved")

	// Manifest tally mismatch after a bulk sync. Blocks only the
	// mark-as-synced step; the underlying data stays intact.
	ErrSyncValidation = errors.New("sync manifest validation failed")

	// Repository-level errors.
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Auth errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrInvalidCredentials  = errors.New("invalid login/password")
	ErrLoginAlreadyExists  = errors.New("login already exists")
)
