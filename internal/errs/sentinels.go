// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/storage layers.
var (
	// ErrInvalidInput indicates a rejected request value (empty file, unsafe filename, weak password).
	ErrInvalidInput = errors.New("invalid input")

	// ErrSecurityViolation indicates a sandbox-escape attempt detected after sanitization.
	// Never corrected silently; the operation is aborted.
	ErrSecurityViolation = errors.New("security violation")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the authenticated identity does not own the target record.
	ErrForbidden = errors.New("forbidden")

	// ErrExpired indicates a refresh credential past its expiry at use-time.
	ErrExpired = errors.New("expired")

	// ErrUnauthorized indicates failed authentication.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)
