// Package common defines shared constants, sentinel errors and small helpers
// used across the fastid server layers. Callers should use errors.Is to match
// the error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Storage failures surfaced by services when a write could not be completed.
	ErrStorageFailure = errors.New("storage failure")
	ErrInternal       = errors.New("internal error")

	ErrInvalidArgument = errors.New("invalid argument")

	// Credential errors. Unknown email and wrong password share the same value.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrHashingFailure     = errors.New("password hashing failure")

	// Token lifecycle errors.
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")

	ErrUserNotFound = errors.New("user not found")

	// Setup errors.
	ErrAlreadySetup = errors.New("service is already set up")
)

// IsUnauthenticated reports whether err should be presented to a caller as
// "unauthenticated".
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrUserNotFound)
}
