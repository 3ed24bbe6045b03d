// Package common defines shared constants and sentinel errors used across
// the homedock server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrValidation     = errors.New("validation error")

	// Authentication outcomes.
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrDuplicateUsername   = errors.New("username already exists")

	// Role management.
	ErrSystemRole    = errors.New("system roles cannot be modified")
	ErrDuplicateRole = errors.New("role already exists")

	// Vault errors. ErrTamperedOrCorrupt never carries the underlying cipher error.
	ErrTamperedOrCorrupt = errors.New("encrypted data is tampered or corrupt")

	// ErrConfiguration marks fatal startup problems (missing or malformed secrets).
	ErrConfiguration = errors.New("configuration error")
)
