package auth

import "errors"

// Domain-specific errors for token operations.
var (
	// ErrTokenInvalid is returned when a token fails signature, expiry, or
	// claim validation.
	ErrTokenInvalid = errors.New("auth: invalid token")
)
