package ports

import "errors"

// Standard application-level errors.
// Adapters and services wrap underlying errors with these so callers can use errors.Is.
var (
	// General Errors
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Authentication Errors
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Trading Errors
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrInvalidExpiry     = errors.New("expiry is not one of the allowed durations")
	ErrStakeOutOfBounds  = errors.New("stake outside the allowed range")
	ErrInsufficientFunds = errors.New("insufficient funds for operation")
	ErrGuardLimit        = errors.New("trading guard limit reached")
	ErrAlreadySettled    = errors.New("position already settled")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
