package domain

import "errors"

var (
	// Common domain errors
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("entity not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyClaimed    = errors.New("plan already claimed")

	// Storage execution context errors
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
