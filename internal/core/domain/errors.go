package domain

import "errors"

// Sentinel errors returned by repositories. Services translate them into
// apperror values; they never reach HTTP callers directly.
var (
	// ErrVersionConflict means the expected wallet version was stale.
	ErrVersionConflict = errors.New("wallet version conflict")
	// ErrInsufficientFunds means a delta would drive a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrDuplicate means a unique key (purchase, registration, order code) already exists.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStatusMismatch means a compare-and-set on a status column matched no row.
	ErrStatusMismatch = errors.New("status compare-and-set mismatch")
	// ErrCapacityReached means an exhibition has no tickets left.
	ErrCapacityReached = errors.New("capacity reached")
)
