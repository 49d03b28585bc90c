package store

import "errors"

// Common store errors. Entity-specific sentinels wrap these so callers can
// match either the broad class or the exact condition with errors.Is.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. ErrStoryNotFound wraps it.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate of
	// a unique entity. ErrStoryExists wraps it.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")
)
