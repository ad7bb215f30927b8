package store

import "errors"

var (
	// ErrParentNotFound is returned when the parent entity doesn't exist.
	ErrParentNotFound = errors.New("members/store: parent entity not found")

	// ErrNotFound is returned when an entity doesn't exist.
	ErrNotFound = errors.New("members/store: entity not found")

	// ErrAlreadyExists is returned when attempting to create an entity with an existing ID.
	ErrAlreadyExists = errors.New("members/store: entity already exists")

	// ErrHasChildren is returned when attempting to delete an entity with owned rows.
	ErrHasChildren = errors.New("members/store: entity has owned rows")

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = errors.New("members/store: entity was modified concurrently")

	// ErrDuplicateValue is returned when a unique constraint is violated.
	ErrDuplicateValue = errors.New("members/store: duplicate value for unique field")

	// ErrTooManyWrites is returned when a create would exceed the transaction item limit.
	ErrTooManyWrites = errors.New("members/store: too many items for one transaction")
)
