package records

import (
	"errors"

	"github.com/jacentio/members/store"
)

var (
	// ErrValidation is returned when a document fails its schema checks.
	// It is wrapped with the offending field.
	ErrValidation = errors.New("members/records: validation failed")

	// ErrProtectedField is returned when a patch names a field that may
	// only be written through Save.
	ErrProtectedField = errors.New("members/records: field can only be set through save")

	// ErrUnsupportedFilter is returned when a filter names anything other
	// than the collection's owner field.
	ErrUnsupportedFilter = errors.New("members/records: unsupported filter")

	// ErrUnknownCollection is returned for a collection name that is not defined.
	ErrUnknownCollection = errors.New("members/records: unknown collection")
)

// Store errors shared by every Store implementation.
var (
	ErrNotFound               = store.ErrNotFound
	ErrParentNotFound         = store.ErrParentNotFound
	ErrAlreadyExists          = store.ErrAlreadyExists
	ErrHasChildren            = store.ErrHasChildren
	ErrConcurrentModification = store.ErrConcurrentModification
	ErrDuplicateValue         = store.ErrDuplicateValue
)
