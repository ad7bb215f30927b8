package account

import (
	"errors"
	"fmt"

	"github.com/jacentio/members/media"
	"github.com/jacentio/members/records"
)

// Error kinds. Every error returned by Service is an *OpError whose Kind is
// one of these, or nil for internal failures; errors.Is matches both the
// kind and the underlying cause.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidationFailed     = errors.New("validation failed")
	ErrInvalidCredential    = errors.New("invalid credential")
	ErrUpstreamAssetFailure = errors.New("upstream asset failure")
	ErrPartialCascade       = errors.New("partial cascade failure")
)

// OpError describes a failed operation on one user.
type OpError struct {
	Op     string
	UserID string

	// Step names the collection a cascade stopped at.
	Step string

	Kind error
	Err  error
}

func (e *OpError) Error() string {
	msg := "account " + e.Op
	if e.UserID != "" {
		msg += " " + e.UserID
	}
	if e.Step != "" {
		msg += " at " + e.Step
	}
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	default:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
}

func (e *OpError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// kindOf classifies a store or adapter error.
func kindOf(err error) error {
	switch {
	case errors.Is(err, records.ErrNotFound),
		errors.Is(err, records.ErrParentNotFound):
		return ErrNotFound
	case errors.Is(err, records.ErrValidation),
		errors.Is(err, records.ErrProtectedField),
		errors.Is(err, records.ErrDuplicateValue),
		errors.Is(err, records.ErrUnsupportedFilter),
		errors.Is(err, records.ErrUnknownCollection),
		errors.Is(err, media.ErrInvalidImage):
		return ErrValidationFailed
	}
	return nil
}

func opError(op, userID string, err error) error {
	var oe *OpError
	if errors.As(err, &oe) {
		return err
	}
	return &OpError{Op: op, UserID: userID, Kind: kindOf(err), Err: err}
}
