package project

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
	ErrSlugRequired    = errors.New("slug is required")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidSlug     = errors.New("invalid slug: must be lowercase alphanumeric with hyphens, no path separators")
)

// ValidationError reports malformed input or a document that fails schema
// validation. Nothing is written to disk when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// IsValidation returns true if err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PreconditionError reports an operation that is legal in general but not
// in the project's current state. State is left untouched.
type PreconditionError struct {
	Phase       Phase
	Requirement string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition not met in phase %s: %s", e.Phase, e.Requirement)
}

// IsPrecondition returns true if err is (or wraps) a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// IntegrityError reports a locked outline whose current content no longer
// matches the hash recorded at lock time.
type IntegrityError struct {
	Slug     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("outline integrity violation for %s: locked %s, current %s",
		e.Slug, e.Expected, e.Actual)
}

// IsIntegrity returns true if err is (or wraps) an IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
