package build

import (
	"errors"
	"fmt"

	"github.com/c360studio/semdraft/scoring"
)

// UnitState tracks one chapter through a generation run.
type UnitState string

const (
	UnitQueued     UnitState = "queued"
	UnitGenerating UnitState = "generating"
	UnitScoring    UnitState = "scoring"
	UnitPassed     UnitState = "passed"
	UnitNeedsRetry UnitState = "needs_retry"
	UnitFailed     UnitState = "failed"
)

// String returns the string representation of the state.
func (s UnitState) String() string {
	return string(s)
}

// IsValid returns true if the state is known.
func (s UnitState) IsValid() bool {
	switch s {
	case UnitQueued, UnitGenerating, UnitScoring, UnitPassed, UnitNeedsRetry, UnitFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo returns true for the legal unit state transitions:
// queued -> generating -> scoring -> {passed, needs_retry, failed}, and
// needs_retry -> generating for the next attempt.
func (s UnitState) CanTransitionTo(target UnitState) bool {
	switch s {
	case UnitQueued:
		return target == UnitGenerating
	case UnitGenerating:
		return target == UnitScoring
	case UnitScoring:
		return target == UnitPassed || target == UnitNeedsRetry || target == UnitFailed
	case UnitNeedsRetry:
		return target == UnitGenerating
	default:
		return false
	}
}

// stepState moves the unit state machine one hop, rejecting illegal
// transitions. Callers treat a rejection as a programming error.
func stepState(from, to UnitState) (UnitState, error) {
	if !from.CanTransitionTo(to) {
		return from, fmt.Errorf("invalid unit state transition %s -> %s", from, to)
	}
	return to, nil
}

// UnitResult is the settled outcome of one unit run. A deficient unit is
// reported here with Settled false, not as an error.
type UnitResult struct {
	Slug  string `json:"slug"`
	Index int    `json:"index"`
	Title string `json:"title"`

	// State is the terminal unit state, passed or failed.
	State UnitState `json:"state"`

	// Attempts counts generation attempts consumed by this run.
	Attempts int `json:"attempts"`

	// Score is the last recorded score, nil when no attempt produced text.
	Score *scoring.Result `json:"score,omitempty"`

	// Settled is true when the unit reached approved.
	Settled bool `json:"settled"`
}

// GenerationError reports that the generator failed to produce text for a
// unit after every allowed attempt. Scoring deficiencies are not
// generation errors; they settle as failed UnitResults.
type GenerationError struct {
	Slug     string
	Index    int
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	return fmt.Sprintf("unit %d of project %q: generation failed after %d attempts: %v",
		e.Index, e.Slug, e.Attempts, e.Err)
}

// Unwrap returns the underlying generator error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationFailure checks if an error is a GenerationError.
func IsGenerationFailure(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}
