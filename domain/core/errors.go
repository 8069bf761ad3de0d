package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Fatal stage errors
	ErrDataQuality         = errors.New("data quality violation")
	ErrMissingPrerequisite = errors.New("missing prerequisite artifact")
	ErrNonFiniteFeature    = errors.New("non-finite feature value")
	ErrNoWinner            = errors.New("no trainable candidate available")

	// Recoverable row errors
	ErrUnparsableDate  = errors.New("unparsable date")
	ErrNonNumericValue = errors.New("non-numeric value")

	// Training errors
	ErrTrainingFailed   = errors.New("candidate training failed")
	ErrInsufficientData = errors.New("insufficient data for training")
	ErrSeedMismatch     = errors.New("seed mismatch")
)

// NewDataQualityError reports a post-condition failure in the named stage.
// These are fatal and non-retryable: the stage writes no partial artifact.
func NewDataQualityError(stage, invariant string) error {
	return fmt.Errorf("%w: stage %s violated invariant %q", ErrDataQuality, stage, invariant)
}

// NewMissingPrerequisiteError reports a stage invoked without its upstream artifact.
func NewMissingPrerequisiteError(stage, artifact string) error {
	return fmt.Errorf("%w: stage %s requires %s", ErrMissingPrerequisite, stage, artifact)
}

// NewTrainingError wraps a per-candidate fit failure.
func NewTrainingError(candidate string, err error) error {
	return fmt.Errorf("%w: candidate %s: %v", ErrTrainingFailed, candidate, err)
}

// Error checking helpers
func IsDataQualityError(err error) bool {
	return errors.Is(err, ErrDataQuality) || errors.Is(err, ErrNonFiniteFeature)
}

func IsMissingPrerequisiteError(err error) bool {
	return errors.Is(err, ErrMissingPrerequisite)
}

func IsTrainingError(err error) bool {
	return errors.Is(err, ErrTrainingFailed) || errors.Is(err, ErrNoWinner)
}
