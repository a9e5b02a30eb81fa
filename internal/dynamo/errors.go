package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration.
var (
	// ErrInvalidState indicates a state vector holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrConvergence indicates the solver could not advance within its
	// tolerances and failure limits.
	ErrConvergence = errors.New("dynamo: solver failed to converge")

	// ErrStepTooSmall indicates the adaptive step fell below the minimum.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrDimensionMismatch indicates mismatched state/system dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrConfiguration indicates an inconsistent run setup.
	ErrConfiguration = errors.New("dynamo: inconsistent configuration")
)

// BatchError reports a batch that could not be completed. State is the
// last state committed before the failing batch started.
type BatchError struct {
	Batch   int
	Elapsed float64
	State   State
	Wrapped error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d (t=%.1fs): %v", e.Batch, e.Elapsed, e.Wrapped)
}

func (e *BatchError) Unwrap() error {
	return e.Wrapped
}

// StepError wraps a solver failure with the step at which it happened.
type StepError struct {
	Step    int
	Time    float64
	H       float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g, h=%.3g): %v", e.Step, e.Time, e.H, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
