package retry

import (
	"fmt"
)

// markedError carries an explicit classification that overrides Classify.
type markedError struct {
	err   error
	class Class
}

func (e *markedError) Error() string {
	return e.err.Error()
}

func (e *markedError) Unwrap() error {
	return e.err
}

// Retryable marks err as a transient failure regardless of its shape.
// A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, class: ClassUnavailable}
}

// Permanent marks err as not retryable regardless of its shape.
// A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, class: ClassPermanent}
}

// AbortedError is returned when the parent context ends while the executor
// is waiting between attempts. It unwraps to both the context error and the
// last attempt's failure.
type AbortedError struct {
	// Operation is the name passed to the executor
	Operation string

	// Attempts is the number of invocations made before aborting
	Attempts int

	// Cause is the context error (context.Canceled or context.DeadlineExceeded)
	Cause error

	// Last is the failure of the final attempt
	Last error
}

// Error implements the error interface.
func (e *AbortedError) Error() string {
	return fmt.Sprintf("operation %q aborted after %d attempt(s): %v (last error: %v)",
		e.Operation, e.Attempts, e.Cause, e.Last)
}

// Unwrap returns the context error and the last failure.
func (e *AbortedError) Unwrap() []error {
	return []error{e.Cause, e.Last}
}
