package correct

import (
	"errors"
	"fmt"
)

// ErrCanceled is returned when a correction run stops because cancellation
// was requested for the document.
var ErrCanceled = errors.New("correction canceled")

// ServiceError wraps the last failure after all retry attempts are spent.
type ServiceError struct {
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("correction failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
