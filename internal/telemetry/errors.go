package telemetry

import (
	"errors"
	"fmt"
)

// ErrConfigMissing means the store connection settings are incomplete.
// No request is attempted.
var ErrConfigMissing = errors.New("telemetry store not configured")

// TransportError wraps I/O failures, including timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("telemetry %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError reports a non-success status or a body that yielded no rows.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("telemetry response %d: %s", e.Status, e.Message)
}
