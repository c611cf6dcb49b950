package stage

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying: network blips, rate
// limits, timeouts. The orchestrator retries these within the adapter's
// declared policy and budget.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transientf wraps an error as transient.
func Transientf(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// PermanentError marks a failure retries cannot fix: malformed input,
// failed auth, contract violations. It short-circuits the retry loop.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanentf wraps an error as permanent.
func Permanentf(op string, err error) error {
	return &PermanentError{Op: op, Err: err}
}

// IsTransient reports whether err is classified transient.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is classified permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// InsufficientDataError means ranking or synthesis had no usable records
// to work with.
type InsufficientDataError struct {
	Op     string
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: %s", e.Op, e.Reason)
}

// NoAvailableBackendError means every configured production backend was
// reported unavailable.
type NoAvailableBackendError struct {
	Style string
}

func (e *NoAvailableBackendError) Error() string {
	return fmt.Sprintf("no production backend available for style %q", e.Style)
}
