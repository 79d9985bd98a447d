// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"time"
)

// AuthError is returned when an upstream rejects our credential (expired,
// revoked, or missing scope). Never retried; the caller should fall back.
type AuthError struct {
	Source string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError is returned when an upstream reports quota exhaustion.
// Not retried immediately; subsequent calls should widen the effective TTL.
type RateLimitError struct {
	Source  string
	ResetAt time.Time
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded (resets %s): %v", e.Source, e.ResetAt.Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// TransientError covers timeouts, connection failures and 5xx responses.
// Eligible for a single retry with backoff.
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient upstream failure: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError is returned when an upstream responds with a shape this
// system cannot parse. Treated as a source failure, never a panic.
type ValidationError struct {
	Source string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape: %s", e.Source, e.Detail)
}

// IsAuth reports whether err is (or wraps) an AuthError.
func IsAuth(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsRateLimit reports whether err is (or wraps) a RateLimitError.
func IsRateLimit(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}
