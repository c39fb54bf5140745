package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrLinkNotFound is returned by stores and the lifecycle manager for unknown ids or tokens.
var ErrLinkNotFound = errors.New("payment link not found")

// ErrLinkNotPayable is returned when a checkout is requested for a link that
// is no longer pending.
var ErrLinkNotPayable = errors.New("payment link is not payable")

// UpstreamError is returned when the checkout provider could not create or
// read a session.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("checkout provider %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}

// ConflictError is returned when a payment confirmation arrives for a link
// that has already expired.
type ConflictError struct {
	LinkID     string
	SessionRef string
	ExpiredAt  time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("payment link %s expired at %s before payment %s was recorded",
		e.LinkID, e.ExpiredAt.UTC().Format(time.RFC3339), e.SessionRef)
}

// NewConflictError creates a new ConflictError
func NewConflictError(linkID, sessionRef string, expiredAt time.Time) *ConflictError {
	return &ConflictError{
		LinkID:     linkID,
		SessionRef: sessionRef,
		ExpiredAt:  expiredAt,
	}
}
