package push

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported means the device lacks push support. Not retryable.
	ErrUnsupported = errors.New("push notifications are not supported")
	// ErrPermissionDenied means the user declined, or has not granted, notifications.
	ErrPermissionDenied = errors.New("notification permission was denied")
	// ErrInvalidSubscription means the platform returned a handle without an
	// endpoint or without key material.
	ErrInvalidSubscription = errors.New("invalid subscription data")
	// ErrInvalidServerKey means the backend's VAPID public key could not be decoded.
	ErrInvalidServerKey = errors.New("invalid server public key")
	// ErrUnsubscribeIncomplete means every backend record failed to delete.
	ErrUnsubscribeIncomplete = errors.New("no subscription records could be deleted")
)

// TransportError wraps a failed registry call. The message of the
// underlying error is surfaced verbatim.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport returns true if err (or any wrapped error) is a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
