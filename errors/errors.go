package errors

import (
	stderrors "errors"
	"fmt"
)

// Categories. Specific errors below wrap one or more of them so callers
// can classify with errors.Is at either level.
var (
	ErrValidation  = fmt.Errorf("validation failed")
	ErrNotFound    = fmt.Errorf("not found")
	ErrPersistence = fmt.Errorf("persistence failed")
	ErrTransient   = fmt.Errorf("temporarily unavailable")
	ErrDelivery    = fmt.Errorf("delivery failed")
)

var (
	ErrEmptyContent       = fmt.Errorf("%w: empty content", ErrValidation)
	ErrContentTooLong     = fmt.Errorf("%w: content too long", ErrValidation)
	ErrInvalidIdentifier  = fmt.Errorf("%w: invalid identifier", ErrValidation)
	ErrUnknownReceiver    = fmt.Errorf("%w: %w: unknown receiver", ErrValidation, ErrNotFound)
	ErrUnknownGroup       = fmt.Errorf("%w: %w: unknown group", ErrValidation, ErrNotFound)
	ErrUnknownUser        = fmt.Errorf("%w: %w: unknown user", ErrValidation, ErrNotFound)
	ErrNotGroupMember     = fmt.Errorf("%w: sender is not a group member", ErrValidation)
	ErrAlreadyGroupMember = fmt.Errorf("%w: already a group member", ErrValidation)
	ErrForeignInbox       = fmt.Errorf("%w: inbox room belongs to another user", ErrValidation)
	ErrInvalidRoom        = fmt.Errorf("%w: invalid room", ErrValidation)
	ErrUnknownEvent       = fmt.Errorf("%w: unknown event type", ErrValidation)
	ErrConnectionConflict = fmt.Errorf("%w: connection bound to another identity", ErrValidation)

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrGroupAlreadyExists = fmt.Errorf("group already exists")

	ErrPersistenceTimeout = fmt.Errorf("%w: %w: store call timed out", ErrPersistence, ErrTransient)

	ErrConnectionClosed = fmt.Errorf("%w: connection closed", ErrDelivery)
	ErrSlowConsumer     = fmt.Errorf("%w: send buffer full", ErrDelivery)
	ErrUnknownSink      = fmt.Errorf("%w: connection has no sink", ErrDelivery)

	ErrUnauthenticated    = fmt.Errorf("unauthenticated")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	ErrInvalidPassword    = fmt.Errorf("%w: password does not meet complexity requirements", ErrValidation)
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrEngineStopped      = fmt.Errorf("engine stopped")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)

// Wire codes exposed to clients.
const (
	CodeValidation   = "validation"
	CodeNotFound     = "not_found"
	CodePersistence  = "persistence"
	CodeTransient    = "transient"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal"
)

// Is and As forward to the standard library so callers need a single errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

// Code maps an error to the most specific wire code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrNotFound):
		return CodeNotFound
	case stderrors.Is(err, ErrValidation):
		return CodeValidation
	case stderrors.Is(err, ErrTransient):
		return CodeTransient
	case stderrors.Is(err, ErrPersistence):
		return CodePersistence
	case stderrors.Is(err, ErrUnauthenticated):
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}

// Retryable reports whether the same request may succeed later.
func Retryable(err error) bool {
	return stderrors.Is(err, ErrTransient) || stderrors.Is(err, ErrPersistence)
}
