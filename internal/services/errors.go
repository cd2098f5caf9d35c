package services

import (
	"errors"
	"strings"
)

var (
	ErrUnauthenticated      = errors.New("not signed in")
	ErrAccessBlocked        = errors.New("access blocked")
	ErrForbidden            = errors.New("forbidden")
	ErrGroupNotFound        = errors.New("group not found")
	ErrGiftNotFound         = errors.New("gift not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrNotParticipant       = errors.New("not a participant of this group")
	ErrNotOwner             = errors.New("not the owner")
	ErrOwnGift              = errors.New("cannot change the status of your own gift")
	ErrOwnerCannotLeave     = errors.New("owner cannot leave their own group")
	ErrInvalidCode          = errors.New("invalid group code")
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	ErrStatusConflict       = errors.New("gift status changed, reload and try again")
	ErrEmailExists          = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrRecaptchaFailed      = errors.New("recaptcha verification failed")
	ErrUnsupported          = errors.New("not supported by this identity provider")
)

// ValidationError carries field-level messages discovered by a service after
// request validation passed, e.g. a new owner who is not a participant.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
