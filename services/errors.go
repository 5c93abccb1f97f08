package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels carried inside ValidationError so callers can use errors.Is.
var (
	ErrDoublePunch        = errors.New("double punch")
	ErrSequence           = errors.New("invalid punch sequence")
	ErrEditReasonRequired = errors.New("edit reason is required")
	ErrFutureManualPunch  = errors.New("punch time cannot be in the future")
	ErrInvalidPunchType   = errors.New("punch type must be IN or OUT")
	ErrInvalidSource      = errors.New("unknown punch source")
	ErrNoChanges          = errors.New("edit must change the punch time or type")
)

// ValidationError is a user-correctable rejection.
type ValidationError struct {
	Messages []string
	Err      error
}

func (e *ValidationError) Error() string {
	if len(e.Messages) == 0 && e.Err != nil {
		return e.Err.Error()
	}
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(sentinel error, messages ...string) *ValidationError {
	if len(messages) == 0 {
		messages = []string{sentinel.Error()}
	}
	return &ValidationError{Messages: messages, Err: sentinel}
}

// ConfigurationError reports an unusable policy value such as an unknown
// timezone. It is fatal for the operation that hit it.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration %s=%q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid configuration %s=%q", e.Field, e.Value)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NotFoundError reports a missing punch or user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// AuthorizationError reports an actor touching another user's punches
// without the admin role.
type AuthorizationError struct {
	ActorID uint
	Action  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %d is not allowed to %s", e.ActorID, e.Action)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsAuthorization reports whether err is or wraps an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
