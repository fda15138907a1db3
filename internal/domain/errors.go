package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserDisabled       = errors.New("user_disabled")
	ErrPayloadTooLarge    = errors.New("payload_too_large")
	ErrValidation         = errors.New("validation")
)

// Conflict errors match both themselves and ErrConflict.
var (
	ErrEmailTaken            error = conflictError("email_taken")
	ErrExternalAccountExists error = conflictError("external_account_exists")
	ErrRequestExists         error = conflictError("request_exists")
	ErrAlreadyFriends        error = conflictError("already_friends")
	ErrAlreadyShared         error = conflictError("already_shared")
	ErrVersionConflict       error = conflictError("version_conflict")
)

type conflictError string

func (e conflictError) Error() string { return string(e) }

func (e conflictError) Is(target error) bool { return target == ErrConflict }

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// ErrorCode returns the stable machine-readable code for err, or "internal_error".
func ErrorCode(err error) string {
	var ce conflictError
	switch {
	case errors.As(err, &ce):
		return string(ce)
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInvalidCredentials):
		return ErrInvalidCredentials.Error()
	case errors.Is(err, ErrUserDisabled):
		return ErrUserDisabled.Error()
	case errors.Is(err, ErrUnauthorized):
		return ErrUnauthorized.Error()
	case errors.Is(err, ErrForbidden):
		return ErrForbidden.Error()
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrPayloadTooLarge):
		return ErrPayloadTooLarge.Error()
	case errors.Is(err, ErrConflict):
		return ErrConflict.Error()
	default:
		return "internal_error"
	}
}
