// Package fault defines the typed domain errors surfaced by the engine.
// Every error carries the specific human-readable reason the caller
// needs to correct the request.
package fault

import (
	"errors"
	"fmt"
)

// ValidationError is a user-fixable input problem: unbalanced entry,
// missing line side, non-zero reconciliation difference, and so on.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validation builds a ValidationError.
func Validation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError is a state collision: a duplicate open reconciliation,
// or a status transition raced by a concurrent caller.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// Conflict builds a ConflictError.
func Conflict(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError means the referenced id does not resolve inside the
// caller's tenant scope.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// AuthorizationError means the actor lacks permission for the mutation.
type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not permitted: %s", e.Action)
}

// Authorization builds an AuthorizationError.
func Authorization(action string) error {
	return &AuthorizationError{Action: action}
}

// ErrNotAuthenticated is returned when no actor identity is present.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrNoActiveTenant is returned when no tenant scope is present.
var ErrNoActiveTenant = errors.New("no active tenant")

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsAuthorization reports whether err is an AuthorizationError.
func IsAuthorization(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}
