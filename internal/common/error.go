// Package common defines shared sentinel errors and error carriers used across
// the account service layers. Callers should use errors.Is / errors.As to
// match these values.
package common

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	// Repository-level errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateIdentity = errors.New("duplicate identity")

	// Service-level errors.
	ErrInternal          = errors.New("internal error")
	ErrInvalidHandleSeed = errors.New("invalid handle seed")
	ErrValidationFailed  = errors.New("validation failed")

	// Authentication errors. ErrInvalidCredential covers both unknown email
	// and wrong password.
	ErrInvalidCredential = errors.New("invalid credential")
	ErrAccountLocked     = errors.New("account locked")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Migration errors.
	ErrMigrationPartialFailure = errors.New("migration partial failure")
	ErrMigrationInProgress     = errors.New("migration already in progress")
	ErrCleanupNotForced        = errors.New("legacy cleanup requires force")
	ErrNothingMigrated         = errors.New("structured store is empty, refusing legacy cleanup")
)

// ValidationError carries every field-level violation found for one input.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Messages, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// NewValidationError returns a *ValidationError for msgs.
func NewValidationError(msgs ...string) error {
	return &ValidationError{Messages: msgs}
}

// LockedError reports an active lock and how long it still holds.
type LockedError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: try again in %d minute(s)", ErrAccountLocked, e.RemainingMinutes())
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// RemainingMinutes rounds the remaining lock time up to whole minutes.
func (e *LockedError) RemainingMinutes() int {
	if e.Remaining <= 0 {
		return 0
	}
	return int(math.Ceil(e.Remaining.Minutes()))
}
