// Package lockout implements the failed-login state machine kept on each
// structured account: Open while LockedUntil is absent or elapsed, Locked
// while it lies in the future.
package lockout

import (
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/models"
)

const (
	DefaultThreshold = 4
	DefaultDuration  = 5 * time.Minute
)

type Config struct {
	Threshold int
	Duration  time.Duration
}

// Tracker is stateless; it only computes decisions and patches.
type Tracker struct {
	threshold int
	duration  time.Duration
}

func NewTracker(cfg Config) *Tracker {
	t := &Tracker{threshold: cfg.Threshold, duration: cfg.Duration}
	if t.threshold <= 0 {
		t.threshold = DefaultThreshold
	}
	if t.duration <= 0 {
		t.duration = DefaultDuration
	}
	return t
}

// Locked reports whether a is locked at now. Legacy accounts never are.
func (t *Tracker) Locked(a *models.Account, now time.Time) bool {
	return !a.IsLegacy() && a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// Check returns a *common.LockedError when a is locked at now.
func (t *Tracker) Check(a *models.Account, now time.Time) error {
	if !t.Locked(a, now) {
		return nil
	}
	return &common.LockedError{Until: *a.LockedUntil, Remaining: a.LockedUntil.Sub(now)}
}

// Failure computes the patch for a failed verification at now and whether it
// puts the account into Locked. A lock that has already elapsed is discarded
// and counting restarts at 1. Legacy accounts get an empty patch.
func (t *Tracker) Failure(a *models.Account, now time.Time) (models.AccountPatch, bool) {
	if a.IsLegacy() {
		return models.AccountPatch{}, false
	}

	if a.LockedUntil != nil && !now.Before(*a.LockedUntil) {
		one := 1
		return models.AccountPatch{FailedAttempts: &one, ClearLock: true}, false
	}

	attempts := a.FailedAttempts + 1
	patch := models.AccountPatch{FailedAttempts: &attempts}

	if attempts >= t.threshold && !t.Locked(a, now) {
		until := now.Add(t.duration)
		patch.LockedUntil = &until
		return patch, true
	}
	return patch, false
}

// Success computes the patch for a successful verification: attempts back to
// zero and no lock. It is empty when there is nothing to reset.
func (t *Tracker) Success(a *models.Account) models.AccountPatch {
	if a.IsLegacy() || (a.FailedAttempts == 0 && a.LockedUntil == nil) {
		return models.AccountPatch{}
	}
	zero := 0
	return models.AccountPatch{FailedAttempts: &zero, ClearLock: true}
}

// LockError builds the error reported for a lock that starts at now.
func (t *Tracker) LockError(now time.Time) error {
	return &common.LockedError{Until: now.Add(t.duration), Remaining: t.duration}
}
