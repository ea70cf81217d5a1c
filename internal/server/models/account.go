// Package models holds the account records shared by the repositories and
// the service layer.
package models

import "time"

// Source tells which storage shape an Account was read from.
type Source int

const (
	SourceStructured Source = iota
	SourceLegacy
)

func (s Source) String() string {
	if s == SourceLegacy {
		return "legacy"
	}
	return "structured"
}

// Account is the canonical account record. Legacy sub-records are converted
// into this shape on read (see LegacyUser.ToAccount).
type Account struct {
	ID               string
	Handle           string
	Email            string
	CredentialDigest string
	Activated        bool
	Avatar           string
	FailedAttempts   int
	LockedUntil      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Source           Source
}

// IsLegacy reports whether the account still lives in the legacy collection.
func (a *Account) IsLegacy() bool { return a.Source == SourceLegacy }

// AccountPatch lists the mutable fields of a structured account. Nil fields
// are left untouched; ClearLock wins over LockedUntil. UpdatedAt is the
// modification time to record; zero means the repository's current time.
type AccountPatch struct {
	FailedAttempts   *int
	LockedUntil      *time.Time
	ClearLock        bool
	Activated        *bool
	Avatar           *string
	CredentialDigest *string
	UpdatedAt        time.Time
}

// Timestamp returns UpdatedAt, or the current UTC time when it is unset.
func (p AccountPatch) Timestamp() time.Time {
	if p.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return p.UpdatedAt
}

// IsEmpty reports whether applying p would change nothing.
func (p AccountPatch) IsEmpty() bool {
	return p.FailedAttempts == nil && p.LockedUntil == nil && !p.ClearLock &&
		p.Activated == nil && p.Avatar == nil && p.CredentialDigest == nil
}

// Apply writes p onto a in place and stamps UpdatedAt.
func (p AccountPatch) Apply(a *Account, now time.Time) {
	if p.FailedAttempts != nil {
		a.FailedAttempts = *p.FailedAttempts
	}
	if p.ClearLock {
		a.LockedUntil = nil
	} else if p.LockedUntil != nil {
		until := *p.LockedUntil
		a.LockedUntil = &until
	}
	if p.Activated != nil {
		a.Activated = *p.Activated
	}
	if p.Avatar != nil {
		a.Avatar = *p.Avatar
	}
	if p.CredentialDigest != nil {
		a.CredentialDigest = *p.CredentialDigest
	}
	a.UpdatedAt = now
}
