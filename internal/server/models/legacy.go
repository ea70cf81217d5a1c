package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// legacyNamespace scopes the name-based ids derived for legacy entries.
var legacyNamespace = uuid.MustParse("1f97fbcf-c66f-4b3a-8f81-10820e59eccc")

// LegacyAccountID derives the stable identifier of a legacy entry that
// carries no id of its own (UUIDv5 of the handle).
func LegacyAccountID(handle string) string {
	return uuid.NewSHA1(legacyNamespace, []byte(handle)).String()
}

// LegacyUser is one entry of the embedded "users" list in the legacy
// container document. It predates lockout tracking.
type LegacyUser struct {
	ID        string     `json:"id,omitempty"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	Activated *bool      `json:"activated,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// LegacyCollection is the legacy container document.
type LegacyCollection struct {
	// Exists is false when the container row is absent or its users field
	// has been removed by cleanup.
	Exists bool
	Users  []LegacyUser
}

// IndexOfHandle returns the position of handle in the list, or -1.
func (c *LegacyCollection) IndexOfHandle(handle string) int {
	for i := range c.Users {
		if c.Users[i].Username == handle {
			return i
		}
	}
	return -1
}

// IndexOfEmail returns the position of email (case-insensitive), or -1.
func (c *LegacyCollection) IndexOfEmail(email string) int {
	for i := range c.Users {
		if strings.EqualFold(c.Users[i].Email, email) {
			return i
		}
	}
	return -1
}

// ToAccount converts a legacy entry into the canonical shape.
//
// Defaults for absent legacy fields: Activated=false, Avatar="",
// CreatedAt/UpdatedAt = zero time, FailedAttempts=0, LockedUntil=nil.
// The email is lower-cased; the password field is taken as the digest.
// An entry without an id gets LegacyAccountID(username).
func (u LegacyUser) ToAccount() *Account {
	a := &Account{
		ID:               u.ID,
		Handle:           u.Username,
		Email:            strings.ToLower(strings.TrimSpace(u.Email)),
		CredentialDigest: u.Password,
		Avatar:           u.Avatar,
		Source:           SourceLegacy,
	}
	if a.ID == "" {
		a.ID = LegacyAccountID(u.Username)
	}
	if u.Activated != nil {
		a.Activated = *u.Activated
	}
	if u.CreatedAt != nil {
		a.CreatedAt = *u.CreatedAt
		a.UpdatedAt = *u.CreatedAt
	}
	return a
}
