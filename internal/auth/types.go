package auth

import (
	"time"

	"orggate/internal/policy"
)

// Account status values. Accounts are deactivated, never deleted; the
// audit trail keeps referencing them.
const (
	StatusActive   = "active"
	StatusLocked   = "locked"
	StatusDisabled = "disabled"
)

// User is a provisioned dashboard account.
type User struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	PasswordHash string      `json:"-"`
	Role         policy.Role `json:"role"`
	// Team scopes view-team-data; for managers it is their uid in the
	// directory's manager field.
	Team      string    `json:"team"`
	UID       string    `json:"uid"`
	Status    string    `json:"status"`
	LockedAt  time.Time `json:"locked_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether the account currently rejects all logins.
// lockout is how long a lock lasts; zero means until explicit unlock.
func (u *User) Locked(now time.Time, lockout time.Duration) bool {
	if u.Status != StatusLocked {
		return false
	}
	if lockout <= 0 || u.LockedAt.IsZero() {
		return true
	}
	return now.Before(u.LockedAt.Add(lockout))
}
