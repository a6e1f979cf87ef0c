package session

import (
	"errors"
	"time"

	"orggate/internal/policy"
)

// ErrInvalid covers unknown, expired, and revoked tokens as well as
// fingerprint mismatches. Callers must re-authenticate; the audit log
// keeps the distinction.
var ErrInvalid = errors.New("session: invalid")

// Session is the server-side record behind a token. It references its
// user but does not own the user record.
type Session struct {
	ID     string      `json:"id"`
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   policy.Role `json:"role"`
	UID    string      `json:"uid"`
	Team   string      `json:"team"`
	// Fingerprint is the digest of the issuing client's address and user
	// agent. A token presented with a different fingerprint is treated
	// as hijacked.
	Fingerprint string    `json:"-"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Revoked     bool      `json:"revoked"`
}
