package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")

	// ErrAuthenticationFailed covers unknown identifier and wrong secret
	// alike; the two are indistinguishable to callers.
	ErrAuthenticationFailed = errors.New("auth: authentication failed")

	// ErrAccountLocked is kept distinct for internal handling and audit
	// detail, but the HTTP boundary surfaces it with the same generic
	// message as ErrAuthenticationFailed.
	ErrAccountLocked = errors.New("auth: account locked")
)
