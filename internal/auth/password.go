package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the identifier is unknown, so the
// unknown-user path costs the same bcrypt work as the wrong-password path.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("orggate-dummy-credential"), bcrypt.DefaultCost)

// HashPassword hashes a plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with the stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// burnPassword performs a bcrypt comparison that always fails, keeping
// rejection latency uniform across failure causes.
func burnPassword(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password+"\x00"))
}
