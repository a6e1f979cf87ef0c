package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"orggate/internal/session"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// bearerToken extracts the token from the Authorization header. The
// token is handed to the mediator as-is; validation happens there.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// fingerprint derives the client fingerprint the same way login did, so
// a token replayed from another address or agent fails validation.
func fingerprint(r *http.Request) string {
	return session.Fingerprint(clientIP(r), r.UserAgent())
}
