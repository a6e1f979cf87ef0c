package session

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint digests the client address and user agent into a stable
// identifier. Only the digest is stored; the raw values never are.
func Fingerprint(remoteAddr, userAgent string) string {
	hasher := blake3.New()
	hasher.Write([]byte(strings.TrimSpace(remoteAddr)))
	hasher.Write([]byte{0})
	hasher.Write([]byte(strings.TrimSpace(userAgent)))
	return hex.EncodeToString(hasher.Sum(nil))
}
