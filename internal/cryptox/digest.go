package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest returns the hex SHA-256 of secret. Only high-entropy random
// secrets may be passed here; passwords go through Hasher.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// DigestMatches compares Digest(secret) with stored in constant time.
func DigestMatches(secret, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(secret)), []byte(stored)) == 1
}
