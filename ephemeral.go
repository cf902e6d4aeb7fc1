package gorbac

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// newEphemeralToken returns a random token of n bytes in hex alongside
// its SHA-256 digest. Only the digest is persisted; the raw token
// travels in mail and is re-hashed for lookup when it comes back, so a
// leaked store never yields a usable token.
func newEphemeralToken(n int) (token, digest string, err error) {
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("gorbac: ephemeral token generation: %w", err)
	}
	token = hex.EncodeToString(raw)
	return token, digestToken(token), nil
}

// digestToken maps a raw ephemeral token to its stored digest form.
func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
