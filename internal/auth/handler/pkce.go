package handler

import (
	"crypto/sha256"
	"encoding/base64"
)

// pkceChallenge derives the S256 code challenge from a verifier. The
// verifier itself travels server-side inside the pending-state entry,
// never through the client.
func pkceChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
