package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// KeyHash computes the SHA-256 hex digest an API key is stored and looked
// up under. Raw keys never touch the database.
func KeyHash(rawKey string) string {
	h := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(h[:])
}
