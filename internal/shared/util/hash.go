package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashKey returns a fixed-length hex identifier for s, safe to embed in
// cache keys.
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
